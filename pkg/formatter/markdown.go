// Package formatter renders extraction results and saved asset history as
// markdown documents.
package formatter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kataras/figma-assets/pkg/assets"
	"github.com/kataras/figma-assets/pkg/extractor"
	"github.com/kataras/figma-assets/pkg/imager"
)

// ResultMarkdown summarises an extraction: the images and SVGs found, the
// files written for them (report may be nil) and the nodes that failed.
func ResultMarkdown(title string, result *extractor.Result, report *imager.WriteReport) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Figma Assets - %s\n\n", title))
	sb.WriteString(fmt.Sprintf("%d nodes visited, %d images and %d SVGs extracted.\n\n", result.Visited, len(result.Images), len(result.SVGs)))

	if result.Empty() {
		sb.WriteString("No exportable assets were found in the selection.\n\n")
	}

	files := make(map[string]imager.WrittenFile)
	if report != nil {
		for _, f := range report.Files {
			files[f.NodeID] = f
		}
	}

	if len(result.Images) > 0 {
		sb.WriteString("## Images\n\n")
		sb.WriteString("| Node | Name | Size | File | Color |\n")
		sb.WriteString("|------|------|------|------|-------|\n")
		for _, img := range result.Images {
			f := files[img.Node.ID]
			sb.WriteString(fmt.Sprintf("| `%s` | %s | %s | %s | %s |\n", img.Node.ID, cell(img.Node.Name), byteSize(len(img.Image)), fileCell(f.FileName), fileCell(f.Color)))
		}
		sb.WriteString("\n")
	}

	if len(result.SVGs) > 0 {
		sb.WriteString("## SVGs\n\n")
		sb.WriteString("| Node | Name | Kind | Size | File |\n")
		sb.WriteString("|------|------|------|------|------|\n")
		for _, svg := range result.SVGs {
			sb.WriteString(fmt.Sprintf("| `%s` | %s | %s | %s | %s |\n", svg.Node.ID, cell(svg.Node.Name), extractor.Classify(svg.Node), byteSize(len(svg.SVG)), fileCell(files[svg.Node.ID].FileName)))
		}
		sb.WriteString("\n")
	}

	var errs []error
	errs = append(errs, result.Errors...)
	if report != nil {
		errs = append(errs, report.Errors...)
	}
	if len(errs) > 0 {
		sb.WriteString("## Errors\n\n")
		for _, err := range errs {
			sb.WriteString(fmt.Sprintf("- %s\n", err))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// AssetsMarkdown renders the saved asset history, images and SVGs in
// separate tables, most recently updated first.
func AssetsMarkdown(list []assets.Asset) string {
	var sb strings.Builder

	sb.WriteString("# Saved Assets\n\n")
	if len(list) == 0 {
		sb.WriteString("Nothing saved yet.\n")
		return sb.String()
	}

	images := recentFirst(assets.Filter(list, assets.TypeImage))
	svgs := recentFirst(assets.Filter(list, assets.TypeSVG))

	if len(images) > 0 {
		sb.WriteString(fmt.Sprintf("## Images (%d)\n\n", len(images)))
		sb.WriteString("| ID | Node | URL | Design | Updated |\n")
		sb.WriteString("|----|------|-----|--------|---------|\n")
		for _, a := range images {
			sb.WriteString(fmt.Sprintf("| `%s` | `%s` | %s | %s | %s |\n", a.ID, a.NodeID, a.ImageURL, cell(a.DesignURL), timestamp(a)))
		}
		sb.WriteString("\n")
	}

	if len(svgs) > 0 {
		sb.WriteString(fmt.Sprintf("## SVGs (%d)\n\n", len(svgs)))
		sb.WriteString("| ID | Node | Size | Preview on | Design | Updated |\n")
		sb.WriteString("|----|------|------|------------|--------|---------|\n")
		for _, a := range svgs {
			sb.WriteString(fmt.Sprintf("| `%s` | `%s` | %s | `%s` | %s | %s |\n", a.ID, a.NodeID, byteSize(len(a.SVGString)), imager.PreviewBackground(a.SVGString), cell(a.DesignURL), timestamp(a)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func recentFirst(list []assets.Asset) []assets.Asset {
	out := make([]assets.Asset, len(list))
	for i, a := range list {
		out[len(list)-1-i] = a
	}
	sort.SliceStable(out, func(i, j int) bool {
		return updated(out[i]) > updated(out[j])
	})
	return out
}

func updated(a assets.Asset) int64 {
	if a.UpdatedAt > 0 {
		return a.UpdatedAt
	}
	return a.CreatedAt
}

func timestamp(a assets.Asset) string {
	ms := updated(a)
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(time.DateTime)
}

func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", `\|`)
}

func fileCell(name string) string {
	if name == "" {
		return "-"
	}
	return "`" + name + "`"
}

func byteSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
