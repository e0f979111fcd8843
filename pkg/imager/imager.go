// Package imager writes extracted assets to disk and prepares SVG previews.
package imager

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kataras/figma-assets/pkg/extractor"

	"github.com/cenkalti/dominantcolor"
)

// WrittenFile is an asset saved to disk.
type WrittenFile struct {
	NodeID   string
	NodeName string
	FileName string
	Kind     extractor.Kind
	Scale    float64
	Color    string // dominant color of raster images, "#RRGGBB"
}

// WriteReport holds the outcome of WriteResult.
type WriteReport struct {
	Files  []WrittenFile
	Errors []error // non-fatal per-file write failures
}

const maxParallelWrites = 5

type pendingFile struct {
	file WrittenFile
	data []byte
}

// WriteResult saves every asset of result into dir, creating it if needed.
// Images are written as "<name>@3x.png" and SVGs as "<name>.svg", where name
// is the kebab-cased node name; clashing names get a numeric suffix.
func WriteResult(result *extractor.Result, dir string) (*WriteReport, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %q: %w", dir, err)
	}

	usedNames := make(map[string]int)
	files := make([]pendingFile, 0, len(result.Images)+len(result.SVGs))

	for _, img := range result.Images {
		name := uniqueName(usedNames, buildFileName(img.Node.Name, img.Node.ID, "png", extractor.ExportScale))
		files = append(files, pendingFile{
			file: WrittenFile{NodeID: img.Node.ID, NodeName: img.Node.Name, FileName: name, Kind: extractor.KindImage, Scale: extractor.ExportScale},
			data: img.Image,
		})
	}
	for _, svg := range result.SVGs {
		name := uniqueName(usedNames, buildFileName(svg.Node.Name, svg.Node.ID, "svg", 1))
		files = append(files, pendingFile{
			file: WrittenFile{NodeID: svg.Node.ID, NodeName: svg.Node.Name, FileName: name, Kind: extractor.Classify(svg.Node), Scale: 1},
			data: []byte(svg.SVG),
		})
	}

	report := &WriteReport{}
	written := make([]bool, len(files))

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, maxParallelWrites)
	)
	for i := range files {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			f := &files[i]
			if f.file.Kind == extractor.KindImage {
				f.file.Color, _ = DominantColor(f.data)
			}
			destPath := filepath.Join(dir, f.file.FileName)
			if err := os.WriteFile(destPath, f.data, 0644); err != nil {
				mu.Lock()
				report.Errors = append(report.Errors, fmt.Errorf("failed to write %s: %w", f.file.NodeName, err))
				mu.Unlock()
				return
			}
			written[i] = true
		}(i)
	}
	wg.Wait()

	for i, ok := range written {
		if ok {
			report.Files = append(report.Files, files[i].file)
		}
	}
	return report, nil
}

func uniqueName(used map[string]int, fileName string) string {
	count, exists := used[fileName]
	if !exists {
		used[fileName] = 1
		return fileName
	}

	ext := filepath.Ext(fileName)
	base := strings.TrimSuffix(fileName, ext)
	for {
		count++
		candidate := fmt.Sprintf("%s-%d%s", base, count, ext)
		if _, taken := used[candidate]; !taken {
			used[fileName] = count
			used[candidate] = 1
			return candidate
		}
	}
}

// buildFileName creates a sanitized filename from a node name.
// Uses kebab-case, adds an @Nx suffix for raster scales > 1,
// falls back to the sanitized node ID if the name is empty.
func buildFileName(nodeName, nodeID, format string, scale float64) string {
	name := nodeName
	if name == "" {
		name = nodeID
	}

	name = toKebabCase(name)
	if name == "" {
		name = "asset"
	}

	scaleSuffix := ""
	if scale > 1 && format != "svg" {
		scaleSuffix = fmt.Sprintf("@%gx", scale)
	}

	return fmt.Sprintf("%s%s.%s", name, scaleSuffix, format)
}

// toKebabCase lowercases s, turns spaces, underscores and colons into
// hyphens and drops everything else outside [a-z0-9-].
func toKebabCase(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer(" ", "-", "_", "-", ":", "-").Replace(s)

	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// DominantColor decodes a raster image and returns its dominant color as
// "#RRGGBB".
func DominantColor(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	return dominantcolor.Hex(dominantcolor.Find(img)), nil
}

// SVGDataURL returns svg as a base64 data URL, ready for an img src.
func SVGDataURL(svg string) string {
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}

var whiteMarkers = []string{
	`fill="white"`, `fill="#fff"`, `fill="#ffffff"`,
	`stroke="white"`, `stroke="#fff"`, `stroke="#ffffff"`,
}

// HasWhiteComponent reports whether svg paints anything white, in which case
// it needs a dark background to be visible in a preview.
func HasWhiteComponent(svg string) bool {
	for _, m := range whiteMarkers {
		if strings.Contains(svg, m) {
			return true
		}
	}
	return false
}

// Preview backgrounds picked by PreviewBackground.
const (
	LightPreview = "#ffffff"
	DarkPreview  = "#1f2937"
)

// PreviewBackground returns the background color to preview svg on.
func PreviewBackground(svg string) string {
	if HasWhiteComponent(svg) {
		return DarkPreview
	}
	return LightPreview
}
