package extractor

import (
	"context"
	"errors"
	"fmt"

	"github.com/kataras/figma-assets/pkg/figma"
)

// ExportScale is the fixed raster scale used for image assets.
const ExportScale = 3

// ImageAsset pairs an image node with its PNG export.
type ImageAsset struct {
	Node  *figma.Node
	Image []byte
}

// SVGAsset pairs an SVG or instance node with its SVG markup.
type SVGAsset struct {
	Node *figma.Node
	SVG  string
}

// Result holds the assets extracted from a selection. Images and SVGs are
// grouped by type; the order inside each group follows traversal order.
type Result struct {
	Images  []ImageAsset
	SVGs    []SVGAsset
	Errors  []error // non-fatal per-node export failures
	Visited int     // nodes popped from the traversal stack
}

// Empty reports whether nothing was extracted.
func (r *Result) Empty() bool {
	return len(r.Images) == 0 && len(r.SVGs) == 0
}

// ExportError describes a node whose export failed. The node is left out of
// the result.
type ExportError struct {
	NodeID   string
	NodeName string
	Kind     Kind
	Err      error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("%s export of node %s (%s) failed: %v", e.Kind, e.NodeID, e.NodeName, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// ErrNoHost is returned when Extract is called without a host.
var ErrNoHost = errors.New("extractor: host is not available")

// Collect walks the selection depth-first with an explicit stack and returns
// the candidate nodes with their kind. Instances and assets are leaves: their
// children are never visited.
func Collect(selection []*figma.Node) (candidates []*figma.Node, kinds []Kind, visited int) {
	stack := make([]*figma.Node, 0, len(selection))
	for _, n := range selection {
		if n != nil {
			stack = append(stack, n)
		}
	}

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visited++

		kind := Classify(node)
		if kind != KindNone {
			candidates = append(candidates, node)
			kinds = append(kinds, kind)
			continue
		}
		if !node.HasChildren() {
			continue
		}

		for i := range node.Children {
			stack = append(stack, &node.Children[i])
		}
	}

	return candidates, kinds, visited
}

// Extract collects the asset candidates of selection and exports each one
// through host, one at a time. Image nodes are rendered as PNG at
// ExportScale, SVG and instance nodes as SVG markup.
//
// A node whose export fails is recorded in Result.Errors and skipped. Only a
// missing host or a cancelled context abort the whole extraction.
func Extract(ctx context.Context, host figma.Host, selection []*figma.Node) (*Result, error) {
	if host == nil {
		return nil, ErrNoHost
	}

	candidates, kinds, visited := Collect(selection)
	result := &Result{Visited: visited}

	for i, node := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch kinds[i] {
		case KindImage:
			image, err := host.ExportPNG(ctx, node, ExportScale)
			if err != nil {
				result.Errors = append(result.Errors, &ExportError{NodeID: node.ID, NodeName: node.Name, Kind: KindImage, Err: err})
				continue
			}
			result.Images = append(result.Images, ImageAsset{Node: node, Image: image})
		case KindSVG, KindInstance:
			svg, err := host.ExportSVG(ctx, node)
			if err != nil {
				result.Errors = append(result.Errors, &ExportError{NodeID: node.ID, NodeName: node.Name, Kind: kinds[i], Err: err})
				continue
			}
			result.SVGs = append(result.SVGs, SVGAsset{Node: node, SVG: svg})
		}
	}

	return result, nil
}

// ExtractSelection reads the host's current selection and extracts it.
// A failure to read the selection means the host is unreachable and is
// returned as is.
func ExtractSelection(ctx context.Context, host figma.Host) (*Result, error) {
	if host == nil {
		return nil, ErrNoHost
	}

	selection, err := host.Selection(ctx)
	if err != nil {
		return nil, fmt.Errorf("read selection: %w", err)
	}

	return Extract(ctx, host, selection)
}
