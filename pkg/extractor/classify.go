package extractor

import "github.com/kataras/figma-assets/pkg/figma"

// Kind is the classification of a single node.
type Kind int

const (
	// KindNone marks a node that is not exportable on its own.
	KindNone Kind = iota
	// KindImage marks an asset carrying at least one IMAGE fill. Exported as PNG.
	KindImage
	// KindSVG marks any other asset. Exported as SVG markup.
	KindSVG
	// KindInstance marks a component instance. Always exported as SVG.
	KindInstance
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindSVG:
		return "svg"
	case KindInstance:
		return "instance"
	default:
		return "none"
	}
}

// IsAsset reports whether the host flagged the node as an exportable asset.
func IsAsset(node *figma.Node) bool {
	return node != nil && node.IsAsset
}

// IsImage reports whether node is an asset with at least one IMAGE fill,
// regardless of its other fills.
func IsImage(node *figma.Node) bool {
	if !IsAsset(node) {
		return false
	}
	for _, fill := range node.Fills {
		if fill.Type == figma.PaintTypeImage {
			return true
		}
	}
	return false
}

// IsSVG reports whether node is an asset that is not an image.
func IsSVG(node *figma.Node) bool {
	return IsAsset(node) && !IsImage(node)
}

// IsInstance reports whether node is a component instance. The asset flag is
// not consulted.
func IsInstance(node *figma.Node) bool {
	return node != nil && node.Type == figma.NodeTypeInstance
}

// Classify returns the kind of a node. Instances win over the asset checks.
func Classify(node *figma.Node) Kind {
	switch {
	case IsInstance(node):
		return KindInstance
	case IsImage(node):
		return KindImage
	case IsSVG(node):
		return KindSVG
	default:
		return KindNone
	}
}
