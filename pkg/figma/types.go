package figma

// NodeTypeInstance is the type tag of a component instance.
const NodeTypeInstance = "INSTANCE"

// PaintTypeImage is the fill kind of an embedded raster image.
const PaintTypeImage = "IMAGE"

// FileResponse represents the complete response from the Figma file API endpoint.
// It contains the file metadata and the document structure.
type FileResponse struct {
	Name          string `json:"name"`
	LastModified  string `json:"lastModified"`
	ThumbnailURL  string `json:"thumbnailUrl"`
	Version       string `json:"version"`
	Document      Node   `json:"document"`
	SchemaVersion int    `json:"schemaVersion"`
}

// NodesResponse represents the response from the Figma nodes API endpoint when fetching specific nodes.
// It contains file metadata and a map of node IDs to their corresponding NodeData.
type NodesResponse struct {
	Name         string              `json:"name"`
	LastModified string              `json:"lastModified"`
	Version      string              `json:"version"`
	Nodes        map[string]NodeData `json:"nodes"`
}

// NodeData wraps a node with its document structure.
type NodeData struct {
	Document Node `json:"document"`
}

// ImagesResponse is the response of the render API: node ID to a temporary download URL.
// A node that could not be rendered maps to an empty string.
type ImagesResponse struct {
	Err    string            `json:"err"`
	Images map[string]string `json:"images"`
}

// Node is a single element of the document tree.
//
// IsAsset is the host's "exportable asset" flag. The plugin runtime sets it
// directly; nodes fetched through the REST API get it from their export
// settings, see Normalize.
type Node struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Type                string          `json:"type"`
	IsAsset             bool            `json:"isAsset,omitempty"`
	Children            []Node          `json:"children,omitempty"`
	Fills               []Paint         `json:"fills,omitempty"`
	ExportSettings      []ExportSetting `json:"exportSettings,omitempty"`
	AbsoluteBoundingBox *Rectangle      `json:"absoluteBoundingBox,omitempty"`
}

// HasChildren reports whether the node exposes child nodes.
func (n *Node) HasChildren() bool {
	return n != nil && len(n.Children) > 0
}

// Normalize marks every node carrying export settings as an asset,
// recursively. The REST API has no isAsset field; export settings are the
// closest equivalent.
func (n *Node) Normalize() {
	if n == nil {
		return
	}
	if len(n.ExportSettings) > 0 {
		n.IsAsset = true
	}
	for i := range n.Children {
		n.Children[i].Normalize()
	}
}

// Paint represents a fill or stroke applied to a node.
type Paint struct {
	Type      string  `json:"type"`
	Visible   *bool   `json:"visible,omitempty"`
	Opacity   float64 `json:"opacity,omitempty"`
	Color     *Color  `json:"color,omitempty"`
	ImageRef  string  `json:"imageRef,omitempty"`
	ScaleMode string  `json:"scaleMode,omitempty"`
}

// ExportSetting is a designer-defined export preset on a node.
type ExportSetting struct {
	Suffix     string `json:"suffix"`
	Format     string `json:"format"`
	Constraint struct {
		Type  string  `json:"type"`
		Value float64 `json:"value"`
	} `json:"constraint"`
}

// Color represents an RGBA color with float values ranging from 0 to 1.
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// Rectangle represents a bounding box with position (X, Y) and dimensions (Width, Height).
type Rectangle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}
