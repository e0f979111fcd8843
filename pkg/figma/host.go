package figma

import (
	"context"
	"errors"
	"fmt"
)

// Host is the design tool surface the extractor works against: the current
// selection and a per-node export operation.
type Host interface {
	// Selection returns the currently selected root nodes, in selection order.
	Selection(ctx context.Context) ([]*Node, error)
	// ExportPNG renders the node as PNG at the given scale factor.
	ExportPNG(ctx context.Context, node *Node, scale float64) ([]byte, error)
	// ExportSVG renders the node as SVG markup.
	ExportSVG(ctx context.Context, node *Node) (string, error)
	// Origin is the origin of the open document, e.g. "https://www.figma.com".
	Origin() string
}

// ErrEmptySelection is returned by RESTHost when no node IDs were given.
var ErrEmptySelection = errors.New("figma: no nodes selected")

// RESTHost implements Host on top of the Figma REST API. The "selection" is
// the list of node IDs taken from the document URL or passed explicitly.
type RESTHost struct {
	client  *Client
	fileKey string
	nodeIDs []string
	origin  string
}

var _ Host = (*RESTHost)(nil)

// NewRESTHost parses the document URL and returns a host whose selection is
// nodeIDs, or the node IDs embedded in the URL when nodeIDs is empty.
func NewRESTHost(client *Client, documentURL string, nodeIDs []string) (*RESTHost, error) {
	fileKey, err := ExtractFileKey(documentURL)
	if err != nil {
		return nil, fmt.Errorf("extract file key: %w", err)
	}

	origin, err := Origin(documentURL)
	if err != nil {
		return nil, err
	}

	if len(nodeIDs) == 0 {
		nodeIDs, err = ExtractNodeIDs(documentURL)
		if err != nil {
			return nil, fmt.Errorf("extract node IDs from URL: %w", err)
		}
	}

	return &RESTHost{
		client:  client,
		fileKey: fileKey,
		nodeIDs: deduplicateNodeIDs(nodeIDs),
		origin:  origin,
	}, nil
}

// FileKey returns the key of the document this host reads from.
func (h *RESTHost) FileKey() string { return h.fileKey }

// Origin implements Host.
func (h *RESTHost) Origin() string { return h.origin }

// Selection implements Host. Nodes missing from the API response are skipped.
func (h *RESTHost) Selection(ctx context.Context) ([]*Node, error) {
	if len(h.nodeIDs) == 0 {
		return nil, ErrEmptySelection
	}

	resp, err := h.client.GetFileNodes(ctx, h.fileKey, h.nodeIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch nodes: %w", err)
	}

	roots := make([]*Node, 0, len(h.nodeIDs))
	for _, id := range h.nodeIDs {
		nd, ok := resp.Nodes[id]
		if !ok {
			continue
		}
		doc := nd.Document // copy
		roots = append(roots, &doc)
	}
	return roots, nil
}

// ExportPNG implements Host.
func (h *RESTHost) ExportPNG(ctx context.Context, node *Node, scale float64) ([]byte, error) {
	return h.render(ctx, node, "png", scale)
}

// ExportSVG implements Host.
func (h *RESTHost) ExportSVG(ctx context.Context, node *Node) (string, error) {
	b, err := h.render(ctx, node, "svg", 1)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h *RESTHost) render(ctx context.Context, node *Node, format string, scale float64) ([]byte, error) {
	imgResp, err := h.client.GetImages(ctx, h.fileKey, []string{node.ID}, format, scale)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", node.ID, err)
	}

	imageURL := imgResp.Images[node.ID]
	if imageURL == "" {
		return nil, fmt.Errorf("no image URL returned for node %s", node.ID)
	}

	return h.client.Download(ctx, imageURL)
}
