// Package assets defines the persisted records (saved assets and the upload
// configuration) and the repositories that keep them in storage areas.
package assets

import (
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Storage keys. Both values are rewritten whole on every change.
const (
	UploadConfigKey = "uploadConfig"
	SavedAssetsKey  = "asset:saved:list"
)

// Type is the kind of a saved asset.
type Type string

const (
	TypeImage Type = "image"
	TypeSVG   Type = "svg"
)

// Asset is a saved image or SVG. For images ImageURL holds the uploaded
// location, for SVGs SVGString holds the markup; never both.
//
// Two assets with the same NodeID and DesignURL are the same asset.
// Timestamps are Unix milliseconds.
type Asset struct {
	ID        string `json:"id"`
	NodeID    string `json:"nodeId"`
	Type      Type   `json:"type"`
	ImageURL  string `json:"imageUrl,omitempty"`
	SVGString string `json:"svgString,omitempty"`
	DesignURL string `json:"designUrl,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
}

// ErrInvalidAsset is wrapped by every Validate failure.
var ErrInvalidAsset = errors.New("invalid asset")

// Validate checks the record invariants.
func (a Asset) Validate() error {
	if a.NodeID == "" {
		return fmt.Errorf("%w: empty node id", ErrInvalidAsset)
	}

	switch a.Type {
	case TypeImage:
		if a.ImageURL == "" || a.SVGString != "" {
			return fmt.Errorf("%w: image asset %s must carry an image URL only", ErrInvalidAsset, a.NodeID)
		}
	case TypeSVG:
		if a.SVGString == "" || a.ImageURL != "" {
			return fmt.Errorf("%w: svg asset %s must carry SVG markup only", ErrInvalidAsset, a.NodeID)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAsset, a.Type)
	}

	return nil
}

// SameIdentity reports whether a and b refer to the same node of the same document.
func (a Asset) SameIdentity(b Asset) bool {
	return a.NodeID == b.NodeID && a.DesignURL == b.DesignURL
}

// NewID returns a fresh, unique, time-sortable asset ID.
func NewID() string {
	return ulid.Make().String()
}

// Now returns the current time in Unix milliseconds.
var Now = func() int64 {
	return time.Now().UnixMilli()
}

// Filter returns the assets of the given type, order preserved.
func Filter(list []Asset, t Type) []Asset {
	out := make([]Asset, 0, len(list))
	for _, a := range list {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}
