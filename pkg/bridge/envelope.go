// Package bridge carries storage requests between the side that talks to the
// design document (MAIN_WORLD) and the side that owns persistent storage
// (ISOLATED). Both sides exchange Envelopes over a broadcast Channel and
// match replies to requests by correlation ID.
package bridge

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Source identifies which side sent an envelope.
type Source string

const (
	SourceMainWorld Source = "MAIN_WORLD"
	SourceIsolated  Source = "ISOLATED"
)

// MessageType names a bridge operation.
type MessageType string

const (
	TypeGetUploadConfig MessageType = "getUploadConfig"
	TypeGetSavedAssets  MessageType = "getSavedAssets"
	TypeSaveAsset       MessageType = "saveAsset"
	TypeDeleteAsset     MessageType = "deleteAsset"
)

// Known reports whether t is an operation the storage side serves.
func (t MessageType) Known() bool {
	switch t {
	case TypeGetUploadConfig, TypeGetSavedAssets, TypeSaveAsset, TypeDeleteAsset:
		return true
	default:
		return false
	}
}

// Envelope is the message exchanged on a Channel. Requests carry Payload,
// replies carry Result and, on failure, Error.
type Envelope struct {
	Source  Source          `json:"source"`
	Type    MessageType     `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// MutationResult is the result of saveAsset and deleteAsset.
type MutationResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func newRequestID() string {
	return uuid.NewString()
}
