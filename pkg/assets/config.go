package assets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/kataras/figma-assets/pkg/storage"
	"github.com/sirupsen/logrus"
)

// CustomFieldType tells the uploader how to fill a custom field's value.
type CustomFieldType string

const (
	// FieldText sends Value verbatim.
	FieldText CustomFieldType = "text"
	// FieldUUID sends a fresh random UUID on every upload.
	FieldUUID CustomFieldType = "uuid"
	// FieldFileSize sends the uploaded file size in bytes.
	FieldFileSize CustomFieldType = "fileSize"
	// FieldFilename sends the uploaded file name.
	FieldFilename CustomFieldType = "filename"
)

// CustomField is an extra multipart form field sent with every upload.
type CustomField struct {
	Key   string          `json:"key" validate:"required"`
	Value string          `json:"value"`
	Type  CustomFieldType `json:"type" validate:"omitempty,oneof=text uuid fileSize filename"`
	Label string          `json:"label,omitempty"`
}

// UploadConfig describes the user's upload endpoint and the SVG action
// endpoint.
type UploadConfig struct {
	UploadURL         string        `json:"uploadUrl" validate:"omitempty,url"`
	UploadField       string        `json:"uploadField" validate:"required_with=UploadURL"`
	ImageFieldPath    string        `json:"imageFieldPath"`
	ImageURLPrefix    string        `json:"imageUrlPrefix"`
	CustomFields      []CustomField `json:"customFields" validate:"dive"`
	SVGActionEndpoint string        `json:"svgActionEndpoint,omitempty" validate:"omitempty,url"`
}

// DefaultUploadConfig returns the configuration used before the user saves one.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		UploadURL:      "https://us4ever.com/api/proxy",
		UploadField:    "file",
		ImageFieldPath: "0.src",
		ImageURLPrefix: "https://im.gurl.eu.org",
		CustomFields:   []CustomField{},
	}
}

// Normalize trims surrounding whitespace from every text field and fills a
// nil custom field list.
func (c UploadConfig) Normalize() UploadConfig {
	c.UploadURL = strings.TrimSpace(c.UploadURL)
	c.UploadField = strings.TrimSpace(c.UploadField)
	c.ImageFieldPath = strings.TrimSpace(c.ImageFieldPath)
	c.ImageURLPrefix = strings.TrimSpace(c.ImageURLPrefix)
	c.SVGActionEndpoint = strings.TrimSpace(c.SVGActionEndpoint)

	fields := make([]CustomField, 0, len(c.CustomFields))
	for _, f := range c.CustomFields {
		f.Key = strings.TrimSpace(f.Key)
		f.Value = strings.TrimSpace(f.Value)
		if f.Type == "" {
			f.Type = FieldText
		}
		fields = append(fields, f)
	}
	c.CustomFields = fields
	return c
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the field constraints of c.
func (c UploadConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid upload config: %w", err)
	}
	return nil
}

// ErrUploadNotConfigured is returned by ReadyForUpload when the endpoint or
// the file field is missing.
var ErrUploadNotConfigured = errors.New("upload URL and upload field must be configured")

// ReadyForUpload reports whether c can be used to upload a file.
func (c UploadConfig) ReadyForUpload() error {
	if c.UploadURL == "" || c.UploadField == "" {
		return ErrUploadNotConfigured
	}
	return nil
}

// ConfigStore keeps the upload configuration in a storage area. Saves are
// serialised.
type ConfigStore struct {
	mu   sync.Mutex
	area storage.Area
}

// NewConfigStore returns a config store on area.
func NewConfigStore(area storage.Area) *ConfigStore {
	return &ConfigStore{area: area}
}

// Load returns the stored configuration or DefaultUploadConfig when none was
// saved yet.
func (s *ConfigStore) Load(ctx context.Context) (UploadConfig, error) {
	var cfg UploadConfig
	found, err := s.area.Get(ctx, UploadConfigKey, &cfg)
	if err != nil {
		return UploadConfig{}, fmt.Errorf("load upload config: %w", err)
	}
	if !found {
		return DefaultUploadConfig(), nil
	}
	if cfg.CustomFields == nil {
		cfg.CustomFields = []CustomField{}
	}
	return cfg, nil
}

// Save normalizes and validates cfg and replaces the stored configuration
// with it. The stored value is returned.
func (s *ConfigStore) Save(ctx context.Context, cfg UploadConfig) (UploadConfig, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return UploadConfig{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.area.Set(ctx, UploadConfigKey, cfg); err != nil {
		return UploadConfig{}, fmt.Errorf("store upload config: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"upload_url":    cfg.UploadURL,
		"custom_fields": len(cfg.CustomFields),
	}).Info("Upload config saved")
	return cfg, nil
}
