package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNothingToImport is returned by ParseConfigImport when the text holds
// neither a JSON configuration nor any "key: value" line.
var ErrNothingToImport = errors.New("no configuration or fields found in the imported text")

var uuidPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ParseConfigImport turns pasted text into a configuration.
//
// A JSON document replaces the whole configuration. Anything else is read
// line by line as "key: value" pairs (copied request form data, for example)
// which become the custom fields of current. The pair whose key is the
// current upload field is the file itself and is dropped.
func ParseConfigImport(text string, current UploadConfig) (UploadConfig, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return current, ErrNothingToImport
	}

	var cfg UploadConfig
	if strings.HasPrefix(trimmed, "{") && json.Unmarshal([]byte(trimmed), &cfg) == nil {
		if cfg.CustomFields == nil {
			cfg.CustomFields = []CustomField{}
		}
		return cfg, nil
	}

	var fields []CustomField
	for i, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		if key == current.UploadField {
			continue
		}

		fields = append(fields, CustomField{
			Key:   key,
			Value: value,
			Type:  guessFieldType(key, value),
			Label: fmt.Sprintf("Custom field %d", i+1),
		})
	}

	if len(fields) == 0 {
		return current, ErrNothingToImport
	}

	current.CustomFields = fields
	return current, nil
}

func guessFieldType(key, value string) CustomFieldType {
	switch {
	case uuidPattern.MatchString(value):
		return FieldUUID
	case key == "qqfilename" || key == "qqfile":
		return FieldFilename
	case key == "qqtotalfilesize":
		return FieldFileSize
	default:
		return FieldText
	}
}
