package upload

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
)

// ResolveFieldPath returns the value at path inside data, a decoded JSON
// document.
//
// The path is first read as a JSON array of keys, e.g. ["data", 0, "url"].
// Otherwise it is a property path such as "data.url", "0.src",
// "data[0].url" or `data["file name"]`. Each key indexes objects by name
// and arrays by position. An empty path resolves to data itself.
func ResolveFieldPath(data any, path string) (any, bool) {
	if path == "" {
		return data, true
	}

	if obj, ok := data.(map[string]any); ok {
		if v, ok := obj[path]; ok {
			return v, true
		}
	}

	keys, ok := parseKeyArray(path)
	if !ok {
		keys = splitPath(path)
	}

	cur := data
	for _, key := range keys {
		next, ok := index(cur, key)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func parseKeyArray(path string) ([]string, bool) {
	var raw []any
	dec := json.NewDecoder(strings.NewReader(path))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}

	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		switch x := k.(type) {
		case string:
			keys = append(keys, x)
		case json.Number:
			keys = append(keys, x.String())
		default:
			return nil, false
		}
	}
	return keys, true
}

func splitPath(path string) []string {
	var (
		keys []string
		cur  strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			keys = append(keys, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(path); i++ {
		switch c := path[i]; c {
		case '.':
			flush()
		case '[':
			flush()
			end := strings.IndexByte(path[i+1:], ']')
			if end < 0 {
				cur.WriteString(path[i:])
				i = len(path)
				continue
			}
			inner := path[i+1 : i+1+end]
			if n := len(inner); n >= 2 && (inner[0] == '"' || inner[0] == '\'') && inner[n-1] == inner[0] {
				inner = inner[1 : n-1]
			}
			keys = append(keys, inner)
			i += end + 1
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return keys
}

func index(v any, key string) (any, bool) {
	switch x := v.(type) {
	case map[string]any:
		next, ok := x[key]
		return next, ok
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(x) {
			return nil, false
		}
		return x[i], true
	default:
		return nil, false
	}
}
