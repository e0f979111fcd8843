package figma

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	fileKeyRe   = regexp.MustCompile(`^https?://(?:www\.)?figma\.com/(?:file|design)/([A-Za-z0-9]+)(?:/|$)`)
	nodesPathRe = regexp.MustCompile(`/nodes/([^/?#]+)`)
)

// ExtractFileKey extracts the unique file identifier from a Figma URL.
// Supports both /file/ and /design/ URL patterns (e.g., figma.com/file/ABC123/Design-Name).
func ExtractFileKey(figmaURL string) (string, error) {
	matches := fileKeyRe.FindStringSubmatch(figmaURL)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Figma URL format: must be a valid figma.com URL with /file/ or /design/ path")
	}

	return matches[1], nil
}

// ExtractNodeIDs returns the node IDs referenced by a Figma URL.
// It understands the node-id query parameter, the hash fragment form and the
// /nodes/ path form. URL-encoded IDs ("123-456") are converted to the API
// form ("123:456"). The result is deduplicated, order preserved.
func ExtractNodeIDs(figmaURL string) ([]string, error) {
	u, err := url.Parse(figmaURL)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	var raw string
	switch {
	case u.Query().Get("node-id") != "":
		raw = u.Query().Get("node-id")
	case u.Fragment != "":
		raw = u.Fragment
	default:
		if m := nodesPathRe.FindStringSubmatch(u.Path); len(m) == 2 {
			raw = m[1]
		}
	}

	ids := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		ids = append(ids, strings.ReplaceAll(id, "-", ":"))
	}

	return deduplicateNodeIDs(ids), nil
}

func deduplicateNodeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}

// Origin returns the scheme and host of a document URL ("https://www.figma.com").
// Saved assets are keyed by this value together with the node ID.
func Origin(documentURL string) (string, error) {
	u, err := url.Parse(documentURL)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("URL %q has no origin", documentURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
