package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNoEndpoint is returned when no SVG action endpoint is configured.
	ErrNoEndpoint = errors.New("svg action endpoint is not configured")
	// ErrEmptyName is returned when the icon name is blank.
	ErrEmptyName = errors.New("icon name is required")
)

// Options controls an SVG post-processing request.
type Options struct {
	// Name of the icon, used in the returned class name.
	Name string `json:"name"`
	// WithSize keeps the root width and height and adds them to the snippet.
	WithSize bool `json:"withSize"`
	// WithDiv wraps the snippet in a div element.
	WithDiv bool `json:"withDiv"`
}

type processRequest struct {
	Content string `json:"content"`
	Options
}

type processResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SVGProcessor posts SVG markup to the user's icon action endpoint and
// builds the usage snippet for it.
type SVGProcessor struct {
	httpClient *http.Client
	log        *logrus.Entry
}

// NewSVGProcessor returns a processor using httpClient, or a client with a
// 30 second timeout when nil.
func NewSVGProcessor(httpClient *http.Client) *SVGProcessor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &SVGProcessor{
		httpClient: httpClient,
		log:        logrus.WithField("component", "SVGProcessor"),
	}
}

// Process sends svg to endpoint and, when the endpoint accepts it, returns
// the snippet that uses the new icon, e.g.
//
//	i-custom-arrow
//	i-custom-arrow w-[24px] h-[24px]
//	<div class="i-custom-arrow w-[24px] h-[24px]"></div>
func (p *SVGProcessor) Process(ctx context.Context, endpoint, svg string, opts Options) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", ErrNoEndpoint
	}
	opts.Name = strings.TrimSpace(opts.Name)
	if opts.Name == "" {
		return "", ErrEmptyName
	}

	width, height := Size(svg)
	content := svg
	if !opts.WithSize {
		content = StripSize(svg)
	}

	payload, err := json.Marshal(processRequest{Content: content, Options: opts})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create svg action request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("svg action: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read svg action response: %w", err)
	}

	var res processResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", fmt.Errorf("decode svg action response (status %d): %w", resp.StatusCode, err)
	}
	if !res.Success {
		if res.Message == "" {
			res.Message = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("svg action rejected %q: %s", opts.Name, res.Message)
	}

	p.log.WithField("name", opts.Name).Info("SVG processed")
	return Snippet(opts, width, height), nil
}

// Snippet builds the usage snippet for an icon.
func Snippet(opts Options, width, height string) string {
	result := "i-custom-" + opts.Name
	if opts.WithSize {
		result = fmt.Sprintf("i-custom-%s w-[%spx] h-[%spx]", opts.Name, width, height)
	}
	if opts.WithDiv {
		result = fmt.Sprintf(`<div class="%s"></div>`, result)
	}
	return result
}

var (
	rootTag    = regexp.MustCompile(`(?s)<svg\b[^>]*>`)
	widthAttr  = regexp.MustCompile(`\swidth\s*=\s*["']([^"']*)["']`)
	heightAttr = regexp.MustCompile(`\sheight\s*=\s*["']([^"']*)["']`)
)

// Size returns the width and height attributes of the root svg element.
// Missing attributes are empty.
func Size(svg string) (width, height string) {
	tag := rootTag.FindString(svg)
	if m := widthAttr.FindStringSubmatch(tag); m != nil {
		width = m[1]
	}
	if m := heightAttr.FindStringSubmatch(tag); m != nil {
		height = m[1]
	}
	return width, height
}

// StripSize removes the width and height attributes of the root svg
// element. Nested elements are left untouched.
func StripSize(svg string) string {
	loc := rootTag.FindStringIndex(svg)
	if loc == nil {
		return svg
	}
	tag := svg[loc[0]:loc[1]]
	tag = widthAttr.ReplaceAllString(tag, "")
	tag = heightAttr.ReplaceAllString(tag, "")
	return svg[:loc[0]] + tag + svg[loc[1]:]
}
