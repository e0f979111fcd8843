package figma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	figmaAPIBase = "https://api.figma.com/v1"
	maxRetries   = 3
)

// Version is the release of the figma-assets module.
const Version = "0.4.0"

// Client represents a Figma API client with configured HTTP settings for reliable communication
// with the Figma API. It includes retry logic and optimized transport settings for handling large files.
type Client struct {
	accessToken    string
	baseURL        string
	httpClient     *http.Client
	downloadClient *http.Client
	limiter        *rate.Limiter
	backoff        time.Duration
}

// NewClient creates a new Figma API client with the provided personal access token.
// The client is configured with connection pooling, disabled HTTP/2 (for large file stability),
// and a 10-minute timeout for very large files.
func NewClient(accessToken string) *Client {
	transport := newTransport()
	return &Client{
		accessToken: accessToken,
		baseURL:     figmaAPIBase,
		httpClient: &http.Client{
			Timeout:   10 * time.Minute,
			Transport: transport,
		},
		downloadClient: &http.Client{
			Timeout:   10 * time.Minute,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Every(defaultRequestInterval), defaultRequestBurst),
		backoff: 2 * time.Second,
	}
}

// NewOAuthClient creates a client that authenticates API calls with an OAuth
// bearer token from ts instead of a personal access token. Rendered image
// downloads are sent without credentials.
func NewOAuthClient(ts oauth2.TokenSource) *Client {
	c := NewClient("")
	c.httpClient = &http.Client{
		Timeout:   10 * time.Minute,
		Transport: &oauth2.Transport{Source: ts, Base: c.downloadClient.Transport},
	}
	return c
}

const (
	defaultRequestInterval = 200 * time.Millisecond
	defaultRequestBurst    = 10
)

func newTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 10,
		// Disable HTTP/2 to avoid stream errors with large files
		ForceAttemptHTTP2: false,
	}
}

// SetBaseURL points the client at a different API root, e.g. a test server.
func (c *Client) SetBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// SetBackoff changes the base delay between retries. Attempt n waits n*d.
func (c *Client) SetBackoff(d time.Duration) *Client {
	c.backoff = d
	return c
}

// SetRateLimit allows one API request per interval with bursts of up to
// burst requests. Downloads of rendered images are not limited.
func (c *Client) SetRateLimit(interval time.Duration, burst int) *Client {
	c.limiter = rate.NewLimiter(rate.Every(interval), burst)
	return c
}

// GetFile retrieves complete file data including the document structure.
func (c *Client) GetFile(ctx context.Context, fileKey string) (*FileResponse, error) {
	var fileResp FileResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/files/%s", c.baseURL, fileKey), &fileResp); err != nil {
		return nil, err
	}
	fileResp.Document.Normalize()
	return &fileResp, nil
}

// GetFileNodes retrieves the subtrees rooted at the given node IDs.
func (c *Client) GetFileNodes(ctx context.Context, fileKey string, nodeIDs []string) (*NodesResponse, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(nodeIDs, ","))

	var nodesResp NodesResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/files/%s/nodes?%s", c.baseURL, fileKey, q.Encode()), &nodesResp); err != nil {
		return nil, err
	}
	for id, nd := range nodesResp.Nodes {
		nd.Document.Normalize()
		nodesResp.Nodes[id] = nd
	}
	return &nodesResp, nil
}

// GetImages asks the render API for download URLs of the given nodes.
// Format is "png" or "svg"; scale is ignored by Figma for svg.
func (c *Client) GetImages(ctx context.Context, fileKey string, nodeIDs []string, format string, scale float64) (*ImagesResponse, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(nodeIDs, ","))
	q.Set("format", format)
	if format != "svg" {
		q.Set("scale", strconv.FormatFloat(scale, 'g', -1, 64))
	}

	var imgResp ImagesResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/images/%s?%s", c.baseURL, fileKey, q.Encode()), &imgResp); err != nil {
		return nil, err
	}
	if imgResp.Err != "" {
		return nil, fmt.Errorf("render API error: %s", imgResp.Err)
	}
	return &imgResp, nil
}

// Download fetches a rendered image from its temporary URL.
func (c *Client) Download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d downloading image", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// getJSON performs an authenticated GET and decodes the body into v.
// It retries up to maxRetries times on transport errors, 429 and 5xx responses.
func (c *Client) getJSON(ctx context.Context, endpoint string, v any) error {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		body, retry, err := c.get(ctx, endpoint, attempt)
		if err == nil {
			if err := json.Unmarshal(body, v); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			return nil
		}

		lastErr = err
		if !retry || attempt == maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}

	return lastErr
}

func (c *Client) get(ctx context.Context, endpoint string, attempt int) ([]byte, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	if c.accessToken != "" {
		req.Header.Set("X-Figma-Token", c.accessToken)
	}
	// Disable HTTP/2 to avoid stream errors with large files
	req.Header.Set("Connection", "close")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("attempt %d failed to execute request: %w", attempt, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retry, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("attempt %d failed to read response body: %w", attempt, err)
	}

	return body, false, nil
}
