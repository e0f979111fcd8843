package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kataras/figma-assets/pkg/assets"
	"github.com/kataras/figma-assets/pkg/figma"
)

// DefaultTimeout bounds every request when no other timeout is configured.
const DefaultTimeout = 10 * time.Second

var (
	// ErrTimeout is returned when no reply arrives in time.
	ErrTimeout = errors.New("bridge: request timed out")
	// ErrRemote wraps failures reported by the storage side.
	ErrRemote = errors.New("bridge: storage side failed")
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Client is the MAIN_WORLD side of the bridge. It is safe for concurrent
// use; concurrent requests of the same type are told apart by their IDs.
type Client struct {
	ch      Channel
	sub     Subscription
	origin  string
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan Envelope
	done    chan struct{}
}

// NewClient subscribes to ch and returns a client. origin is recorded as the
// design URL of assets saved without one.
func NewClient(ctx context.Context, ch Channel, origin string, opts ...ClientOption) (*Client, error) {
	sub, err := ch.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	c := &Client{
		ch:      ch,
		sub:     sub,
		origin:  origin,
		timeout: DefaultTimeout,
		pending: make(map[string]chan Envelope),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.dispatch()
	return c, nil
}

// Origin returns the design URL recorded on saved assets.
func (c *Client) Origin() string { return c.origin }

func (c *Client) dispatch() {
	defer close(c.done)

	for env := range c.sub.C() {
		if env.Source != SourceIsolated || env.ID == "" {
			continue
		}

		c.mu.Lock()
		waiter, ok := c.pending[env.ID]
		if ok {
			delete(c.pending, env.ID)
		}
		c.mu.Unlock()

		if ok {
			waiter <- env
		}
	}
}

// Close stops the client. Pending requests fail with ErrClosed.
func (c *Client) Close() error {
	err := c.sub.Close()
	<-c.done
	return err
}

func (c *Client) request(ctx context.Context, typ MessageType, payload, result any) error {
	env := Envelope{Source: SourceMainWorld, Type: typ, ID: newRequestID()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", typ, err)
		}
		env.Payload = raw
	}

	waiter := make(chan Envelope, 1)
	c.mu.Lock()
	c.pending[env.ID] = waiter
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, env.ID)
		c.mu.Unlock()
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	if err := c.ch.Publish(ctx, env); err != nil {
		return fmt.Errorf("publish %s: %w", typ, err)
	}

	var reply Envelope
	select {
	case reply = <-waiter:
	case <-timer.C:
		return fmt.Errorf("%w: %s after %s", ErrTimeout, typ, c.timeout)
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}

	if reply.Type != typ {
		return fmt.Errorf("%w: reply type %s for %s request", ErrRemote, reply.Type, typ)
	}
	if reply.Error != "" {
		return fmt.Errorf("%w: %s", ErrRemote, reply.Error)
	}
	if result != nil && len(reply.Result) > 0 {
		if err := json.Unmarshal(reply.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", typ, err)
		}
	}
	return nil
}

// GetUploadConfig returns the stored upload configuration, or the defaults.
func (c *Client) GetUploadConfig(ctx context.Context) (assets.UploadConfig, error) {
	var cfg assets.UploadConfig
	if err := c.request(ctx, TypeGetUploadConfig, nil, &cfg); err != nil {
		return assets.UploadConfig{}, err
	}
	return cfg, nil
}

// GetSavedAssets returns every saved asset.
func (c *Client) GetSavedAssets(ctx context.Context) ([]assets.Asset, error) {
	list := []assets.Asset{}
	if err := c.request(ctx, TypeGetSavedAssets, nil, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []assets.Asset{}
	}
	return list, nil
}

// SaveAsset stores a. A missing ID, design URL or timestamp is filled in
// before sending.
func (c *Client) SaveAsset(ctx context.Context, a assets.Asset) error {
	if a.ID == "" {
		a.ID = assets.NewID()
	}
	if a.DesignURL == "" {
		a.DesignURL = c.origin
	}
	if a.CreatedAt == 0 {
		a.CreatedAt = assets.Now()
	}
	if a.UpdatedAt == 0 {
		a.UpdatedAt = a.CreatedAt
	}
	if err := a.Validate(); err != nil {
		return err
	}

	var res MutationResult
	if err := c.request(ctx, TypeSaveAsset, a, &res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%w: save asset %s", ErrRemote, a.NodeID)
	}
	return nil
}

// SaveImage records an uploaded image of the node.
func (c *Client) SaveImage(ctx context.Context, node *figma.Node, imageURL string) error {
	return c.SaveAsset(ctx, assets.Asset{NodeID: node.ID, Type: assets.TypeImage, ImageURL: imageURL})
}

// SaveSVG exports the node as SVG through host and records the markup.
func (c *Client) SaveSVG(ctx context.Context, host figma.Host, node *figma.Node) error {
	svg, err := host.ExportSVG(ctx, node)
	if err != nil {
		return fmt.Errorf("export svg %s: %w", node.ID, err)
	}
	return c.SaveAsset(ctx, assets.Asset{NodeID: node.ID, Type: assets.TypeSVG, SVGString: svg})
}

// DeleteAsset removes the asset with the given ID. Deleting a missing asset
// succeeds.
func (c *Client) DeleteAsset(ctx context.Context, id string) error {
	var res MutationResult
	if err := c.request(ctx, TypeDeleteAsset, id, &res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%w: delete asset %s", ErrRemote, id)
	}
	return nil
}
