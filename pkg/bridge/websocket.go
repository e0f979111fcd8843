package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

const (
	peerSendBuffer = 64
	writeTimeout   = 10 * time.Second
)

// DefaultReadLimit is the largest envelope, in bytes, a WebSocket endpoint
// accepts unless WithReadLimit says otherwise.
const DefaultReadLimit int64 = 64 << 20

// WebSocketOption configures a Hub or a WebSocketChannel.
type WebSocketOption func(*wsOptions)

type wsOptions struct {
	readLimit int64
}

// WithReadLimit sets the largest incoming message in bytes. A negative
// limit disables the check.
func WithReadLimit(n int64) WebSocketOption {
	return func(o *wsOptions) {
		o.readLimit = n
	}
}

func newWSOptions(opts []WebSocketOption) wsOptions {
	o := wsOptions{readLimit: DefaultReadLimit}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Hub relays envelopes between WebSocket peers connected to its /bridge
// endpoint. It is also a Channel itself, so an in-process Server can answer
// the peers directly.
type Hub struct {
	local  *MemoryChannel
	router chi.Router
	log    *logrus.Entry

	origins   []string
	readLimit int64

	mu    sync.RWMutex
	peers map[*peer]struct{}
}

type peer struct {
	conn *websocket.Conn
	send chan Envelope
}

var _ Channel = (*Hub)(nil)

// NewHub returns a hub accepting browser connections from allowedOrigins
// (host patterns such as "www.figma.com" or "localhost:*"). No origins
// means any origin.
func NewHub(allowedOrigins []string, opts ...WebSocketOption) *Hub {
	h := &Hub{
		local:     NewMemoryChannel(),
		log:       logrus.WithField("component", "BridgeHub"),
		origins:   allowedOrigins,
		readLimit: newWSOptions(opts).readLimit,
		peers:     make(map[*peer]struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			return h.allowOrigin(origin)
		},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/bridge", h.handleBridge)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		h.mu.RLock()
		n := len(h.peers)
		h.mu.RUnlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","peers":%d}`, n)
	})

	h.router = r
	return h
}

func (h *Hub) allowOrigin(origin string) bool {
	if len(h.origins) == 0 {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	for _, pattern := range h.origins {
		if ok, _ := path.Match(pattern, u.Host); ok {
			return true
		}
	}
	return false
}

// ServeHTTP implements http.Handler.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Publish implements Channel by broadcasting env to every peer and local
// subscriber.
func (h *Hub) Publish(ctx context.Context, env Envelope) error {
	return h.broadcast(ctx, env)
}

// Subscribe implements Channel. Local subscribers see envelopes from every
// peer as well as those published through the hub.
func (h *Hub) Subscribe(ctx context.Context) (Subscription, error) {
	return h.local.Subscribe(ctx)
}

// Close disconnects every peer and closes local subscriptions.
func (h *Hub) Close() error {
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
		delete(h.peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		p.conn.Close(websocket.StatusGoingAway, "hub closed")
	}
	return h.local.Close()
}

func (h *Hub) broadcast(ctx context.Context, env Envelope) error {
	if err := h.local.Publish(ctx, env); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for p := range h.peers {
		select {
		case p.send <- env:
		default:
			h.log.WithField("type", env.Type).Warn("Peer is not reading, envelope dropped")
		}
	}
	return nil
}

func (h *Hub) handleBridge(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{InsecureSkipVerify: len(h.origins) == 0}
	if !opts.InsecureSkipVerify {
		opts.OriginPatterns = h.origins
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket accept failed")
		return
	}
	conn.SetReadLimit(h.readLimit)

	p := &peer{conn: conn, send: make(chan Envelope, peerSendBuffer)}
	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()
	h.log.WithField("remote", r.RemoteAddr).Info("Peer connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		h.mu.Lock()
		delete(h.peers, p)
		h.mu.Unlock()
		conn.CloseNow()
		h.log.WithField("remote", r.RemoteAddr).Info("Peer disconnected")
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case env := <-p.send:
				wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
				err := wsjson.Write(wctx, conn, env)
				wcancel()
				if err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		var env Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				h.log.WithError(err).Debug("Peer read failed")
			}
			return
		}
		if err := h.broadcast(ctx, env); err != nil {
			return
		}
	}
}

// WebSocketChannel is the client side of a Hub connection.
type WebSocketChannel struct {
	conn   *websocket.Conn
	local  *MemoryChannel
	cancel context.CancelFunc
	done   chan struct{}
}

var _ Channel = (*WebSocketChannel)(nil)

// DialWebSocket connects to a Hub's /bridge endpoint, e.g.
// "ws://localhost:8787/bridge".
func DialWebSocket(ctx context.Context, rawURL string, opts ...WebSocketOption) (*WebSocketChannel, error) {
	conn, _, err := websocket.Dial(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial bridge hub: %w", err)
	}
	conn.SetReadLimit(newWSOptions(opts).readLimit)

	readCtx, cancel := context.WithCancel(context.Background())
	c := &WebSocketChannel{
		conn:   conn,
		local:  NewMemoryChannel(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go c.readLoop(readCtx)
	return c, nil
}

func (c *WebSocketChannel) readLoop(ctx context.Context) {
	defer close(c.done)
	defer c.local.Close()

	for {
		var env Envelope
		if err := wsjson.Read(ctx, c.conn, &env); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				logrus.WithField("component", "BridgeWebSocket").WithError(err).Warn("Hub connection lost")
			}
			return
		}
		_ = c.local.Publish(ctx, env)
	}
}

// Publish implements Channel. The hub echoes env back to this connection,
// so local subscribers receive it as well.
func (c *WebSocketChannel) Publish(ctx context.Context, env Envelope) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	return wsjson.Write(ctx, c.conn, env)
}

// Subscribe implements Channel.
func (c *WebSocketChannel) Subscribe(ctx context.Context) (Subscription, error) {
	return c.local.Subscribe(ctx)
}

// Close closes the connection.
func (c *WebSocketChannel) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "")
	c.cancel()
	<-c.done
	return err
}
