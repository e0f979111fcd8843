package bridge

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when publishing on or subscribing to a closed channel.
var ErrClosed = errors.New("bridge: channel closed")

// Channel is a broadcast medium: every envelope published reaches every
// current subscriber, the publisher's own subscriptions included.
type Channel interface {
	Publish(ctx context.Context, env Envelope) error
	Subscribe(ctx context.Context) (Subscription, error)
	Close() error
}

// Subscription receives the envelopes published after it was created.
// C is closed once the subscription is closed.
type Subscription interface {
	C() <-chan Envelope
	Close() error
}

// queue is an unbounded, ordered subscription buffer. A slow reader never
// blocks the publisher.
type queue struct {
	mu     sync.Mutex
	items  []Envelope
	notify chan struct{}
	out    chan Envelope
	done   chan struct{}
	once   sync.Once
	onStop func()
}

func newQueue(onStop func()) *queue {
	q := &queue{
		notify: make(chan struct{}, 1),
		out:    make(chan Envelope),
		done:   make(chan struct{}),
		onStop: onStop,
	}
	go q.run()
	return q
}

func (q *queue) push(env Envelope) {
	q.mu.Lock()
	q.items = append(q.items, env)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *queue) run() {
	defer close(q.out)

	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			select {
			case <-q.notify:
				continue
			case <-q.done:
				return
			}
		}
		env := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- env:
		case <-q.done:
			return
		}
	}
}

func (q *queue) C() <-chan Envelope { return q.out }

func (q *queue) Close() error {
	q.once.Do(func() {
		close(q.done)
		if q.onStop != nil {
			q.onStop()
		}
	})
	return nil
}

// MemoryChannel is an in-process Channel.
type MemoryChannel struct {
	mu     sync.RWMutex
	subs   map[*queue]struct{}
	closed bool
}

var _ Channel = (*MemoryChannel)(nil)

// NewMemoryChannel returns an empty in-process channel.
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{subs: make(map[*queue]struct{})}
}

// Publish implements Channel.
func (m *MemoryChannel) Publish(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	for q := range m.subs {
		q.push(env)
	}
	return nil
}

// Subscribe implements Channel.
func (m *MemoryChannel) Subscribe(ctx context.Context) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	var q *queue
	q = newQueue(func() {
		m.mu.Lock()
		delete(m.subs, q)
		m.mu.Unlock()
	})
	m.subs[q] = struct{}{}
	return q, nil
}

// Close closes the channel and every open subscription.
func (m *MemoryChannel) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	subs := m.subs
	m.subs = make(map[*queue]struct{})
	m.mu.Unlock()

	for q := range subs {
		q.Close()
	}
	return nil
}
