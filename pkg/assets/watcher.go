package assets

import (
	"context"
	"time"
)

// DefaultWatchInterval is how often a Watcher re-reads the list on its own.
const DefaultWatchInterval = time.Minute

// ListFunc reads the current saved asset list.
type ListFunc func(ctx context.Context) ([]Asset, error)

// Snapshot is one read of the saved asset list.
type Snapshot struct {
	Assets []Asset
	Err    error
}

// Watcher re-reads the saved asset list periodically and whenever Refresh is
// called, and delivers every read on a channel.
type Watcher struct {
	list     ListFunc
	interval time.Duration
	refresh  chan struct{}
}

// NewWatcher returns a watcher around list. A non-positive interval means
// DefaultWatchInterval.
func NewWatcher(list ListFunc, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return &Watcher{
		list:     list,
		interval: interval,
		refresh:  make(chan struct{}, 1),
	}
}

// Refresh asks for an immediate re-read. Calls made while one is already
// pending are coalesced. It never blocks.
func (w *Watcher) Refresh() {
	select {
	case w.refresh <- struct{}{}:
	default:
	}
}

// Watch reads the list once right away and then on every tick or refresh,
// until ctx is done. The returned channel is closed when the watcher stops.
func (w *Watcher) Watch(ctx context.Context) <-chan Snapshot {
	out := make(chan Snapshot)

	go func() {
		defer close(out)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			assets, err := w.list(ctx)
			select {
			case out <- Snapshot{Assets: assets, Err: err}:
			case <-ctx.Done():
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-w.refresh:
			}
		}
	}()

	return out
}
