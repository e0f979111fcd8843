package bridge

import (
	"context"
	"fmt"
	"strings"
)

// DefaultRedisChannel is the Redis channel name used when the DSN names none.
const DefaultRedisChannel = "figma-assets:bridge"

// Open returns the channel described by dsn:
//
//	"" or "memory"                in-process
//	redis://host:6379/0#name      Redis pub/sub on channel name
//	ws://host:8787/bridge         a Hub connection
func Open(ctx context.Context, dsn string) (Channel, error) {
	switch {
	case dsn == "" || dsn == "memory" || dsn == "memory://":
		return NewMemoryChannel(), nil
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		rawURL, name, _ := strings.Cut(dsn, "#")
		if name == "" {
			name = DefaultRedisChannel
		}
		return DialRedis(ctx, rawURL, name)
	case strings.HasPrefix(dsn, "ws://"), strings.HasPrefix(dsn, "wss://"):
		return DialWebSocket(ctx, dsn)
	default:
		return nil, fmt.Errorf("bridge: unsupported channel %q", dsn)
	}
}
