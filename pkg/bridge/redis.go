package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisChannel is a Channel on a Redis pub/sub channel, so the two sides of
// the bridge can run in different processes.
type RedisChannel struct {
	rdb     goredis.UniversalClient
	name    string
	ownsRDB bool
	log     *logrus.Entry
}

var _ Channel = (*RedisChannel)(nil)

// NewRedisChannel returns a channel publishing on the Redis channel name.
// Closing it does not close rdb.
func NewRedisChannel(rdb goredis.UniversalClient, name string) *RedisChannel {
	if name == "" {
		name = DefaultRedisChannel
	}
	return &RedisChannel{
		rdb:  rdb,
		name: name,
		log:  logrus.WithFields(logrus.Fields{"component": "RedisChannel", "channel": name}),
	}
}

// DialRedis connects to the Redis server at rawURL and returns a channel that
// owns the connection.
func DialRedis(ctx context.Context, rawURL, name string) (*RedisChannel, error) {
	opts, err := goredis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	c := NewRedisChannel(rdb, name)
	c.ownsRDB = true
	return c, nil
}

// Publish implements Channel.
func (c *RedisChannel) Publish(ctx context.Context, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.rdb.Publish(ctx, c.name, raw).Err()
}

// Subscribe implements Channel. The subscription is confirmed by the server
// before it is returned, so nothing published afterwards is missed.
func (c *RedisChannel) Subscribe(ctx context.Context) (Subscription, error) {
	ps := c.rdb.Subscribe(ctx, c.name)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	q := newQueue(func() { _ = ps.Close() })

	go func() {
		for m := range ps.Channel() {
			var env Envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				c.log.WithError(err).Warn("Bad bridge payload")
				continue
			}
			q.push(env)
		}
		q.Close()
	}()

	return q, nil
}

// Close releases the Redis connection when the channel owns it.
func (c *RedisChannel) Close() error {
	if !c.ownsRDB {
		return nil
	}
	return c.rdb.Close()
}
