package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type redisArea struct {
	rdb    *goredis.Client
	prefix string
	owned  bool
}

// NewRedisURL connects to the Redis server at rawURL and returns an Area whose
// keys are prefixed with prefix.
func NewRedisURL(ctx context.Context, rawURL, prefix string) (Area, error) {
	opts, err := goredis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second

	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisArea{rdb: rdb, prefix: prefix, owned: true}, nil
}

func (a *redisArea) Get(ctx context.Context, key string, v any) (bool, error) {
	data, err := a.rdb.Get(ctx, a.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			logrus.WithField("key", key).Debug("Key not found")
			return false, nil
		}
		logrus.WithField("key", key).WithError(err).Error("Failed to read value")
		return false, err
	}
	return true, decode(key, data, v)
}

func (a *redisArea) Set(ctx context.Context, key string, v any) error {
	data, err := encode(key, v)
	if err != nil {
		return err
	}
	if err := a.rdb.Set(ctx, a.prefix+key, data, 0).Err(); err != nil {
		logrus.WithField("key", key).WithError(err).Error("Failed to store value")
		return err
	}
	return nil
}

func (a *redisArea) Remove(ctx context.Context, key string) error {
	return a.rdb.Del(ctx, a.prefix+key).Err()
}

func (a *redisArea) Close() error {
	if !a.owned {
		return nil
	}
	return a.rdb.Close()
}
