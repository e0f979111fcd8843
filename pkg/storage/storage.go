// Package storage provides whole-value key/value areas used to persist the
// upload configuration and the saved asset list.
//
// Every value is JSON encoded and written in one piece; there are no partial
// updates. Backends are selected by a DSN, see Open.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// Area is a flat key/value store holding JSON blobs.
type Area interface {
	// Get decodes the value stored under key into v. It reports false, and
	// leaves v untouched, when the key does not exist.
	Get(ctx context.Context, key string, v any) (bool, error)
	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, v any) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Close releases the backend's resources.
	Close() error
}

// Open returns the Area described by dsn:
//
//	memory://                      in-process map (also the empty string)
//	file:///var/lib/figma-assets   one JSON file per key
//	sqlite:///var/lib/assets.db    single kv table
//	redis://localhost:6379/0?prefix=figma-assets:
//	s3://bucket/prefix             one object per key
func Open(ctx context.Context, dsn string) (Area, error) {
	if dsn == "" || dsn == "memory" {
		dsn = "memory://"
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse storage DSN: %w", err)
	}

	fields := logrus.Fields{"backend": u.Scheme}
	var area Area

	switch u.Scheme {
	case "memory":
		area = NewMemory()
	case "file":
		dir := u.Host + u.Path
		fields["dir"] = dir
		area, err = NewFilesystem(dir)
	case "sqlite":
		path := u.Host + u.Path
		fields["path"] = path
		area, err = NewSQLite(ctx, path)
	case "redis":
		prefix := u.Query().Get("prefix")
		q := u.Query()
		q.Del("prefix")
		u.RawQuery = q.Encode()
		fields["prefix"] = prefix
		area, err = NewRedisURL(ctx, u.String(), prefix)
	case "s3":
		prefix := strings.TrimPrefix(u.Path, "/")
		fields["bucket"] = u.Host
		fields["prefix"] = prefix
		area, err = NewS3(ctx, u.Host, prefix)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", u.Scheme)
	}
	if err != nil {
		return nil, err
	}

	logrus.WithFields(fields).Debug("Use storage")
	return area, nil
}

func encode(key string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", key, err)
	}
	return data, nil
}

func decode(key string, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %q: %w", key, err)
	}
	return nil
}
