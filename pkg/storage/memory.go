package storage

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

type memArea struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemory returns an Area kept in process memory.
func NewMemory() Area {
	return &memArea{values: make(map[string][]byte)}
}

func (a *memArea) Get(ctx context.Context, key string, v any) (bool, error) {
	a.mu.RLock()
	data, ok := a.values[key]
	a.mu.RUnlock()

	if !ok {
		logrus.WithField("key", key).Debug("Key not found")
		return false, nil
	}
	return true, decode(key, data, v)
}

func (a *memArea) Set(ctx context.Context, key string, v any) error {
	data, err := encode(key, v)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.values[key] = data
	a.mu.Unlock()

	logrus.WithFields(logrus.Fields{"key": key, "data_length": len(data)}).Debug("Value stored")
	return nil
}

func (a *memArea) Remove(ctx context.Context, key string) error {
	a.mu.Lock()
	delete(a.values, key)
	a.mu.Unlock()
	return nil
}

func (a *memArea) Close() error { return nil }
