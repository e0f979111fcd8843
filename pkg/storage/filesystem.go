package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

type fsArea struct {
	basePath string
}

// NewFilesystem returns an Area storing each key as a JSON file under basePath.
func NewFilesystem(basePath string) (Area, error) {
	if basePath == "" {
		return nil, fmt.Errorf("filesystem storage: empty base path")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &fsArea{basePath: basePath}, nil
}

// fileName maps a key to a file name; distinct keys never share a file
// ("asset:saved:list" -> "asset%3Asaved%3Alist.json").
func fileName(key string) string {
	return url.QueryEscape(key) + ".json"
}

func (a *fsArea) path(key string) string {
	return filepath.Join(a.basePath, fileName(key))
}

func (a *fsArea) Get(ctx context.Context, key string, v any) (bool, error) {
	filePath := a.path(key)
	log := logrus.WithFields(logrus.Fields{"key": key, "file_path": filePath})

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("Key not found")
			return false, nil
		}
		log.WithError(err).Error("Failed to read value")
		return false, err
	}

	return true, decode(key, data, v)
}

// Set writes to a temporary file of its own and renames it over the key's
// file, so readers and concurrent writers never observe a half-written value.
func (a *fsArea) Set(ctx context.Context, key string, v any) error {
	data, err := encode(key, v)
	if err != nil {
		return err
	}

	filePath := a.path(key)
	log := logrus.WithFields(logrus.Fields{"key": key, "file_path": filePath})

	tmp, err := os.CreateTemp(a.basePath, fileName(key)+".*.tmp")
	if err != nil {
		log.WithError(err).Error("Failed to create temporary file")
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		log.WithError(err).Error("Failed to write value")
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		log.WithError(err).Error("Failed to write value")
		return err
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		log.WithError(err).Error("Failed to replace value")
		return err
	}

	log.Debug("Value stored")
	return nil
}

func (a *fsArea) Remove(ctx context.Context, key string) error {
	err := os.Remove(a.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (a *fsArea) Close() error { return nil }
