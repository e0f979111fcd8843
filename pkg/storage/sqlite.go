package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteArea struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite database holding a single kv table.
func NewSQLite(ctx context.Context, dataSourceName string) (Area, error) {
	if dataSourceName == "" {
		dataSourceName = "figma-assets.db"
	}

	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	stmt := `CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);`
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	return &sqliteArea{db: db}, nil
}

func (a *sqliteArea) Get(ctx context.Context, key string, v any) (bool, error) {
	log := logrus.WithField("key", key)

	var data []byte
	err := a.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("Key not found")
			return false, nil
		}
		log.WithError(err).Error("Failed to read value")
		return false, err
	}

	return true, decode(key, data, v)
}

func (a *sqliteArea) Set(ctx context.Context, key string, v any) error {
	data, err := encode(key, v)
	if err != nil {
		return err
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, data, time.Now().UTC())
	if err != nil {
		logrus.WithField("key", key).WithError(err).Error("Failed to store value")
		return err
	}

	logrus.WithFields(logrus.Fields{"key": key, "data_length": len(data)}).Debug("Value stored")
	return nil
}

func (a *sqliteArea) Remove(ctx context.Context, key string) error {
	_, err := a.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
	return err
}

func (a *sqliteArea) Close() error {
	return a.db.Close()
}
