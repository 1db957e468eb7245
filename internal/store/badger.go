package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// BadgerKV keeps values in a local badger directory.
type BadgerKV struct {
	db *badger.DB
}

// NewBadgerKV opens (or creates) the badger directory at path.
// An empty path runs badger in memory.
func NewBadgerKV(path string) (*BadgerKV, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	} else if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating badger dir: %w", err)
	}
	opts.Logger = nil // Silence default logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerKV{db: db}, nil
}

func (s *BadgerKV) Get(_ context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *BadgerKV) Set(_ context.Context, key, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
}

func (s *BadgerKV) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
