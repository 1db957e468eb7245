package store

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("store is closed")

// KV is a string-keyed persistent string store.
// Get returns ok=false (and a nil error) when the key is absent.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

const (
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Backends lists the accepted values for Options.Backend.
var Backends = []string{BackendBadger, BackendRedis, BackendSQLite, BackendMemory}

// Options selects and configures a KV backend.
type Options struct {
	Backend string
	// Path is the badger directory or sqlite file.
	Path string
	// RedisURL is a redis:// URL or a bare host:port.
	RedisURL string
	// Prefix namespaces keys in shared backends (redis).
	Prefix string
}

// Open returns the backend named by opts.Backend.
func Open(opts Options) (KV, error) {
	switch opts.Backend {
	case BackendBadger, "":
		return NewBadgerKV(opts.Path)
	case BackendRedis:
		return NewRedisKV(opts.RedisURL, opts.Prefix)
	case BackendSQLite:
		return NewSQLiteKV(opts.Path)
	case BackendMemory:
		return NewMemoryKV(), nil
	default:
		return nil, errors.New("unknown store backend: " + opts.Backend)
	}
}
