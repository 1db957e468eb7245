// Package favorites persists the ordered list of saved article ids.
package favorites

import (
	"context"
	"encoding/json"

	"ai-newsletter/internal/apperr"
	"ai-newsletter/internal/store"

	"go.uber.org/zap"
)

// StorageKey is the fixed, versionless key the id list lives under.
const StorageKey = "ai-newsletter-saved-articles"

// Store wraps a KV and owns the saved-id list. A nil KV behaves like an
// unavailable backend: reads are empty and writes fail softly.
type Store struct {
	kv     store.KV
	logger *zap.Logger
}

func New(kv store.KV, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{kv: kv, logger: logger.With(zap.String("component", "favorites"))}
}

// GetSaved returns the saved ids in insertion order. Missing, unreadable or
// malformed data yields an empty list; the failure is only logged.
func (s *Store) GetSaved(ctx context.Context) []string {
	ids, err := s.read(ctx)
	if err != nil {
		s.logger.Warn("Favorites unavailable, treating as empty", zap.Error(err))
		return []string{}
	}
	return ids
}

func (s *Store) read(ctx context.Context) ([]string, error) {
	if s.kv == nil {
		return nil, apperr.NewPersistence(apperr.OpRead, StorageKey, store.ErrClosed)
	}

	raw, ok, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		return nil, apperr.NewPersistence(apperr.OpRead, StorageKey, err)
	}
	if !ok || raw == "" {
		return []string{}, nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, apperr.NewPersistence(apperr.OpRead, StorageKey, err)
	}
	if ids == nil {
		// A stored JSON null.
		ids = []string{}
	}
	return ids, nil
}

// SetSaved replaces the stored list with ids.
func (s *Store) SetSaved(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	if s.kv == nil {
		return apperr.NewPersistence(apperr.OpWrite, StorageKey, store.ErrClosed)
	}

	data, err := json.Marshal(ids)
	if err != nil {
		return apperr.NewPersistence(apperr.OpWrite, StorageKey, err)
	}
	if err := s.kv.Set(ctx, StorageKey, string(data)); err != nil {
		return apperr.NewPersistence(apperr.OpWrite, StorageKey, err)
	}
	return nil
}

// Contains reports whether id is currently saved.
func (s *Store) Contains(ctx context.Context, id string) bool {
	for _, saved := range s.GetSaved(ctx) {
		if saved == id {
			return true
		}
	}
	return false
}

// Add appends id unless it is already present.
func (s *Store) Add(ctx context.Context, id string) error {
	ids := s.GetSaved(ctx)
	for _, saved := range ids {
		if saved == id {
			return nil
		}
	}
	return s.SetSaved(ctx, append(ids, id))
}

// Remove drops every occurrence of id.
func (s *Store) Remove(ctx context.Context, id string) error {
	ids := s.GetSaved(ctx)
	kept := ids[:0]
	for _, saved := range ids {
		if saved != id {
			kept = append(kept, saved)
		}
	}
	return s.SetSaved(ctx, kept)
}
