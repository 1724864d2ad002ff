// Package dataset loads and indexes the chatbot's (query, intent, response)
// corpus.
package dataset

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"barangay-helpdesk/internal/domain"
)

const defaultSampleLimit = 5

// Store holds the parsed dataset and its intent index. The resource is
// fetched at most once; a failed fetch leaves the store loaded and empty.
type Store struct {
	src    Source
	logger *slog.Logger

	mu       sync.RWMutex
	loaded   bool
	entries  []domain.DatasetEntry
	intents  []string
	byIntent map[string][]domain.DatasetEntry
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Store reading from src. A nil src yields an empty corpus.
func New(src Source, opts ...Option) *Store {
	s := &Store{
		src:      src,
		logger:   slog.Default(),
		byIntent: map[string][]domain.DatasetEntry{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromEntries creates an already loaded Store, mostly for tests and tools.
func NewFromEntries(entries []domain.DatasetEntry) *Store {
	s := New(nil)
	s.index(entries)
	s.loaded = true
	return s
}

// Load fetches and indexes the dataset. Calls after the first completed load
// are no-ops; a load cut short by ctx is retried on the next call.
func (s *Store) Load(ctx context.Context) {
	s.mu.RLock()
	if s.loaded {
		s.mu.RUnlock()
		return
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return
	}

	entries, err := s.fetch(ctx)
	if err != nil && ctx.Err() != nil {
		s.logger.Warn("dataset load interrupted, will retry", "err", err)
		return
	}
	if err != nil {
		s.logger.Warn("dataset unavailable, continuing with empty corpus", "err", err)
		entries = nil
	}
	s.index(entries)
	s.loaded = true
	s.logger.Info("dataset loaded", "entries", len(s.entries), "intents", len(s.intents))
}

func (s *Store) fetch(ctx context.Context) ([]domain.DatasetEntry, error) {
	if s.src == nil {
		return nil, errors.New("dataset: no source configured")
	}
	raw, err := s.src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(raw))
}

// index must be called with mu held for writing (or before publication).
func (s *Store) index(entries []domain.DatasetEntry) {
	s.entries = slices.Clip(entries)
	s.intents = nil
	s.byIntent = make(map[string][]domain.DatasetEntry)
	for _, e := range s.entries {
		if _, ok := s.byIntent[e.Intent]; !ok {
			s.intents = append(s.intents, e.Intent)
		}
		s.byIntent[e.Intent] = append(s.byIntent[e.Intent], e)
	}
}

// Loaded reports whether Load has completed.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// All returns every entry in file order. The slice must not be modified.
func (s *Store) All() []domain.DatasetEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ForIntent returns the entries tagged with intent, or nil.
func (s *Store) ForIntent(intent string) []domain.DatasetEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.byIntent[intent])
}

// Intents lists intent names in first-seen order.
func (s *Store) Intents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.intents)
}

// SampleQueries returns up to limit example queries for intent. A
// non-positive limit uses the default of five.
func (s *Store) SampleQueries(intent string, limit int) []string {
	if limit <= 0 {
		limit = defaultSampleLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.byIntent[intent]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Query)
	}
	return out
}

// ResponseForIntent returns the response of the first entry tagged intent.
func (s *Store) ResponseForIntent(intent string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.byIntent[intent]
	if len(entries) == 0 {
		return "", false
	}
	return entries[0].Response, true
}
