// Package match resolves visitor utterances against the chatbot dataset with
// an exact, keyword, then fuzzy cascade.
package match

import (
	"context"
	"errors"
	"log/slog"

	"barangay-helpdesk/internal/domain"
)

// Stage names the cascade step that produced a Result.
type Stage string

const (
	StageExact    Stage = "exact"
	StageKeyword  Stage = "keyword"
	StageFuzzy    Stage = "fuzzy"
	StageFallback Stage = "fallback"
)

// Acceptance thresholds. Scores must strictly exceed them.
const (
	ExactThreshold        = 0.9
	KeywordThreshold      = 0.1
	DefaultFuzzyThreshold = 0.5
)

// FallbackResponse is returned when no stage accepts a match.
const FallbackResponse = "I didn't quite understand that. Could you please clarify or be more specific?"

// Corpus is the dataset view the engine needs. *dataset.Store satisfies it.
type Corpus interface {
	Load(ctx context.Context)
	All() []domain.DatasetEntry
}

// Result is the engine's answer for one utterance.
type Result struct {
	Intent   string
	Response string
	Query    string
	Stage    Stage
	Score    float64
}

// Engine picks the best dataset entry for an utterance.
type Engine struct {
	corpus         Corpus
	fuzzyThreshold float64
	logger         *slog.Logger
}

type Option func(*Engine)

// WithFuzzyThreshold overrides the fuzzy-stage acceptance threshold.
func WithFuzzyThreshold(t float64) Option {
	return func(e *Engine) {
		if t > 0 && t < 1 {
			e.fuzzyThreshold = t
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func New(corpus Corpus, opts ...Option) (*Engine, error) {
	if corpus == nil {
		return nil, errors.New("match: corpus must not be nil")
	}
	e := &Engine{
		corpus:         corpus,
		fuzzyThreshold: DefaultFuzzyThreshold,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Resolve returns the best match for utterance, or the fallback reply. It
// loads the corpus on first use.
func (e *Engine) Resolve(ctx context.Context, utterance string) Result {
	e.corpus.Load(ctx)
	entries := e.corpus.All()
	query := Normalize(utterance)

	if r, ok := exactMatch(query, entries); ok {
		return r
	}
	if r, ok := keywordMatch(query, entries); ok {
		return r
	}
	if r, ok := fuzzyMatch(query, entries, e.fuzzyThreshold); ok {
		return r
	}
	e.logger.Debug("no dataset match", "utterance", query, "entries", len(entries))
	return Result{
		Intent:   domain.FallbackIntent,
		Response: FallbackResponse,
		Stage:    StageFallback,
	}
}

// exactMatch prefers an identical query anywhere in the corpus over the first
// near-identical one.
func exactMatch(query string, entries []domain.DatasetEntry) (Result, bool) {
	for _, entry := range entries {
		if Normalize(entry.Query) == query {
			return result(entry, StageExact, 1), true
		}
	}
	for _, entry := range entries {
		if s := Similarity(query, Normalize(entry.Query)); s > ExactThreshold {
			return result(entry, StageExact, s), true
		}
	}
	return Result{}, false
}

// keywordMatch and fuzzyMatch keep the first entry reaching the best score;
// later ties do not replace it.
func keywordMatch(query string, entries []domain.DatasetEntry) (Result, bool) {
	words := Keywords(query)
	best, bestScore := -1, KeywordThreshold
	for i, entry := range entries {
		if s := KeywordScore(words, Keywords(Normalize(entry.Query))); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 {
		return Result{}, false
	}
	return result(entries[best], StageKeyword, bestScore), true
}

func fuzzyMatch(query string, entries []domain.DatasetEntry, threshold float64) (Result, bool) {
	best, bestScore := -1, threshold
	for i, entry := range entries {
		if s := Similarity(query, Normalize(entry.Query)); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 {
		return Result{}, false
	}
	return result(entries[best], StageFuzzy, bestScore), true
}

func result(e domain.DatasetEntry, stage Stage, score float64) Result {
	return Result{
		Intent:   e.Intent,
		Response: e.Response,
		Query:    e.Query,
		Stage:    stage,
		Score:    score,
	}
}
