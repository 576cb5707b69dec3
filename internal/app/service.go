// Package service runs classification passes over the content store and
// maintains taxonomy categories.
package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/hooklens/internal/adapters/repository"
	"github.com/okian/hooklens/internal/domain/types"
	"github.com/okian/hooklens/pkg/logger"
	"github.com/okian/hooklens/pkg/metrics"
)

// DefaultBatchSize is the candidate page size.
const DefaultBatchSize = 100

// Embedder turns texts into vectors, one slot per text in input order. A nil
// slot means no vector is available for that text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) [][]float32
}

// Service classifies content items against one taxonomy per run.
type Service struct {
	store     repository.Store
	embedder  Embedder
	batchSize int
	logger    logger.Logger
	metrics   *metrics.Manager
	now       func() time.Time
	newRunID  func() string
	observe   func(State)

	mu       sync.RWMutex
	lastRuns map[types.Kind]Summary
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithEmbedder sets the embedder. Without one every taxonomy is rule scored.
func WithEmbedder(e Embedder) Option {
	return func(s *Service) {
		s.embedder = e
	}
}

// WithBatchSize sets how many candidates are selected per batch.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics manager. Defaults to the global one.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithStateObserver registers a callback invoked on every loop state entered.
func WithStateObserver(fn func(State)) Option {
	return func(s *Service) {
		s.observe = fn
	}
}

// New constructs a Service over store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		batchSize: DefaultBatchSize,
		logger:    logger.Nop(),
		metrics:   metrics.Global(),
		now:       time.Now,
		newRunID:  uuid.NewString,
		lastRuns:  map[types.Kind]Summary{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LastRun returns the summary of the most recent run for kind.
func (s *Service) LastRun(kind types.Kind) (Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.lastRuns[kind]
	return sum, ok
}

// Runs returns the latest summary of every taxonomy run so far.
func (s *Service) Runs() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, 0, len(s.lastRuns))
	for _, sum := range s.lastRuns {
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Taxonomy < out[j].Taxonomy })
	return out
}

func (s *Service) recordRun(sum Summary) {
	s.mu.Lock()
	s.lastRuns[sum.Taxonomy] = sum
	s.mu.Unlock()
}
