package service_test

import (
	"context"
	"sync"

	"github.com/okian/hooklens/internal/adapters/repository"
	service "github.com/okian/hooklens/internal/app"
	"github.com/okian/hooklens/internal/domain/model"
	"github.com/okian/hooklens/internal/domain/types"
	"github.com/okian/hooklens/internal/domain/vector"
	"github.com/okian/hooklens/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// lookupEmbedder returns a fixed vector per known text and nil otherwise.
type lookupEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	calls   [][]string
}

func (e *lookupEmbedder) Embed(_ context.Context, texts []string) [][]float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vectors[t]
	}
	return out
}

func (e *lookupEmbedder) texts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var all []string
	for _, c := range e.calls {
		all = append(all, c...)
	}
	return all
}

// forgetfulStore acknowledges label writes without storing them.
type forgetfulStore struct {
	*repository.MemoryStore
}

func (forgetfulStore) SetLabel(context.Context, string, types.Kind, string) error { return nil }

func testMetrics() *metrics.Manager {
	return metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))
}

func mustBlob(v ...float32) []byte {
	b, err := vector.Encode(v)
	if err != nil {
		panic(err)
	}
	return b
}

func putCategories(s repository.CategoryStore, recs ...model.CategoryRecord) {
	for _, r := range recs {
		if err := s.UpsertCategory(context.Background(), r); err != nil {
			panic(err)
		}
	}
}

func newService(store repository.Store, opts ...service.Option) *service.Service {
	return service.New(store, append([]service.Option{service.WithMetrics(testMetrics())}, opts...)...)
}
