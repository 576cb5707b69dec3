package service

import (
	"time"

	"github.com/okian/hooklens/internal/domain/model"
	"github.com/okian/hooklens/internal/domain/types"
)

// StopReason says why a run ended.
type StopReason string

// Stop reasons.
const (
	StopExhausted StopReason = "exhausted"
	StopStalled   StopReason = "stalled"
	StopCancelled StopReason = "cancelled"
	StopFailed    StopReason = "failed"
)

// Summary reports one classification run.
type Summary struct {
	RunID      string               `json:"run_id"`
	Taxonomy   types.Kind           `json:"-"`
	Name       string               `json:"taxonomy"`
	Found      int                  `json:"found"`
	Classified int                  `json:"classified"`
	Failed     int                  `json:"failed"`
	Batches    int                  `json:"batches"`
	ByMethod   map[model.Method]int `json:"by_method"`
	Reason     StopReason           `json:"reason"`
	StartedAt  time.Time            `json:"started_at"`
	Duration   time.Duration        `json:"duration_ns"`
}

func newSummary(runID string, kind types.Kind, now time.Time) Summary {
	return Summary{
		RunID:     runID,
		Taxonomy:  kind,
		Name:      kind.String(),
		ByMethod:  map[model.Method]int{},
		StartedAt: now,
	}
}

// SeedSummary reports a reference vector generation pass.
type SeedSummary struct {
	Taxonomy types.Kind
	Eligible int
	Seeded   int
	Skipped  []string
}

// ImportSummary reports a category import, per taxonomy.
type ImportSummary struct {
	Upserted map[types.Kind]int
}

// Total returns the number of upserted categories.
func (s ImportSummary) Total() int {
	n := 0
	for _, c := range s.Upserted {
		n += c
	}
	return n
}
