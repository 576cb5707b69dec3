// Package matcher finds the category whose reference vector is closest to an
// item vector by cosine similarity.
package matcher

import (
	"math"

	"github.com/okian/hooklens/internal/domain/vector"
)

// Reference is a category's id and reference vector.
type Reference struct {
	ID     string
	Name   string
	Vector []float32
}

// Match is the winning category and its similarity.
type Match struct {
	ID         string
	Name       string
	Similarity float64
}

// Confidence clamps similarity into [0,1].
func (m Match) Confidence() float64 {
	return math.Max(0, math.Min(1, m.Similarity))
}

// Best returns the reference with the highest cosine similarity to item.
// References are scanned in order and only a strictly greater score replaces
// the current best, so the first-seen reference wins ties. References that
// cannot be compared (zero magnitude, wrong dimension, absent vector) are
// skipped. ok is false when no reference produced a similarity, which the
// caller treats as "use the rule fallback".
func Best(item []float32, refs []Reference) (m Match, ok bool) {
	if len(item) == 0 || vector.Norm(item) == 0 {
		return Match{}, false
	}

	best := Match{Similarity: math.Inf(-1)}
	for _, ref := range refs {
		if len(ref.Vector) == 0 {
			continue
		}
		sim, err := vector.Cosine(item, ref.Vector)
		if err != nil {
			continue
		}
		if !ok || sim > best.Similarity {
			best = Match{ID: ref.ID, Name: ref.Name, Similarity: sim}
			ok = true
		}
	}
	if !ok {
		return Match{}, false
	}
	return best, true
}
