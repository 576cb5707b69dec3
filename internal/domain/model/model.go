// Package model contains domain models passed between layers.
package model

import "github.com/okian/hooklens/internal/domain/types"

// Method records how a category was chosen.
type Method string

// Classification methods.
const (
	MethodEmbedding Method = "embedding"
	MethodRule      Method = "rule"
)

// ContentItem is a post as the classifier sees it. Labels maps a taxonomy's
// label field to its category id; a missing key means unclassified.
type ContentItem struct {
	ID     string
	Body   string
	Hook   string
	Labels map[string]string
}

// Text returns the text to classify for kind k.
func (c ContentItem) Text(k types.Kind) string {
	return k.Text(c.Body, c.Hook)
}

// CategoryRecord is a category row as stored, before the reference vector
// is decoded and the patterns compiled.
type CategoryRecord struct {
	ID          string
	Kind        types.Kind
	Name        string
	Description string
	Embedding   []byte // vector.Encode output or legacy text; nil when absent
	Keywords    []string
	Patterns    []string
}

// Result is the outcome of classifying one item for one taxonomy.
type Result struct {
	ItemID     string
	Kind       types.Kind
	CategoryID string
	Category   string
	Confidence float64
	Method     Method
}
