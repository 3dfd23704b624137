// Package docstore is the narrow port to the external document database. The
// core addresses conversation, note and summary records only through these
// primitives: equality filters, ordering by a single field, and a limit.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Get when no document exists for the id. Callers
// translate it into their own taxonomy.
var ErrNotFound = errors.New("document not found")

// Filter is an equality constraint on a top-level document field.
type Filter struct {
	Field string
	Value any
}

type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

type Store interface {
	// Get returns the raw document body, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
	// Set writes value as the document body. With merge, top-level fields of
	// value overlay the existing body; a nil field value deletes that field.
	Set(ctx context.Context, collection, id string, value any, merge bool) error
	Query(ctx context.Context, collection string, q Query) ([]json.RawMessage, error)
	Delete(ctx context.Context, collection, id string) error
}
