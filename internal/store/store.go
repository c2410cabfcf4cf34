// Package store keeps the history of completed MPT analyses.
//
// Three implementations satisfy [Store]: [MemStore] for single-process use
// and tests, [PostgresStore] for durable history, and [Guarded], which wraps
// either behind a circuit breaker so that a failing database never delays an
// analysis response.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/mptmeter/internal/mpt"
)

// ErrNotFound is returned by [Store.Get] when no record has the given ID.
var ErrNotFound = errors.New("store: analysis not found")

// Source labels where an analysis came from.
type Source string

const (
	SourceUpload Source = "upload"
	SourceStream Source = "stream"
	SourceCLI    Source = "cli"
)

// Record is one persisted analysis.
type Record struct {
	ID        uuid.UUID  `json:"id"`
	CreatedAt time.Time  `json:"createdAt"`
	Source    Source     `json:"source"`
	Result    mpt.Result `json:"result"`

	// CorrelationID is the trace ID of the request that produced the
	// analysis, empty when tracing was off.
	CorrelationID string `json:"correlationId,omitempty"`
}

// NewRecord stamps res with a fresh random ID and the current time.
func NewRecord(src Source, res mpt.Result) Record {
	return Record{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Source:    src,
		Result:    res,
	}
}

// Store persists analysis records. Implementations must be safe for
// concurrent use.
type Store interface {
	// Save persists rec. Saving an ID twice is an error.
	Save(ctx context.Context, rec Record) error

	// Get returns the record with id or [ErrNotFound].
	Get(ctx context.Context, id uuid.UUID) (Record, error)

	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]Record, error)
}
