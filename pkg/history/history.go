// Package history records resolution runs: what was resolved, how long
// it took, and how it ended. The server persists records when a store is
// configured; the core engine never writes history itself.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record summarizes one resolution run.
type Record struct {
	ID        string    `bson:"_id" json:"id"`
	Root      string    `bson:"root" json:"root"`
	Packages  int       `bson:"packages" json:"packages"`
	Unstable  int       `bson:"unstable" json:"unstable"`
	Duration  int64     `bson:"duration_ms" json:"duration_ms"`
	Error     string    `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// NewRecord creates a record with a fresh run id and the current time.
func NewRecord(root string) *Record {
	return &Record{
		ID:        uuid.NewString(),
		Root:      root,
		CreatedAt: time.Now().UTC(),
	}
}

// Store is the interface for run-history backends.
type Store interface {
	// Save persists a record.
	Save(ctx context.Context, rec *Record) error

	// List returns the most recent records, newest first.
	List(ctx context.Context, limit int) ([]Record, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// NullStore discards all records. Used when no history backend is
// configured.
type NullStore struct{}

func (NullStore) Save(context.Context, *Record) error         { return nil }
func (NullStore) List(context.Context, int) ([]Record, error) { return nil, nil }
func (NullStore) Close(context.Context) error                 { return nil }

// Ensure NullStore implements Store.
var _ Store = NullStore{}
