package cache

import (
	"context"
	"time"
)

// Entry is the cached view of one payment attempt, keyed by transaction reference.
type Entry struct {
	Status      string
	InitiatedAt time.Time
	UpdatedAt   time.Time
}

// StatusCache is a process-scoped hint for polling clients. The durable store stays the source of
// truth and every read is reconciled against it.
type StatusCache interface {
	Get(ctx context.Context, transactionRef string) (*Entry, error)
	Put(ctx context.Context, transactionRef string, entry Entry) error
	SetStatus(ctx context.Context, transactionRef string, status string, at time.Time) error
	Snapshot(ctx context.Context) (map[string]Entry, error)
	Delete(ctx context.Context, transactionRefs ...string) error
}
