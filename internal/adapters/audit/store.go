// Package audit keeps a durable journal of inbound submissions and their
// outcomes so masked upstream failures can be found and replayed by hand.
package audit

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// Status is the lifecycle stage of a journal entry.
type Status string

// Entry lifecycle stages.
const (
	StatusReceived Status = "received"
	StatusResolved Status = "resolved"
)

// Backends accepted by Open.
const (
	BackendSQL      = "sql"
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// Entry is one submission in the journal.
type Entry struct {
	ID             string
	Path           string
	Payload        []byte
	Status         Status
	ReceivedAt     time.Time
	Kind           string
	Action         string
	UpstreamStatus int
	Reference      string
	Error          string
	ResolvedAt     *time.Time
}

// Resolution records how a received entry was answered.
type Resolution struct {
	Kind           string
	Action         string
	UpstreamStatus int
	Reference      string
	Error          string
	ResolvedAt     time.Time
}

// Store is the journal contract.
type Store interface {
	// Save records a received submission. IDs must be unique.
	Save(ctx context.Context, e Entry) error
	// Resolve attaches the outcome to a received entry.
	Resolve(ctx context.Context, id string, r Resolution) error
	// Get returns an entry by ID.
	Get(ctx context.Context, id string) (Entry, error)
	// Pending lists entries that were received but never resolved, oldest
	// first. limit <= 0 means no limit.
	Pending(ctx context.Context, limit int) ([]Entry, error)
	// Close releases backend resources.
	Close() error
}

// Open builds the Store for backend. dsn is used by the sql backend and
// table by the sql and dynamodb backends.
func Open(ctx context.Context, backend, dsn, table string) (Store, error) {
	switch backend {
	case BackendSQL:
		return OpenSQL(dsn, WithTable(table))
	case BackendDynamoDB:
		return OpenDynamo(ctx, table)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// oldestFirst orders entries by ReceivedAt and applies limit.
func oldestFirst(entries []Entry, limit int) []Entry {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return a.ReceivedAt.Compare(b.ReceivedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func validate(e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidEntry)
	}
	return nil
}

func (e *Entry) apply(r Resolution) {
	at := r.ResolvedAt
	e.Status = StatusResolved
	e.Kind = r.Kind
	e.Action = r.Action
	e.UpstreamStatus = r.UpstreamStatus
	e.Reference = r.Reference
	e.Error = r.Error
	e.ResolvedAt = &at
}
