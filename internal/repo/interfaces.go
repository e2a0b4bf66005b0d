package repo

import (
	"context"
	"errors"

	"github.com/civium-labs/civium-go/internal/domain"
)

// ErrNotFound reports an unknown event id.
var ErrNotFound = errors.New("not found")

// EventFilter shapes a List call. Limit and Offset arrive pre-clamped by the
// query service.
type EventFilter struct {
	EventType string
	Actor     string
	Limit     int
	Offset    int
}

// AppendRequest carries a validated event into the store. DedupKey is an
// optional caller-supplied idempotency token: retrying an append whose first
// attempt may or may not have committed returns the already stored event
// instead of inserting a second row. Without it, append is at-least-once
// under ambiguous retries.
type AppendRequest struct {
	Event    domain.AuditEvent
	DedupKey string
}

// LedgerRepository is the append-only event store. Stored events are never
// updated or deleted through this interface; the store assigns id and
// created_at exactly once on Append.
type LedgerRepository interface {
	Append(ctx context.Context, req AppendRequest) (domain.AuditEvent, error)
	Get(ctx context.Context, id string) (domain.AuditEvent, error)
	List(ctx context.Context, filter EventFilter) ([]domain.AuditEvent, int64, error)
}
