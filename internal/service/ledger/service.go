// Package ledger implements the audit ledger's ingest, verification, and
// query operations over an append-only event store.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/civium-labs/civium-go/internal/canonical"
	"github.com/civium-labs/civium-go/internal/domain"
	"github.com/civium-labs/civium-go/internal/repo"
	"github.com/civium-labs/civium-go/internal/signer"
)

const (
	ReasonNotConfigured     = "not configured"
	ReasonSignatureMismatch = "Signature mismatch"

	defaultListLimit = 50
	maxListLimit     = 200
)

type Service struct {
	events repo.LedgerRepository
	keys   signer.Keyring
}

// New wires the service. The keyring is injected here once; the verify path
// never consults process environment.
func New(events repo.LedgerRepository, keys signer.Keyring) *Service {
	if events == nil {
		return nil
	}
	return &Service{events: events, keys: keys}
}

// IngestRequest carries a pre-signed event from a producer.
// CorrelationHeader is the transport-level x-correlation-id value; when
// present it takes precedence over the body's correlation_id. DedupKey is an
// optional idempotency token for safe retries of ambiguous append failures.
type IngestRequest struct {
	Timestamp         string
	EventType         string
	Actor             string
	Details           any
	Signature         string
	KeyID             string
	CorrelationID     string
	CorrelationHeader string
	DedupKey          string
}

// Ingest validates the event's shape and appends it verbatim. It does not
// verify the signature: ingestion stays cheap and always available, and a
// backlog of unverifiable events is a visible failure at verify time rather
// than a silent one at write time.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (domain.AuditEvent, error) {
	if s == nil || s.events == nil {
		return domain.AuditEvent{}, fmt.Errorf("ledger service not initialized")
	}

	correlationID := strings.TrimSpace(req.CorrelationID)
	if header := strings.TrimSpace(req.CorrelationHeader); header != "" {
		correlationID = header
	}

	event := domain.AuditEvent{
		Timestamp:     strings.TrimSpace(req.Timestamp),
		EventType:     strings.TrimSpace(req.EventType),
		Actor:         strings.TrimSpace(req.Actor),
		Details:       req.Details,
		Signature:     strings.TrimSpace(req.Signature),
		KeyID:         strings.TrimSpace(req.KeyID),
		CorrelationID: correlationID,
	}
	if err := event.Validate(); err != nil {
		return domain.AuditEvent{}, ValidationError{Reason: err.Error()}
	}

	stored, err := s.events.Append(ctx, repo.AppendRequest{Event: event, DedupKey: req.DedupKey})
	if err != nil {
		return domain.AuditEvent{}, fmt.Errorf("append event: %w", err)
	}
	return stored, nil
}

// Get returns a single stored event by id. Unknown ids surface as
// repo.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (domain.AuditEvent, error) {
	if s == nil || s.events == nil {
		return domain.AuditEvent{}, fmt.Errorf("ledger service not initialized")
	}
	return s.events.Get(ctx, id)
}

// Verdict is the structured result of a verification. A mismatch or missing
// key configuration is a verdict, never an error; CanonicalPayload and
// ExpectedSignature are returned for audit debugging when they were computed.
type Verdict struct {
	Valid             bool
	Reason            string
	CanonicalPayload  string
	ExpectedSignature string
}

// Verify recomputes the canonical form of a stored event and compares the
// stored signature against the recomputed one in constant time. It is a pure
// read of stored state plus the injected keyring. Only infrastructure
// problems (unknown id, store unreachable) surface as errors.
func (s *Service) Verify(ctx context.Context, id string) (Verdict, error) {
	if s == nil || s.events == nil {
		return Verdict{}, fmt.Errorf("ledger service not initialized")
	}

	event, err := s.events.Get(ctx, id)
	if err != nil {
		return Verdict{}, err
	}

	secret, ok := s.keys.Resolve(event.KeyID)
	if !ok {
		return Verdict{Valid: false, Reason: ReasonNotConfigured}, nil
	}

	canonicalPayload, err := canonical.Marshal(event.SignedPayload())
	if err != nil {
		// Stored details that cannot canonicalize cannot have been signed
		// correctly either; fail closed with the decode problem as reason.
		return Verdict{Valid: false, Reason: fmt.Sprintf("canonicalize payload: %v", err)}, nil
	}

	expected := signer.Compute(secret, canonicalPayload)
	if !signer.Matches(secret, canonicalPayload, event.Signature) {
		return Verdict{
			Valid:             false,
			Reason:            ReasonSignatureMismatch,
			CanonicalPayload:  canonicalPayload,
			ExpectedSignature: expected,
		}, nil
	}
	return Verdict{
		Valid:             true,
		CanonicalPayload:  canonicalPayload,
		ExpectedSignature: expected,
	}, nil
}

// ListResult carries one reverse-chronological page plus the full ledger
// size at call time. Concurrent ingestion may change Total between pages; no
// snapshot isolation is promised.
type ListResult struct {
	Events []domain.AuditEvent
	Total  int64
}

// List returns events ordered by created_at descending. limit defaults to 50
// and is clamped to [1,200]; offset is clamped to >= 0.
func (s *Service) List(ctx context.Context, limit, offset int) (ListResult, error) {
	if s == nil || s.events == nil {
		return ListResult{}, fmt.Errorf("ledger service not initialized")
	}
	if limit == 0 {
		limit = defaultListLimit
	}
	limit = clampInt(limit, 1, maxListLimit)
	if offset < 0 {
		offset = 0
	}

	events, total, err := s.events.List(ctx, repo.EventFilter{Limit: limit, Offset: offset})
	if err != nil {
		return ListResult{}, fmt.Errorf("list events: %w", err)
	}
	return ListResult{Events: events, Total: total}, nil
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
