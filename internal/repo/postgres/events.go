package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/civium-labs/civium-go/internal/domain"
	"github.com/civium-labs/civium-go/internal/repo"
	"github.com/google/uuid"
)

// EventStore is the append-only audit_events table:
//
//	CREATE TABLE audit_events (
//	    event_id       uuid PRIMARY KEY,
//	    occurred_at    text NOT NULL,
//	    event_type     text NOT NULL,
//	    actor          text NOT NULL,
//	    details        json NOT NULL,
//	    signature      text NOT NULL,
//	    key_id         text NOT NULL,
//	    correlation_id text,
//	    dedup_key      text UNIQUE,
//	    created_at     timestamptz NOT NULL
//	);
//	CREATE INDEX audit_events_created_at_desc ON audit_events (created_at DESC, event_id DESC);
//
// details is a json column, not jsonb: jsonb re-renders number literals and
// key order, and verification needs the producer's bytes back untouched.
type EventStore struct {
	db  DB
	now func() time.Time
}

const insertEventQuery = `INSERT INTO audit_events (
		event_id, occurred_at, event_type, actor, details, signature, key_id, correlation_id, dedup_key, created_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	ON CONFLICT (dedup_key) DO NOTHING`

const selectEventColumns = `event_id, occurred_at, event_type, actor, details, signature, key_id, correlation_id, created_at`

const selectEventQuery = `SELECT ` + selectEventColumns + `
	FROM audit_events
	WHERE event_id = $1`

const selectEventByDedupKeyQuery = `SELECT ` + selectEventColumns + `
	FROM audit_events
	WHERE dedup_key = $1`

const countEventsQuery = `SELECT count(*) FROM audit_events`

func NewEventStore(db DB) *EventStore {
	if db == nil {
		return nil
	}
	return &EventStore{db: db, now: time.Now}
}

func (s *EventStore) Append(ctx context.Context, req repo.AppendRequest) (domain.AuditEvent, error) {
	if s == nil || s.db == nil {
		return domain.AuditEvent{}, errors.New("event store not initialized")
	}
	event := req.Event
	if err := event.Validate(); err != nil {
		return domain.AuditEvent{}, err
	}

	event.ID = uuid.NewString()
	event.CreatedAt = s.now().UTC()

	detailsJSON, err := encodeDetails(event.Details)
	if err != nil {
		return domain.AuditEvent{}, fmt.Errorf("encode details: %w", err)
	}

	var correlationID sql.NullString
	if strings.TrimSpace(event.CorrelationID) != "" {
		correlationID = sql.NullString{String: strings.TrimSpace(event.CorrelationID), Valid: true}
	}
	var dedupKey sql.NullString
	if strings.TrimSpace(req.DedupKey) != "" {
		dedupKey = sql.NullString{String: strings.TrimSpace(req.DedupKey), Valid: true}
	}

	result, err := s.db.ExecContext(
		ctx,
		insertEventQuery,
		event.ID,
		strings.TrimSpace(event.Timestamp),
		strings.TrimSpace(event.EventType),
		strings.TrimSpace(event.Actor),
		detailsJSON,
		strings.TrimSpace(event.Signature),
		strings.TrimSpace(event.KeyID),
		correlationID,
		dedupKey,
		event.CreatedAt,
	)
	if err != nil {
		return domain.AuditEvent{}, fmt.Errorf("insert audit event: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return domain.AuditEvent{}, fmt.Errorf("insert audit event: %w", err)
	}
	if inserted == 0 {
		// A retried append hit the dedup key of the committed first attempt;
		// hand back that row instead of a duplicate.
		return s.getByDedupKey(ctx, dedupKey.String)
	}
	return event, nil
}

func (s *EventStore) Get(ctx context.Context, id string) (domain.AuditEvent, error) {
	if s == nil || s.db == nil {
		return domain.AuditEvent{}, errors.New("event store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.AuditEvent{}, repo.ErrNotFound
	}
	return s.scanEvent(s.db.QueryRowContext(ctx, selectEventQuery, id))
}

func (s *EventStore) getByDedupKey(ctx context.Context, dedupKey string) (domain.AuditEvent, error) {
	return s.scanEvent(s.db.QueryRowContext(ctx, selectEventByDedupKeyQuery, dedupKey))
}

func (s *EventStore) List(ctx context.Context, filter repo.EventFilter) ([]domain.AuditEvent, int64, error) {
	if s == nil || s.db == nil {
		return nil, 0, errors.New("event store not initialized")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, countEventsQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}

	clauses := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if strings.TrimSpace(filter.EventType) != "" {
		args = append(args, strings.TrimSpace(filter.EventType))
		clauses = append(clauses, "event_type = $"+strconv.Itoa(len(args)))
	}
	if strings.TrimSpace(filter.Actor) != "" {
		args = append(args, strings.TrimSpace(filter.Actor))
		clauses = append(clauses, "actor = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + selectEventColumns + ` FROM audit_events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, event_id DESC"
	args = append(args, filter.Limit)
	query += " LIMIT $" + strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.AuditEvent, 0, filter.Limit)
	for rows.Next() {
		event, err := scanEventRow(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list audit events: %w", err)
	}
	return events, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *EventStore) scanEvent(row *sql.Row) (domain.AuditEvent, error) {
	event, err := scanEventRow(row)
	if err != nil {
		return domain.AuditEvent{}, handleNotFound(err)
	}
	return event, nil
}

func scanEventRow(row rowScanner) (domain.AuditEvent, error) {
	var (
		event         domain.AuditEvent
		detailsRaw    []byte
		correlationID sql.NullString
	)
	if err := row.Scan(
		&event.ID,
		&event.Timestamp,
		&event.EventType,
		&event.Actor,
		&detailsRaw,
		&event.Signature,
		&event.KeyID,
		&correlationID,
		&event.CreatedAt,
	); err != nil {
		return domain.AuditEvent{}, err
	}
	details, err := decodeDetails(detailsRaw)
	if err != nil {
		return domain.AuditEvent{}, fmt.Errorf("decode details: %w", err)
	}
	event.Details = details
	event.CorrelationID = correlationID.String
	return event, nil
}
