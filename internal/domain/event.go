// Package domain holds the ledger's entities.
package domain

import (
	"errors"
	"strings"
	"time"
)

// AuditEvent is the ledger's sole entity. Payload fields (Timestamp,
// EventType, Actor, Details) are covered by the producer's signature; KeyID
// and CorrelationID deliberately are not. ID and CreatedAt are assigned by
// the store exactly once; nothing mutates a stored event afterwards.
type AuditEvent struct {
	ID            string
	Timestamp     string
	EventType     string
	Actor         string
	Details       any
	Signature     string
	KeyID         string
	CorrelationID string
	CreatedAt     time.Time
}

func (e AuditEvent) Validate() error {
	if strings.TrimSpace(e.Timestamp) == "" {
		return errors.New("timestamp is required")
	}
	if strings.TrimSpace(e.EventType) == "" {
		return errors.New("event_type is required")
	}
	if strings.TrimSpace(e.Actor) == "" {
		return errors.New("actor is required")
	}
	if strings.TrimSpace(e.Signature) == "" {
		return errors.New("signature is required")
	}
	if strings.TrimSpace(e.KeyID) == "" {
		return errors.New("key_id is required")
	}
	return nil
}

// SignedPayload is the exact value producers canonicalize and sign. Details
// may be nil; it is signed as the JSON null literal.
func (e AuditEvent) SignedPayload() map[string]any {
	return map[string]any{
		"timestamp":  e.Timestamp,
		"event_type": e.EventType,
		"actor":      e.Actor,
		"details":    e.Details,
	}
}
