// Package signer implements the producer signing contract for audit events.
//
// A producer computes
//
//	signature = "v1:" + hex(HMAC-SHA256(secret, canonical(payload)))
//
// where payload is exactly {timestamp, event_type, actor, details} in the
// canonical form produced by package canonical. key_id and correlation_id are
// never part of the signed payload; including them would break every already
// deployed producer.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/civium-labs/civium-go/internal/canonical"
	"github.com/civium-labs/civium-go/internal/domain"
)

// Prefix tags the signature scheme version.
const Prefix = "v1:"

// Compute returns the versioned signature of an already canonicalized payload.
func Compute(secret string, canonicalPayload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonicalPayload))
	return Prefix + hex.EncodeToString(mac.Sum(nil))
}

// Matches compares a stored signature against the expected one in constant
// time. A plain string comparison would leak how many leading bytes match.
func Matches(secret string, canonicalPayload string, signature string) bool {
	expected := Compute(secret, canonicalPayload)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignEvent canonicalizes the event's signed payload and computes its
// signature. Producers inside this codebase and the test suite use it; the
// verification service uses the same pair of steps independently.
func SignEvent(secret string, event domain.AuditEvent) (string, error) {
	canonicalPayload, err := canonical.Marshal(event.SignedPayload())
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}
	return Compute(secret, canonicalPayload), nil
}
