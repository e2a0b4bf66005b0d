package signer

import (
	"strings"
	"testing"

	"github.com/civium-labs/civium-go/internal/domain"
)

func TestComputeShape(t *testing.T) {
	sig := Compute("topsecret", `{"actor":"user-1"}`)
	if !strings.HasPrefix(sig, "v1:") {
		t.Fatalf("signature %q missing version prefix", sig)
	}
	// v1: plus 32 hex-encoded HMAC-SHA256 bytes.
	if len(sig) != len("v1:")+64 {
		t.Fatalf("signature length %d, want %d", len(sig), len("v1:")+64)
	}
}

func TestComputeDeterministic(t *testing.T) {
	a := Compute("topsecret", `{"a":1}`)
	b := Compute("topsecret", `{"a":1}`)
	if a != b {
		t.Fatalf("signatures differ: %q vs %q", a, b)
	}
	if c := Compute("othersecret", `{"a":1}`); c == a {
		t.Fatalf("different secrets produced identical signatures")
	}
	if d := Compute("topsecret", `{"a":2}`); d == a {
		t.Fatalf("different payloads produced identical signatures")
	}
}

func TestMatches(t *testing.T) {
	payload := `{"actor":"user-1","details":{"ip":"1.2.3.4"},"event_type":"LOGIN","timestamp":"2026-01-01T00:00:00Z"}`
	sig := Compute("topsecret", payload)

	if !Matches("topsecret", payload, sig) {
		t.Fatalf("expected signature to match")
	}
	if Matches("wrongsecret", payload, sig) {
		t.Fatalf("expected mismatch under wrong secret")
	}
	if Matches("topsecret", payload, "v1:deadbeef") {
		t.Fatalf("expected mismatch for forged signature")
	}
	if Matches("topsecret", payload, "") {
		t.Fatalf("expected mismatch for empty signature")
	}
}

func TestSignEventUsesCanonicalForm(t *testing.T) {
	a := domain.AuditEvent{
		Timestamp: "2026-01-01T00:00:00Z",
		EventType: "LOGIN",
		Actor:     "user-1",
		Details:   map[string]any{"ip": "1.2.3.4", "method": "password"},
	}
	b := a
	// Same logical details, built in a different insertion order.
	b.Details = map[string]any{"method": "password", "ip": "1.2.3.4"}

	sigA, err := SignEvent("topsecret", a)
	if err != nil {
		t.Fatalf("SignEvent() err=%v", err)
	}
	sigB, err := SignEvent("topsecret", b)
	if err != nil {
		t.Fatalf("SignEvent() err=%v", err)
	}
	if sigA != sigB {
		t.Fatalf("signatures differ across insertion orders: %q vs %q", sigA, sigB)
	}
}

func TestSignEventIgnoresUnsignedFields(t *testing.T) {
	base := domain.AuditEvent{
		Timestamp: "2026-01-01T00:00:00Z",
		EventType: "LOGIN",
		Actor:     "user-1",
		Details:   map[string]any{"ip": "1.2.3.4"},
	}
	withExtras := base
	withExtras.KeyID = "primary"
	withExtras.CorrelationID = "corr-1"
	withExtras.ID = "evt-1"

	sigBase, err := SignEvent("topsecret", base)
	if err != nil {
		t.Fatalf("SignEvent() err=%v", err)
	}
	sigExtras, err := SignEvent("topsecret", withExtras)
	if err != nil {
		t.Fatalf("SignEvent() err=%v", err)
	}
	if sigBase != sigExtras {
		t.Fatalf("key_id/correlation_id leaked into the signed payload")
	}
}
