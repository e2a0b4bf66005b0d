package auditexport

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/civium-labs/civium-go/internal/domain"
)

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"unset", Config{}, true},
		{"destination only, format defaults", Config{Destination: "http"}, false},
		{"ndjson http", Config{Format: "ndjson", Destination: "http"}, false},
		{"ndjson objectstore", Config{Format: "NDJSON", Destination: "ObjectStore"}, false},
		{"bad format", Config{Format: "parquet", Destination: "http"}, true},
		{"bad destination", Config{Destination: "ftp"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("Validate() expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Validate() err=%v", err)
			}
		})
	}
}

func TestConfigFromEnv_DisabledWithoutDestination(t *testing.T) {
	t.Setenv("AUDIT_EXPORT_DESTINATION", "")
	t.Setenv("AUDIT_EXPORT_FORMAT", "")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("unconfigured export should not validate")
	}
}

func TestConfigFromEnv_RejectsBadDestination(t *testing.T) {
	t.Setenv("AUDIT_EXPORT_DESTINATION", "ftp")

	if _, err := ConfigFromEnv(); err == nil {
		t.Fatalf("ConfigFromEnv() expected error")
	}
}

func TestNDJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewNDJSONExporter(&buf)

	events := []domain.AuditEvent{
		{
			ID:        "evt-1",
			Timestamp: "2026-01-01T00:00:00Z",
			EventType: "LOGIN",
			Actor:     "user-1",
			Details:   map[string]any{"ip": "1.2.3.4"},
			Signature: "v1:abc",
			KeyID:     "primary",
			CreatedAt: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:            "evt-2",
			Timestamp:     "2026-01-01T00:01:00Z",
			EventType:     "LOGOUT",
			Actor:         "user-1",
			Signature:     "v1:def",
			KeyID:         "primary",
			CorrelationID: "corr-9",
			CreatedAt:     time.Date(2026, 1, 1, 10, 1, 0, 0, time.UTC),
		},
	}
	for _, event := range events {
		if err := exporter.Export(context.Background(), event); err != nil {
			t.Fatalf("Export() err=%v", err)
		}
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 1 not JSON: %v", err)
	}
	if first["id"] != "evt-1" || first["signature"] != "v1:abc" {
		t.Fatalf("unexpected first line: %v", first)
	}
	if _, ok := first["correlation_id"]; ok {
		t.Fatalf("empty correlation_id should be omitted")
	}
	var second map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("line 2 not JSON: %v", err)
	}
	if second["correlation_id"] != "corr-9" {
		t.Fatalf("unexpected second line: %v", second)
	}
}
