package auditexport

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/civium-labs/civium-go/internal/domain"
)

// NDJSONExporter writes one JSON document per event, newline-terminated.
type NDJSONExporter struct {
	enc *json.Encoder
}

func NewNDJSONExporter(w io.Writer) *NDJSONExporter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	return &NDJSONExporter{enc: enc}
}

func (e *NDJSONExporter) Export(ctx context.Context, event domain.AuditEvent) error {
	return e.enc.Encode(exportEventFromDomain(event))
}

type exportEvent struct {
	ID            string `json:"id"`
	Timestamp     string `json:"timestamp"`
	EventType     string `json:"event_type"`
	Actor         string `json:"actor"`
	Details       any    `json:"details"`
	Signature     string `json:"signature"`
	KeyID         string `json:"key_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func exportEventFromDomain(event domain.AuditEvent) exportEvent {
	return exportEvent{
		ID:            event.ID,
		Timestamp:     event.Timestamp,
		EventType:     event.EventType,
		Actor:         event.Actor,
		Details:       event.Details,
		Signature:     event.Signature,
		KeyID:         event.KeyID,
		CorrelationID: event.CorrelationID,
		CreatedAt:     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
