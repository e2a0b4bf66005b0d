package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/civium-labs/civium-go/internal/auditexport"
	"github.com/civium-labs/civium-go/internal/domain"
	"github.com/civium-labs/civium-go/internal/repo"
	repopg "github.com/civium-labs/civium-go/internal/repo/postgres"
	"github.com/civium-labs/civium-go/internal/service/ledger"
)

const (
	headerCorrelationID  = "X-Correlation-Id"
	headerIdempotencyKey = "Idempotency-Key"

	exportPageSize = 200
)

type auditLedgerAPI struct {
	logger    *slog.Logger
	svc       *ledger.Service
	exportCfg auditexport.Config
	archiver  *auditexport.ObjectArchiver
}

func newAuditLedgerAPI(logger *slog.Logger, svc *ledger.Service, exportCfg auditexport.Config, archiver *auditexport.ObjectArchiver) *auditLedgerAPI {
	return &auditLedgerAPI{
		logger:    logger,
		svc:       svc,
		exportCfg: exportCfg,
		archiver:  archiver,
	}
}

// registerInternal mounts the producer-facing surface; main wraps it in the
// internal-token gate.
func (api *auditLedgerAPI) registerInternal(mux *http.ServeMux) {
	mux.HandleFunc("POST /internal/audit/events", api.handleIngest)
}

// registerReader mounts the read surface; main wraps it in the bearer gate.
func (api *auditLedgerAPI) registerReader(mux *http.ServeMux) {
	mux.HandleFunc("GET /audit/events", api.handleListEvents)
	mux.HandleFunc("GET /audit/events/{event_id}", api.handleGetEvent)
	mux.HandleFunc("POST /audit/{event_id}/verify", api.handleVerifyEvent)
	mux.HandleFunc("POST /audit/export", api.handleExport)
}

type ingestRequest struct {
	Timestamp     string          `json:"timestamp"`
	EventType     string          `json:"event_type"`
	Actor         string          `json:"actor"`
	Details       json.RawMessage `json:"details"`
	Signature     string          `json:"signature"`
	KeyID         string          `json:"key_id"`
	CorrelationID string          `json:"correlation_id"`
}

func (api *auditLedgerAPI) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	details, err := decodeDetails(req.Details)
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_details")
		return
	}

	stored, err := api.svc.Ingest(r.Context(), ledger.IngestRequest{
		Timestamp:         req.Timestamp,
		EventType:         req.EventType,
		Actor:             req.Actor,
		Details:           details,
		Signature:         req.Signature,
		KeyID:             req.KeyID,
		CorrelationID:     req.CorrelationID,
		CorrelationHeader: r.Header.Get(headerCorrelationID),
		DedupKey:          r.Header.Get(headerIdempotencyKey),
	})
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, map[string]any{"id": stored.ID})
}

func (api *auditLedgerAPI) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	result, err := api.svc.List(r.Context(), limit, offset)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}

	items := make([]eventResponse, 0, len(result.Events))
	for _, event := range result.Events {
		items = append(items, eventResponseFromDomain(event))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"total": result.Total,
		"items": items,
	})
}

func (api *auditLedgerAPI) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("event_id"))
	if id == "" {
		api.writeError(w, r, http.StatusBadRequest, "event_id_required")
		return
	}
	event, err := api.svc.Get(r.Context(), id)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, eventResponseFromDomain(event))
}

func (api *auditLedgerAPI) handleVerifyEvent(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("event_id"))
	if id == "" {
		api.writeError(w, r, http.StatusBadRequest, "event_id_required")
		return
	}

	verdict, err := api.svc.Verify(r.Context(), id)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}

	// A failed verification is a normal outcome, always reported as 200
	// with a structured verdict.
	body := map[string]any{"valid": verdict.Valid}
	if verdict.Reason != "" {
		body["reason"] = verdict.Reason
	}
	if verdict.CanonicalPayload != "" {
		body["payload"] = verdict.CanonicalPayload
	}
	if verdict.ExpectedSignature != "" {
		body["expected"] = verdict.ExpectedSignature
	}
	api.writeJSON(w, http.StatusOK, body)
}

func (api *auditLedgerAPI) handleExport(w http.ResponseWriter, r *http.Request) {
	if err := api.exportCfg.Validate(); err != nil {
		api.writeError(w, r, http.StatusNotImplemented, "export_not_configured")
		return
	}

	switch api.exportCfg.NormalizedDestination() {
	case auditexport.DestinationHTTP:
		api.exportOverHTTP(w, r)
	case auditexport.DestinationObjectStore:
		api.exportToObjectStore(w, r)
	default:
		api.writeError(w, r, http.StatusNotImplemented, "export_destination_unsupported")
	}
}

func (api *auditLedgerAPI) exportOverHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	exporter := auditexport.NewNDJSONExporter(w)
	if err := api.exportAll(r, exporter); err != nil {
		// Headers are gone; log and cut the stream.
		api.logger.Error("export stream failed", "request_id", r.Header.Get("X-Request-Id"), "error", err)
	}
}

func (api *auditLedgerAPI) exportToObjectStore(w http.ResponseWriter, r *http.Request) {
	if api.archiver == nil {
		api.writeError(w, r, http.StatusNotImplemented, "export_not_configured")
		return
	}
	var buf bytes.Buffer
	if err := api.exportAll(r, auditexport.NewNDJSONExporter(&buf)); err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	key, err := api.archiver.Archive(r.Context(), buf.Bytes())
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "export_upload_failed")
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"object_key": key})
}

func (api *auditLedgerAPI) exportAll(r *http.Request, exporter auditexport.Exporter) error {
	for offset := 0; ; offset += exportPageSize {
		result, err := api.svc.List(r.Context(), exportPageSize, offset)
		if err != nil {
			return err
		}
		for _, event := range result.Events {
			if err := exporter.Export(r.Context(), event); err != nil {
				return err
			}
		}
		if len(result.Events) < exportPageSize {
			return nil
		}
	}
}

type eventResponse struct {
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

func eventResponseFromDomain(event domain.AuditEvent) eventResponse {
	return eventResponse{
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

func (api *auditLedgerAPI) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		api.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "validation_failed",
			"reason":     verr.Reason,
			"request_id": r.Header.Get("X-Request-Id"),
		})
	case errors.Is(err, repo.ErrNotFound):
		api.writeError(w, r, http.StatusNotFound, "not_found")
	case repopg.IsRetryable(err):
		// Transient persistence trouble; the producer decides whether to
		// resubmit, ideally with an Idempotency-Key.
		api.writeError(w, r, http.StatusServiceUnavailable, "storage_unavailable")
	default:
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
	}
}

func (api *auditLedgerAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *auditLedgerAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err == nil {
		return errors.New("multiple JSON values")
	}
	return nil
}

// decodeDetails re-decodes the raw details with number literals preserved,
// so the stored value re-canonicalizes to the exact bytes the producer
// signed.
func decodeDetails(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}
