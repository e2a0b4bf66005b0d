// Package auditexport writes ledger events as newline-delimited JSON, either
// streamed to an HTTP response or archived to object storage.
package auditexport

import (
	"context"
	"fmt"
	"strings"

	"github.com/civium-labs/civium-go/internal/domain"
	"github.com/civium-labs/civium-go/internal/platform/env"
)

const (
	FormatNDJSON           = "ndjson"
	DestinationHTTP        = "http"
	DestinationObjectStore = "objectstore"
)

// Exporter sends stored audit events to an external sink.
type Exporter interface {
	Export(ctx context.Context, event domain.AuditEvent) error
}

// Config controls export format and destination. An empty destination means
// export is not configured; the handler fails closed with 501 instead of
// picking a destination on the operator's behalf.
type Config struct {
	Format      string
	Destination string
}

// ConfigFromEnv reads the export settings. Export stays disabled until
// AUDIT_EXPORT_DESTINATION is set explicitly; a disabled export is not a
// startup error, but a nonsense destination or format is.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Format:      env.String("AUDIT_EXPORT_FORMAT", FormatNDJSON),
		Destination: env.String("AUDIT_EXPORT_DESTINATION", ""),
	}
	if strings.TrimSpace(cfg.Destination) != "" {
		if err := cfg.Validate(); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func (c Config) Validate() error {
	format := strings.ToLower(strings.TrimSpace(c.Format))
	destination := strings.ToLower(strings.TrimSpace(c.Destination))
	if destination == "" {
		return fmt.Errorf("audit export destination is not configured")
	}
	if format == "" {
		format = FormatNDJSON
	}
	if format != FormatNDJSON {
		return fmt.Errorf("unsupported audit export format: %s", format)
	}
	if destination != DestinationHTTP && destination != DestinationObjectStore {
		return fmt.Errorf("unsupported audit export destination: %s", destination)
	}
	return nil
}

func (c Config) NormalizedDestination() string {
	return strings.ToLower(strings.TrimSpace(c.Destination))
}
