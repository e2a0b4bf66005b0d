package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/civium-labs/civium-go/internal/repo"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// encodeDetails marshals the details value for storage. Decoded producer
// payloads carry json.Number literals, which marshal back verbatim.
func encodeDetails(details any) ([]byte, error) {
	if details == nil {
		return []byte("null"), nil
	}
	return json.Marshal(details)
}

// decodeDetails preserves number literals so the verification service can
// recompute the exact bytes the producer signed.
func decodeDetails(raw []byte) (any, error) {
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

func handleNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repo.ErrNotFound
	}
	return err
}

// IsRetryable reports whether an append failure is transient persistence
// trouble the caller may resubmit, as opposed to a constraint violation.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Integrity violations (class 23) are not retryable as-is.
		return !strings.HasPrefix(pgErr.Code, "23")
	}
	return true
}
