// Package auth gates the ledger's HTTP surface: a static internal token for
// producer ingest and a bearer-token gate for read access. Everything fails
// closed; missing configuration denies rather than permits.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/civium-labs/civium-go/internal/platform/env"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type Identity struct {
	Subject string
	Email   string
	Roles   []string
}

type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (Identity, error)
}

type ctxKeyIdentity struct{}

func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(ctxKeyIdentity{}).(Identity)
	return v, ok
}

type Mode string

const (
	ModeOIDC     Mode = "oidc"
	ModeDev      Mode = "dev"
	ModeDisabled Mode = "disabled"
)

type Config struct {
	Mode Mode

	OIDCIssuerURL string
	OIDCClientID  string
	RolesClaim    string
	EmailClaim    string

	DevSubject string
	DevRoles   []string
}

func ConfigFromEnv() (Config, error) {
	modeRaw := strings.ToLower(strings.TrimSpace(env.String("AUDIT_AUTH_MODE", string(ModeOIDC))))
	var mode Mode
	switch modeRaw {
	case string(ModeOIDC):
		mode = ModeOIDC
	case string(ModeDev):
		mode = ModeDev
	case string(ModeDisabled):
		mode = ModeDisabled
	default:
		return Config{}, fmt.Errorf("AUDIT_AUTH_MODE must be one of: oidc, dev, disabled (got %q)", modeRaw)
	}

	cfg := Config{
		Mode:          mode,
		OIDCIssuerURL: env.String("AUDIT_OIDC_ISSUER_URL", ""),
		OIDCClientID:  env.String("AUDIT_OIDC_CLIENT_ID", ""),
		RolesClaim:    env.String("AUDIT_AUTH_ROLES_CLAIM", "roles"),
		EmailClaim:    env.String("AUDIT_AUTH_EMAIL_CLAIM", "email"),
		DevSubject:    env.String("AUDIT_DEV_AUTH_SUBJECT", "dev-user"),
		DevRoles:      parseCSV(env.String("AUDIT_DEV_AUTH_ROLES", "auditor")),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeOIDC:
		if strings.TrimSpace(c.OIDCIssuerURL) == "" {
			return errors.New("AUDIT_OIDC_ISSUER_URL is required when AUDIT_AUTH_MODE=oidc")
		}
		if strings.TrimSpace(c.OIDCClientID) == "" {
			return errors.New("AUDIT_OIDC_CLIENT_ID is required when AUDIT_AUTH_MODE=oidc")
		}
	case ModeDev:
		if strings.TrimSpace(c.DevSubject) == "" {
			return errors.New("AUDIT_DEV_AUTH_SUBJECT is required when AUDIT_AUTH_MODE=dev")
		}
	case ModeDisabled:
	default:
		return fmt.Errorf("unsupported auth mode: %q", c.Mode)
	}
	if strings.TrimSpace(c.RolesClaim) == "" {
		return errors.New("AUDIT_AUTH_ROLES_CLAIM is required")
	}
	if strings.TrimSpace(c.EmailClaim) == "" {
		return errors.New("AUDIT_AUTH_EMAIL_CLAIM is required")
	}
	return nil
}

// NewAuthenticator builds the reader-facing authenticator for the configured
// mode. OIDC mode reaches the issuer's discovery document at startup.
func NewAuthenticator(ctx context.Context, cfg Config) (Authenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case ModeOIDC:
		startupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return NewBearerAuthenticator(startupCtx, cfg)
	case ModeDev:
		return NewDevAuthenticator(cfg), nil
	case ModeDisabled:
		return anonymousAuthenticator{}, nil
	}
	return nil, fmt.Errorf("unsupported auth mode: %q", cfg.Mode)
}

type DevAuthenticator struct {
	identity Identity
}

func NewDevAuthenticator(cfg Config) *DevAuthenticator {
	return &DevAuthenticator{
		identity: Identity{
			Subject: cfg.DevSubject,
			Roles:   cfg.DevRoles,
		},
	}
}

func (a *DevAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	return a.identity, nil
}

type anonymousAuthenticator struct{}

func (anonymousAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	return Identity{Subject: "anonymous"}, nil
}

func parseCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
