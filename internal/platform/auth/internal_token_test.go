package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func internalRequest(token string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/internal/audit/events", nil)
	if token != "" {
		r.Header.Set(HeaderInternalToken, token)
	}
	return r
}

func TestInternalTokenAuthenticator(t *testing.T) {
	a := NewInternalTokenAuthenticator("shared-token")

	identity, err := a.Authenticate(context.Background(), internalRequest("shared-token"))
	if err != nil {
		t.Fatalf("Authenticate() err=%v", err)
	}
	if identity.Subject != "internal-producer" {
		t.Fatalf("subject=%q", identity.Subject)
	}

	if _, err := a.Authenticate(context.Background(), internalRequest("wrong-token")); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for wrong token, got %v", err)
	}
	if _, err := a.Authenticate(context.Background(), internalRequest("")); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for missing token, got %v", err)
	}
}

// An unconfigured token must deny everything, including empty presented
// tokens; the gate fails closed rather than open.
func TestInternalTokenAuthenticatorUnconfigured(t *testing.T) {
	a := NewInternalTokenAuthenticator("  ")
	if a.Configured() {
		t.Fatalf("blank token must not count as configured")
	}
	if _, err := a.Authenticate(context.Background(), internalRequest("")); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := a.Authenticate(context.Background(), internalRequest("anything")); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestMiddlewareDeniesAndSkips(t *testing.T) {
	a := NewInternalTokenAuthenticator("shared-token")
	called := false
	h := Middleware{
		Authenticator: a,
		SkipPrefixes:  []string{"/healthz"},
	}.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, internalRequest("wrong"))
	if called || rec.Code != http.StatusUnauthorized {
		t.Fatalf("called=%v status=%d, want denied 401", called, rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if !called || rec.Code != http.StatusNoContent {
		t.Fatalf("called=%v status=%d, want skip prefix to pass through", called, rec.Code)
	}

	called = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, internalRequest("shared-token"))
	if !called || rec.Code != http.StatusNoContent {
		t.Fatalf("called=%v status=%d, want authenticated pass", called, rec.Code)
	}
}
