package auth

import (
	"context"
	"crypto/hmac"
	"net/http"
	"strings"
)

// HeaderInternalToken carries the shared static token producers present on
// the internal ingest endpoint.
const HeaderInternalToken = "X-Internal-Token"

// InternalTokenAuthenticator compares a static shared token. An empty
// configured token is legal at construction time but denies every request:
// an unconfigured gate fails closed instead of open.
type InternalTokenAuthenticator struct {
	token string
}

func NewInternalTokenAuthenticator(token string) *InternalTokenAuthenticator {
	return &InternalTokenAuthenticator{token: strings.TrimSpace(token)}
}

func (a *InternalTokenAuthenticator) Configured() bool {
	return a != nil && a.token != ""
}

func (a *InternalTokenAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	if !a.Configured() {
		return Identity{}, ErrUnauthenticated
	}
	presented := strings.TrimSpace(r.Header.Get(HeaderInternalToken))
	if presented == "" {
		return Identity{}, ErrUnauthenticated
	}
	if !hmac.Equal([]byte(a.token), []byte(presented)) {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{Subject: "internal-producer", Roles: []string{"producer"}}, nil
}
