// internal/common/http/transport.go
package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// TokenSource supplies the bearer token for backend calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	// Invalidate drops the current token after the backend answered 401.
	Invalidate(ctx context.Context)
}

// StaticToken is a fixed token that cannot be refreshed.
type StaticToken string

func (s StaticToken) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("no token available")
	}
	return string(s), nil
}

func (s StaticToken) Invalidate(ctx context.Context) {}

// BearerTransport attaches the Authorization and X-Request-ID headers to every outgoing request.
type BearerTransport struct {
	Base   http.RoundTripper
	Source TokenSource
}

func NewBearerTransport(base http.RoundTripper, source TokenSource) *BearerTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &BearerTransport{Base: base, Source: source}
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if out.Header.Get("X-Request-ID") == "" {
		out.Header.Set("X-Request-ID", uuid.NewString())
	}

	if t.Source != nil {
		token, err := t.Source.Token(req.Context())
		if err != nil {
			return nil, fmt.Errorf("failed to obtain bearer token: %w", err)
		}
		out.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.Base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && t.Source != nil {
		t.Source.Invalidate(req.Context())
	}
	return resp, nil
}
