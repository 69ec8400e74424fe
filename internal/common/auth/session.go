// internal/common/auth/session.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"tmis-business-guru/internal/common/errors"
)

const defaultTokenTTL = time.Hour

// Session logs in to the backend with a service account and caches the token until expiry.
// It is used for background refreshes that have no caller token to forward.
type Session struct {
	baseURL    string
	email      string
	password   string
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
	user        Viewer
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"_id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
}

func NewSession(baseURL, email, password string, timeout time.Duration) *Session {
	return &Session{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		email:      email,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Token returns a cached token, logging in again when it has expired or was invalidated.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != "" && s.tokenExpiry.After(time.Now()) {
		return s.accessToken, nil
	}
	if err := s.login(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

// Invalidate forgets the token; the next call logs in again.
func (s *Session) Invalidate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
	s.tokenExpiry = time.Time{}
}

// User returns the identity reported by the last login.
func (s *Session) User() Viewer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) login(ctx context.Context) error {
	if s.email == "" || s.password == "" {
		return errors.NewConfigurationError("backend service account credentials are not configured")
	}

	payload, err := json.Marshal(loginRequest{Email: s.email, Password: s.password})
	if err != nil {
		return fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/auth/login", strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.NewTransportFailureError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewTransportFailureError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.FromHTTPStatus(resp.StatusCode, string(body), false)
	}

	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return errors.NewInvalidEnvelopeError("/auth/login", err.Error())
	}
	if lr.Token == "" {
		return errors.NewInvalidEnvelopeError("/auth/login", "token missing")
	}

	s.accessToken = lr.Token
	if exp, ok := tokenExpiry(lr.Token); ok {
		s.tokenExpiry = exp
	} else {
		s.tokenExpiry = time.Now().Add(defaultTokenTTL)
	}
	s.user = Viewer{ID: lr.User.ID, Name: lr.User.Name, Email: lr.User.Email, Role: strings.ToLower(lr.User.Role)}
	return nil
}

// RequestTokenSource prefers the token forwarded with the incoming request and falls back to
// the service-account session.
type RequestTokenSource struct {
	Fallback interface {
		Token(ctx context.Context) (string, error)
		Invalidate(ctx context.Context)
	}
}

func (s RequestTokenSource) Token(ctx context.Context) (string, error) {
	if tok := GetToken(ctx); tok != "" {
		return tok, nil
	}
	if s.Fallback == nil {
		return "", errors.NewUnauthorizedError("no caller token and no service session")
	}
	return s.Fallback.Token(ctx)
}

func (s RequestTokenSource) Invalidate(ctx context.Context) {
	if GetToken(ctx) != "" {
		return
	}
	if s.Fallback != nil {
		s.Fallback.Invalidate(ctx)
	}
}
