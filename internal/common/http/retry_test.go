package http

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"tmis-business-guru/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

func recordingPolicy(attempts int, base time.Duration) (*RetryPolicy, *[]time.Duration) {
	var waits []time.Duration
	p := NewRetryPolicy(attempts, base)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return p, &waits
}

// ==========================
// RetryPolicy Tests
// ==========================

func TestRetryPolicy_LinearBackoff(t *testing.T) {
	p, waits := recordingPolicy(3, 2*time.Second)

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.NewServerError(503, "deploying")
	})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeServerError))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *waits)
}

func TestRetryPolicy_SucceedsAfterTransientFailure(t *testing.T) {
	p, _ := recordingPolicy(3, time.Millisecond)

	var retried []int
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		retried = append(retried, attempt)
	}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.NewTransportFailureError(stderrors.New("connection refused"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []int{1}, retried)
}

func TestRetryPolicy_NonRetryableStopsImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"access denied", errors.NewAccessDeniedError("admins only")},
		{"unauthorized", errors.NewUnauthorizedError("expired")},
		{"one-shot not found", errors.NewNotFoundError("client", false)},
		{"plain error", stderrors.New("decode failed")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, waits := recordingPolicy(3, time.Second)
			calls := 0
			err := p.Do(context.Background(), func(ctx context.Context) error {
				calls++
				return tt.err
			})
			assert.Equal(t, tt.err, err)
			assert.Equal(t, 1, calls)
			assert.Empty(t, *waits)
		})
	}
}

func TestRetryPolicy_PolledNotFoundIsRetried(t *testing.T) {
	p, _ := recordingPolicy(2, time.Millisecond)
	calls := 0
	_ = p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.NewNotFoundError("clients", true)
	})
	assert.Equal(t, 2, calls)
}

func TestRetryPolicy_BoundedByCodeBudget(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"polled not found", errors.NewNotFoundError("clients", true), 3},
		{"watermark store", errors.NewWatermarkStoreError("save", stderrors.New("down")), 3},
		{"server error", errors.NewServerError(502, ""), 4},
		{"transport failure", errors.NewTransportFailureError(stderrors.New("reset")), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, waits := recordingPolicy(6, time.Millisecond)
			calls := 0
			err := p.Do(context.Background(), func(ctx context.Context) error {
				calls++
				return tt.err
			})
			assert.Equal(t, tt.err, err)
			assert.Equal(t, tt.expected, calls)
			assert.Len(t, *waits, tt.expected-1)
		})
	}
}

func TestRetryPolicy_CustomPredicateIgnoresCodeBudget(t *testing.T) {
	p, _ := recordingPolicy(5, time.Millisecond)
	always := p.WithRetryable(func(error) bool { return true })

	calls := 0
	_ = always.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.NewNotFoundError("clients", true)
	})
	assert.Equal(t, 5, calls)
}

func TestRetryPolicy_ContextCancelled(t *testing.T) {
	p := NewRetryPolicy(5, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Do(ctx, func(ctx context.Context) error {
		return errors.NewServerError(500, "")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryPolicy_WithRetryable(t *testing.T) {
	p, _ := recordingPolicy(3, time.Millisecond)
	never := p.WithRetryable(func(error) bool { return false })

	calls := 0
	_ = never.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.NewServerError(500, "")
	})
	assert.Equal(t, 1, calls)
	assert.NotNil(t, p.Retryable)
}

// ==========================
// BearerTransport Tests
// ==========================

type countingSource struct {
	token       string
	invalidated int32
}

func (s *countingSource) Token(ctx context.Context) (string, error) { return s.token, nil }
func (s *countingSource) Invalidate(ctx context.Context)             { atomic.AddInt32(&s.invalidated, 1) }

func TestBearerTransport_AttachesHeaders(t *testing.T) {
	var gotAuth, gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	src := &countingSource{token: "abc"}
	client := NewClient(5*time.Second, NewBearerTransport(nil, src))

	req, err := http.NewRequest(http.MethodGet, server.URL+"/clients", nil)
	require.NoError(t, err)
	resp, err := client.Do(req.WithContext(context.Background()))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer abc", gotAuth)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, int32(0), atomic.LoadInt32(&src.invalidated))
}

func TestBearerTransport_InvalidatesOn401(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	src := &countingSource{token: "expired"}
	client := NewClient(5*time.Second, NewBearerTransport(nil, src))

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.invalidated))
}

func TestStaticToken(t *testing.T) {
	tok, err := StaticToken("t").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t", tok)

	_, err = StaticToken("").Token(context.Background())
	assert.Error(t, err)
}
