// Package gateway is the Remote Data Gateway: typed access to the TMIS REST backend.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tmis-business-guru/internal/common/errors"
	commonhttp "tmis-business-guru/internal/common/http"
	"tmis-business-guru/internal/common/logger"
	"tmis-business-guru/internal/common/metrics"
	"tmis-business-guru/internal/common/validation"
	"tmis-business-guru/internal/models"
)

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Tokens    commonhttp.TokenSource
	Retry     *commonhttp.RetryPolicy
	Logger    logger.Logger
	Transport http.RoundTripper
}

// Client talks to the backend. Every call goes through the retry policy; only polled
// endpoints treat 404 as transient.
type Client struct {
	baseURL    string
	httpClient *commonhttp.Client
	retry      *commonhttp.RetryPolicy
	logger     logger.Logger
}

func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.NewConfigurationError("backend base URL is empty")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retry == nil {
		opts.Retry = commonhttp.NewRetryPolicy(3, 2*time.Second)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: commonhttp.NewClient(opts.Timeout, commonhttp.NewBearerTransport(opts.Transport, opts.Tokens)),
		retry:      opts.Retry,
		logger:     logger.ForComponent(opts.Logger, "gateway"),
	}, nil
}

// request describes one logical backend call.
type request struct {
	endpoint string // metrics label
	method   string
	path     string
	polled   bool

	// body builds a fresh payload per attempt.
	body func() (io.Reader, string, error)

	// softFailure lets a non-2xx reply count as an answer, e.g. WhatsApp quota exhaustion.
	softFailure func(status int, body []byte) bool
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func jsonBody(v interface{}) func() (io.Reader, string, error) {
	return func() (io.Reader, string, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal request: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

func (c *Client) do(ctx context.Context, r request) (*response, error) {
	start := time.Now()
	policy := c.retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		metrics.GatewayRetries.WithLabelValues(r.endpoint).Inc()
		c.logger.Warn("backend call failed, retrying", map[string]interface{}{
			"endpoint":    r.endpoint,
			"attempt":     attempt,
			"nextRetryIn": delay.String(),
			"error":       err,
		})
	})

	var resp *response
	err := policy.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.once(ctx, r)
		return err
	})

	metrics.GatewayRequestDuration.WithLabelValues(r.endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GatewayRequests.WithLabelValues(r.endpoint, metrics.OutcomeFailure).Inc()
		return nil, err
	}
	metrics.GatewayRequests.WithLabelValues(r.endpoint, metrics.OutcomeSuccess).Inc()
	return resp, nil
}

func (c *Client) once(ctx context.Context, r request) (*response, error) {
	var (
		payload     io.Reader
		contentType string
	)
	if r.body != nil {
		var err error
		payload, contentType, err = r.body()
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewTransportFailureError(err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.NewTransportFailureError(err)
	}

	resp := &response{status: httpResp.StatusCode, header: httpResp.Header, body: body}
	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		return resp, nil
	}
	if r.softFailure != nil && r.softFailure(httpResp.StatusCode, body) {
		return resp, nil
	}

	stdErr := errors.FromHTTPStatus(httpResp.StatusCode, errorMessage(body), r.polled)
	return nil, stdErr.WithMetadata("endpoint", r.endpoint)
}

// errorMessage extracts {message}/{error} from a backend error body.
func errorMessage(body []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Message != "" {
			return env.Message
		}
		if env.Error != "" {
			return env.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 256 {
		msg = msg[:256]
	}
	return msg
}

// ==========================
// Envelope Decoding
// ==========================

// decodeList unwraps {field: [...]}. A list field that is missing or not an array is treated
// as an empty list so dashboards survive partial backend failures.
func decodeList[T any](log logger.Logger, endpoint, field string, body []byte) ([]T, error) {
	res, err := validation.ValidateDocument("list:"+field, validation.ListEnvelopeSchema(field), body)
	if err != nil {
		return nil, errors.NewInvalidEnvelopeError(endpoint, err.Error())
	}
	if !res.Valid {
		if !res.OnlyFieldErrors(field) {
			return nil, errors.NewInvalidEnvelopeError(endpoint, strings.Join(res.GetErrorMessages(), "; "))
		}
		log.Warn("list envelope malformed, treating as empty", map[string]interface{}{
			"endpoint": endpoint,
			"field":    field,
			"errors":   res.GetErrorMessages(),
		})
		return []T{}, nil
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.NewInvalidEnvelopeError(endpoint, err.Error())
	}
	var items []T
	if err := json.Unmarshal(env[field], &items); err != nil {
		return nil, errors.NewInvalidEnvelopeError(endpoint, err.Error())
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// decodeObject unwraps {field: {...}}.
func decodeObject[T any](endpoint, field string, body []byte) (*T, error) {
	res, err := validation.ValidateDocument("object:"+field, validation.ObjectEnvelopeSchema(field), body)
	if err != nil {
		return nil, errors.NewInvalidEnvelopeError(endpoint, err.Error())
	}
	if !res.Valid {
		return nil, errors.NewInvalidEnvelopeError(endpoint, strings.Join(res.GetErrorMessages(), "; "))
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.NewInvalidEnvelopeError(endpoint, err.Error())
	}
	var out T
	if err := json.Unmarshal(env[field], &out); err != nil {
		return nil, errors.NewInvalidEnvelopeError(endpoint, err.Error())
	}
	return &out, nil
}

// ==========================
// Clients
// ==========================

// ListClients is polled by the dashboards, so a 404 while the backend deploys is retried.
func (c *Client) ListClients(ctx context.Context) ([]models.ClientRecord, error) {
	resp, err := c.do(ctx, request{endpoint: "list_clients", method: http.MethodGet, path: "/clients", polled: true})
	if err != nil {
		return nil, err
	}
	return decodeList[models.ClientRecord](c.logger, "/clients", "clients", resp.body)
}

func (c *Client) GetClient(ctx context.Context, id string) (*models.ClientRecord, error) {
	if id == "" {
		return nil, errors.NewValidationFailedError("client id is required")
	}
	resp, err := c.do(ctx, request{endpoint: "get_client", method: http.MethodGet, path: "/clients/" + id})
	if err != nil {
		return nil, err
	}
	return decodeObject[models.ClientRecord]("/clients/{id}", "client", resp.body)
}

// CreateClient registers a client from flat form fields plus document files (multipart).
func (c *Client) CreateClient(ctx context.Context, fields map[string]string, files []FileUpload) (*models.ClientRecord, error) {
	resp, err := c.do(ctx, request{
		endpoint: "create_client",
		method:   http.MethodPost,
		path:     "/clients",
		body:     multipartBody(fields, files),
	})
	if err != nil {
		return nil, err
	}
	return decodeObject[models.ClientRecord]("/clients", "client", resp.body)
}

// UpdateClient sends a JSON update. A WhatsApp quota failure reported by the backend is not an
// error: the update itself went through and the result carries the warning.
func (c *Client) UpdateClient(ctx context.Context, id string, changes map[string]interface{}) (*UpdateResult, error) {
	if id == "" {
		return nil, errors.NewValidationFailedError("client id is required")
	}
	resp, err := c.do(ctx, request{
		endpoint:    "update_client",
		method:      http.MethodPut,
		path:        "/clients/" + id,
		body:        jsonBody(changes),
		softFailure: isWhatsAppQuotaFailure,
	})
	if err != nil {
		return nil, err
	}
	return parseUpdateResult(resp.status, resp.body)
}

// UpdateClientField patches a single field, e.g. status or loan_status from an inline editor.
func (c *Client) UpdateClientField(ctx context.Context, id, field string, value interface{}) (*UpdateResult, error) {
	if id == "" || field == "" {
		return nil, errors.NewValidationFailedError("client id and field are required")
	}
	resp, err := c.do(ctx, request{
		endpoint:    "update_client_field",
		method:      http.MethodPatch,
		path:        "/clients/" + id,
		body:        jsonBody(map[string]interface{}{field: value}),
		softFailure: isWhatsAppQuotaFailure,
	})
	if err != nil {
		return nil, err
	}
	return parseUpdateResult(resp.status, resp.body)
}

func (c *Client) DeleteClient(ctx context.Context, id string) error {
	if id == "" {
		return errors.NewValidationFailedError("client id is required")
	}
	_, err := c.do(ctx, request{endpoint: "delete_client", method: http.MethodDelete, path: "/clients/" + id})
	return err
}

// ==========================
// Enquiries, Users, Team
// ==========================

func (c *Client) ListEnquiries(ctx context.Context) ([]models.Enquiry, error) {
	resp, err := c.do(ctx, request{endpoint: "list_enquiries", method: http.MethodGet, path: "/enquiries", polled: true})
	if err != nil {
		return nil, err
	}
	return decodeList[models.Enquiry](c.logger, "/enquiries", "enquiries", resp.body)
}

// ListUsers is admin-only on the backend; a 403 surfaces as ACCESS_DENIED without retry.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	resp, err := c.do(ctx, request{endpoint: "list_users", method: http.MethodGet, path: "/users"})
	if err != nil {
		return nil, err
	}
	return decodeList[models.User](c.logger, "/users", "users", resp.body)
}

func (c *Client) ListTeam(ctx context.Context) ([]models.User, error) {
	resp, err := c.do(ctx, request{endpoint: "list_team", method: http.MethodGet, path: "/team"})
	if err != nil {
		return nil, err
	}
	return decodeList[models.User](c.logger, "/team", "users", resp.body)
}

// ==========================
// Chatbot
// ==========================

type ChatReply struct {
	Response string `json:"response"`
}

func (c *Client) Chat(ctx context.Context, message string) (*ChatReply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, errors.NewValidationFailedError("message is required")
	}
	resp, err := c.do(ctx, request{
		endpoint: "chat",
		method:   http.MethodPost,
		path:     "/chatbot/chat",
		body:     jsonBody(map[string]string{"message": message}),
	})
	if err != nil {
		return nil, err
	}
	var reply ChatReply
	if err := json.Unmarshal(resp.body, &reply); err != nil {
		return nil, errors.NewInvalidEnvelopeError("/chatbot/chat", err.Error())
	}
	return &reply, nil
}
