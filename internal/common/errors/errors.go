// Package errors provides the standardized error taxonomy shared by the gateway, wizard and stores.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeTransportFailure ErrorCode = "TRANSPORT_FAILURE"
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeAccessDenied     ErrorCode = "ACCESS_DENIED"
	ErrCodeNotFound         ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeServerError      ErrorCode = "SERVER_ERROR"
	ErrCodeRequestRejected  ErrorCode = "REQUEST_REJECTED"
	ErrCodeDuplicateClient  ErrorCode = "DUPLICATE_CLIENT"

	ErrCodeInvalidEnvelope   ErrorCode = "INVALID_RESPONSE_ENVELOPE"
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrCodeWizardStepInvalid ErrorCode = "WIZARD_STEP_INVALID"

	ErrCodeWatermarkStoreFailed ErrorCode = "WATERMARK_STORE_FAILED"
	ErrCodeConfigurationInvalid ErrorCode = "CONFIGURATION_INVALID"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"statusCode,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata returns the error with an extra metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewTransportFailureError covers status 0: the backend could not be reached at all.
func NewTransportFailureError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportFailure,
		Message:   "Unable to reach the server. Please check your connection.",
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewUnauthorizedError(details string) *StandardError {
	return &StandardError{
		Code:       ErrCodeUnauthorized,
		Message:    "Your session has expired. Please log in again.",
		Details:    details,
		Retryable:  false,
		StatusCode: http.StatusUnauthorized,
		Timestamp:  time.Now().UTC(),
	}
}

func NewAccessDeniedError(details string) *StandardError {
	return &StandardError{
		Code:       ErrCodeAccessDenied,
		Message:    "Access denied",
		Details:    details,
		Retryable:  false,
		StatusCode: http.StatusForbidden,
		Timestamp:  time.Now().UTC(),
	}
}

// NewNotFoundError is retryable only for polled endpoints, where a 404 usually means the
// backend is still deploying.
func NewNotFoundError(details string, polled bool) *StandardError {
	return &StandardError{
		Code:       ErrCodeNotFound,
		Message:    "Requested resource was not found",
		Details:    details,
		Retryable:  polled,
		StatusCode: http.StatusNotFound,
		Timestamp:  time.Now().UTC(),
	}
}

func NewServerError(status int, details string) *StandardError {
	return &StandardError{
		Code:       ErrCodeServerError,
		Message:    "The server encountered an error. Please try again later.",
		Details:    details,
		Retryable:  true,
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
	}
}

func NewRequestRejectedError(status int, details string) *StandardError {
	return &StandardError{
		Code:       ErrCodeRequestRejected,
		Message:    "The request was rejected by the server",
		Details:    details,
		Retryable:  false,
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
	}
}

func NewDuplicateClientError(details string) *StandardError {
	return &StandardError{
		Code:       ErrCodeDuplicateClient,
		Message:    "A client with this mobile number already exists",
		Details:    details,
		Retryable:  false,
		StatusCode: http.StatusConflict,
		Timestamp:  time.Now().UTC(),
	}
}

func NewInvalidEnvelopeError(endpoint string, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidEnvelope,
		Message:   "Unexpected response from server",
		Details:   fmt.Sprintf("endpoint: %s, %s", endpoint, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewWizardStepInvalidError(step int, fields []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeWizardStepInvalid,
		Message:   fmt.Sprintf("Please complete all required fields in step %d", step),
		Details:   strings.Join(fields, ", "),
		Retryable: false,
		Metadata: map[string]interface{}{
			"step":   step,
			"fields": fields,
		},
		Timestamp: time.Now().UTC(),
	}
}

func NewWatermarkStoreError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeWatermarkStoreFailed,
		Message:   "Notification watermark store error",
		Details:   fmt.Sprintf("op: %s, error: %s", op, errDetails(err)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewConfigurationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigurationInvalid,
		Message:   "Invalid configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. HTTP Status Classification
// ==========================

// FromHTTPStatus maps a backend reply to the taxonomy. Status 0 means no reply was received.
func FromHTTPStatus(status int, body string, polled bool) *StandardError {
	switch {
	case status == 0:
		return NewTransportFailureError(stderrors.New(body))
	case status == http.StatusUnauthorized:
		return NewUnauthorizedError(body)
	case status == http.StatusForbidden:
		return NewAccessDeniedError(body)
	case status == http.StatusNotFound:
		return NewNotFoundError(body, polled)
	case status >= 500:
		return NewServerError(status, body)
	case isDuplicateMessage(status, body):
		return NewDuplicateClientError(body)
	case status >= 400:
		return NewRequestRejectedError(status, body)
	default:
		return &StandardError{
			Code:       ErrCodeInternal,
			Message:    "Unexpected response status",
			Details:    fmt.Sprintf("status: %d", status),
			StatusCode: status,
			Timestamp:  time.Now().UTC(),
		}
	}
}

func isDuplicateMessage(status int, body string) bool {
	if status == http.StatusConflict {
		return true
	}
	if status != http.StatusBadRequest {
		return false
	}
	lower := strings.ToLower(body)
	return strings.Contains(lower, "already exists") || strings.Contains(lower, "duplicate")
}

// ==========================
// 4. Utility Functions
// ==========================

// GetRetryCount returns how many extra attempts a failure with this code deserves.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeTransportFailure,
		ErrCodeServerError:
		return 3
	case ErrCodeNotFound,
		ErrCodeWatermarkStoreFailed:
		return 2
	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeTransportFailure:
		return "NETWORK"
	case ErrCodeUnauthorized, ErrCodeAccessDenied:
		return "AUTH"
	case ErrCodeNotFound, ErrCodeServerError, ErrCodeRequestRejected, ErrCodeDuplicateClient, ErrCodeInvalidEnvelope:
		return "BACKEND"
	case ErrCodeValidationFailed, ErrCodeWizardStepInvalid:
		return "VALIDATION"
	case ErrCodeWatermarkStoreFailed:
		return "STORAGE"
	default:
		return "OTHER"
	}
}

// AsStandard extracts a *StandardError from an error chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// IsRetryable reports whether err should be retried by a fetch policy.
func IsRetryable(err error) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Retryable
}

// UserMessage is the message shown to the person using the dashboard.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if stdErr, ok := AsStandard(err); ok {
		return stdErr.Message
	}
	return "Something went wrong. Please try again."
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
