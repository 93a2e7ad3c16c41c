package vortex

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrorType classifies every failure surfaced by the client.
type ErrorType string

const (
	ErrorTypeHTTP       ErrorType = "HTTP"
	ErrorTypeNetwork    ErrorType = "NETWORK"
	ErrorTypeTimeout    ErrorType = "TIMEOUT"
	ErrorTypeAbort      ErrorType = "ABORT"
	ErrorTypeParse      ErrorType = "PARSE"
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeConfig     ErrorType = "CONFIG"
	ErrorTypeCache      ErrorType = "CACHE"
)

// Sentinel errors for common failure scenarios
var (
	// ErrRetryBudgetExceeded is returned by a RetryFunc once the request has
	// used up MaxRetries. It is never raised on its own: the error
	// interceptor decides whether to surface it.
	ErrRetryBudgetExceeded = errors.New("vortex: retry budget exceeded")

	// ErrCanceled is the default cancellation cause of RequestBuilder.Cancel.
	ErrCanceled = errors.New("vortex: request canceled")

	// ErrTimeout is the cause attached to a request's timeout context.
	ErrTimeout = errors.New("vortex: request timeout")
)

// ClientError is the classified error returned by every failing operation.
type ClientError struct {
	Type     ErrorType
	Message  string
	Cause    error
	Status   int
	Body     any
	Config   *RequestConfig
	Metadata map[string]any

	RequestID  string
	Method     string
	URL        string
	Endpoint   string
	Attempt    int
	MaxRetries int
	Timestamp  time.Time
	Duration   time.Duration

	// finalized marks errors that already went through the error mapper
	// pipeline of a nested retry attempt.
	finalized bool
}

// NewError builds a ClientError of the given type. cfg may be nil.
func NewError(typ ErrorType, message string, cause error, cfg *RequestConfig) *ClientError {
	e := &ClientError{
		Type:      typ,
		Message:   message,
		Cause:     cause,
		Config:    cfg,
		Metadata:  map[string]any{},
		Timestamp: time.Now(),
	}
	if cfg != nil {
		e.RequestID = cfg.RequestID
		e.Method = cfg.Method
		e.Endpoint = cfg.Endpoint
		e.Attempt = cfg.Attempt
		e.MaxRetries = cfg.MaxRetries
		e.URL = cfg.URL
	}
	return e
}

func configError(format string, args ...any) *ClientError {
	return NewError(ErrorTypeConfig, fmt.Sprintf(format, args...), nil, nil)
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// IsType reports whether the error is of the given type.
func (e *ClientError) IsType(typ ErrorType) bool {
	return e != nil && e.Type == typ
}

// HasStatus reports whether the error carries the given HTTP status.
func (e *ClientError) HasStatus(status int) bool {
	return e != nil && e.Status == status
}

// IsClientError reports a 4xx status.
func (e *ClientError) IsClientError() bool {
	return e != nil && e.Status >= 400 && e.Status <= 499
}

// IsServerError reports a 5xx status.
func (e *ClientError) IsServerError() bool {
	return e != nil && e.Status >= 500 && e.Status <= 599
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Error Type: %s\n", e.Type)
	fmt.Fprintf(&b, "Message: %s\n", e.Message)
	if e.RequestID != "" {
		fmt.Fprintf(&b, "Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		fmt.Fprintf(&b, "Method: %s\n", e.Method)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", e.URL)
	}
	if e.Endpoint != "" {
		fmt.Fprintf(&b, "Endpoint: %s\n", e.Endpoint)
	}
	if e.Status > 0 {
		fmt.Fprintf(&b, "Status Code: %d\n", e.Status)
	}
	if e.Attempt > 0 {
		fmt.Fprintf(&b, "Attempt: %d/%d\n", e.Attempt, e.MaxRetries)
	}
	if !e.Timestamp.IsZero() {
		fmt.Fprintf(&b, "Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		fmt.Fprintf(&b, "Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, "Cause: %v\n", e.Cause)
	}
	return b.String()
}

// AsClientError extracts a *ClientError from err's chain.
func AsClientError(err error) (*ClientError, bool) {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsTransient determines if an error represents a transient failure that might succeed on retry.
// Returns true for network errors, timeouts, 5xx server responses, and 429/408 statuses.
// Aborts, validation, parse and configuration errors are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	ce, ok := AsClientError(err)
	if !ok {
		return false
	}
	switch ce.Type {
	case ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	case ErrorTypeHTTP:
		return ce.IsServerError() || ce.Status == 429 || ce.Status == 408
	default:
		return false
	}
}

type timeoutError interface {
	Timeout() bool
}

// Classify normalizes any error into a ClientError. Errors that already are
// ClientErrors are returned unchanged. Cancellation becomes ABORT, deadlines
// and timeouts become TIMEOUT and anything else NETWORK.
func Classify(err error, cfg *RequestConfig) *ClientError {
	if err == nil {
		return nil
	}
	if ce, ok := AsClientError(err); ok {
		return ce
	}

	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return NewError(ErrorTypeTimeout, timeoutMessage(cfg), err, cfg)
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled):
		return NewError(ErrorTypeAbort, "Request was aborted", err, cfg)
	}

	var te timeoutError
	if errors.As(err, &te) && te.Timeout() {
		return NewError(ErrorTypeTimeout, timeoutMessage(cfg), err, cfg)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return NewError(ErrorTypeTimeout, timeoutMessage(cfg), err, cfg)
	}
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return NewError(ErrorTypeTimeout, timeoutMessage(cfg), err, cfg)
	}

	return NewError(ErrorTypeNetwork, "Network request failed: "+err.Error(), err, cfg)
}

// classifyContext maps a finished context to ABORT or TIMEOUT using its cause.
func classifyContext(ctx context.Context, cfg *RequestConfig) *ClientError {
	cause := context.Cause(ctx)
	if cause == nil {
		cause = ctx.Err()
	}
	if errors.Is(cause, ErrTimeout) || errors.Is(cause, context.DeadlineExceeded) {
		return NewError(ErrorTypeTimeout, timeoutMessage(cfg), cause, cfg)
	}
	msg := "Request was aborted"
	var reason *cancelReason
	if errors.As(cause, &reason) && reason.message != "" {
		msg = reason.message
	}
	return NewError(ErrorTypeAbort, msg, cause, cfg)
}

func timeoutMessage(cfg *RequestConfig) string {
	if cfg == nil || cfg.Timeout <= 0 {
		return "Request timeout"
	}
	return fmt.Sprintf("Request timeout after %dms", cfg.Timeout.Milliseconds())
}

// httpErrorMessage prefers a message field from a JSON error body and falls
// back to "HTTP <status>: <text>".
func httpErrorMessage(status int, statusText string, raw []byte) string {
	if len(raw) > 0 && gjson.ValidBytes(raw) {
		for _, path := range []string{"message", "error.message", "error_description", "error", "detail", "title"} {
			if r := gjson.GetBytes(raw, path); r.Exists() && r.Type == gjson.String && r.Str != "" {
				return fmt.Sprintf("HTTP %d: %s", status, r.Str)
			}
		}
	}
	if statusText == "" {
		return fmt.Sprintf("HTTP %d", status)
	}
	return fmt.Sprintf("HTTP %d: %s", status, statusText)
}
