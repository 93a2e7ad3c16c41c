package vortex

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

func TestClientErrorError(t *testing.T) {
	tests := []struct {
		name string
		err  *ClientError
		want string
	}{
		{
			name: "type and message",
			err:  &ClientError{Type: ErrorTypeNetwork, Message: "connection refused"},
			want: "NETWORK: connection refused",
		},
		{
			name: "with cause",
			err:  &ClientError{Type: ErrorTypeNetwork, Message: "failed", Cause: errors.New("dial tcp")},
			want: "NETWORK: failed (dial tcp)",
		},
		{
			name: "with request id and attempt",
			err:  &ClientError{Type: ErrorTypeHTTP, Message: "HTTP 500", RequestID: "req-1", Attempt: 2, MaxRetries: 3},
			want: "[req-1] HTTP: HTTP 500 (attempt 2/3)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}

	var nilErr *ClientError
	if nilErr.Error() != "<nil>" {
		t.Errorf("Expected <nil> for nil error, got %q", nilErr.Error())
	}
}

func TestClientErrorIsAndUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewError(ErrorTypeHTTP, "boom", cause, nil)

	if !errors.Is(err, &ClientError{Type: ErrorTypeHTTP}) {
		t.Error("Expected errors.Is to match on type")
	}
	if errors.Is(err, &ClientError{Type: ErrorTypeNetwork}) {
		t.Error("Expected errors.Is not to match a different type")
	}
	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to reach the cause")
	}
	if len(err.Metadata) != 0 || err.Metadata == nil {
		t.Error("Expected empty, non-nil metadata")
	}
}

func TestNewErrorCopiesRequestContext(t *testing.T) {
	cfg := &RequestConfig{
		RequestID:  "abc",
		Method:     "GET",
		Endpoint:   "users",
		Attempt:    1,
		MaxRetries: 2,
		URL:        "https://api.example.com/users",
	}
	err := NewError(ErrorTypeTimeout, "slow", nil, cfg)

	if err.RequestID != "abc" || err.Method != "GET" || err.Endpoint != "users" {
		t.Errorf("Expected request context to be copied, got %+v", err)
	}
	if err.Attempt != 1 || err.MaxRetries != 2 {
		t.Errorf("Expected attempt 1/2, got %d/%d", err.Attempt, err.MaxRetries)
	}
	if err.Config != cfg {
		t.Error("Expected config to be attached")
	}
}

func TestClientErrorStatusPredicates(t *testing.T) {
	notFound := &ClientError{Type: ErrorTypeHTTP, Status: 404}
	unavailable := &ClientError{Type: ErrorTypeHTTP, Status: 503}

	if !notFound.IsClientError() || notFound.IsServerError() {
		t.Error("Expected 404 to be a client error only")
	}
	if !unavailable.IsServerError() || unavailable.IsClientError() {
		t.Error("Expected 503 to be a server error only")
	}
	if !notFound.HasStatus(404) || notFound.HasStatus(500) {
		t.Error("Expected HasStatus to compare the status code")
	}
	if !notFound.IsType(ErrorTypeHTTP) {
		t.Error("Expected IsType(HTTP) to be true")
	}
}

func TestClientErrorDebugInfo(t *testing.T) {
	err := &ClientError{
		Type:      ErrorTypeHTTP,
		Message:   "HTTP 404: Not Found",
		Status:    404,
		Method:    "GET",
		URL:       "https://api.example.com/users/1",
		RequestID: "req-9",
		Timestamp: time.Now(),
	}
	info := err.DebugInfo()

	for _, want := range []string{"Error Type: HTTP", "Status Code: 404", "Request ID: req-9", "URL: https://api.example.com/users/1"} {
		if !strings.Contains(info, want) {
			t.Errorf("Expected DebugInfo to contain %q, got:\n%s", want, info)
		}
	}
}

func TestClassify(t *testing.T) {
	cfg := &RequestConfig{Timeout: 1500 * time.Millisecond}

	tests := []struct {
		name    string
		err     error
		want    ErrorType
		message string
	}{
		{"canceled", context.Canceled, ErrorTypeAbort, "Request was aborted"},
		{"deadline", context.DeadlineExceeded, ErrorTypeTimeout, "Request timeout after 1500ms"},
		{"timeout cause", ErrTimeout, ErrorTypeTimeout, "Request timeout after 1500ms"},
		{"net timeout", &net.DNSError{Err: "i/o", Name: "example.com", IsTimeout: true}, ErrorTypeTimeout, "Request timeout after 1500ms"},
		{"timeout text", errors.New("read: i/o timeout"), ErrorTypeTimeout, "Request timeout after 1500ms"},
		{"network", errors.New("connection refused"), ErrorTypeNetwork, "Network request failed: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := Classify(tt.err, cfg)
			if ce.Type != tt.want {
				t.Errorf("Expected type %s, got %s", tt.want, ce.Type)
			}
			if ce.Message != tt.message {
				t.Errorf("Expected message %q, got %q", tt.message, ce.Message)
			}
			if !errors.Is(ce, tt.err) {
				t.Error("Expected the original error to be the cause")
			}
		})
	}
}

func TestClassifyKeepsClientErrors(t *testing.T) {
	original := NewError(ErrorTypeParse, "bad json", nil, nil)
	if got := Classify(original, nil); got != original {
		t.Error("Expected an existing ClientError to be returned unchanged")
	}
	if Classify(nil, nil) != nil {
		t.Error("Expected nil for a nil error")
	}
}

func TestClassifyContext(t *testing.T) {
	t.Run("cancel reason", func(t *testing.T) {
		ctx, cancel := context.WithCancelCause(context.Background())
		cancel(&cancelReason{message: "user left"})

		ce := classifyContext(ctx, nil)
		if ce.Type != ErrorTypeAbort {
			t.Errorf("Expected ABORT, got %s", ce.Type)
		}
		if ce.Message != "user left" {
			t.Errorf("Expected the cancel message, got %q", ce.Message)
		}
		if !errors.Is(ce, ErrCanceled) {
			t.Error("Expected errors.Is(ErrCanceled)")
		}
	})

	t.Run("deadline", func(t *testing.T) {
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()

		ce := classifyContext(ctx, &RequestConfig{Timeout: 50 * time.Millisecond})
		if ce.Type != ErrorTypeTimeout {
			t.Errorf("Expected TIMEOUT, got %s", ce.Type)
		}
		if ce.Message != "Request timeout after 50ms" {
			t.Errorf("Unexpected message %q", ce.Message)
		}
	})
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("plain"), false},
		{&ClientError{Type: ErrorTypeNetwork}, true},
		{&ClientError{Type: ErrorTypeTimeout}, true},
		{&ClientError{Type: ErrorTypeHTTP, Status: 502}, true},
		{&ClientError{Type: ErrorTypeHTTP, Status: 429}, true},
		{&ClientError{Type: ErrorTypeHTTP, Status: 408}, true},
		{&ClientError{Type: ErrorTypeHTTP, Status: 404}, false},
		{&ClientError{Type: ErrorTypeAbort}, false},
		{&ClientError{Type: ErrorTypeParse}, false},
		{&ClientError{Type: ErrorTypeConfig}, false},
	}

	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestHTTPErrorMessage(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		statusText string
		body       string
		want       string
	}{
		{"message field", 400, "Bad Request", `{"message":"bad id"}`, "HTTP 400: bad id"},
		{"nested message", 400, "Bad Request", `{"error":{"message":"nested"}}`, "HTTP 400: nested"},
		{"error string", 401, "Unauthorized", `{"error":"invalid_token"}`, "HTTP 401: invalid_token"},
		{"not json", 502, "Bad Gateway", "<html>upstream</html>", "HTTP 502: Bad Gateway"},
		{"no status text", 599, "", "", "HTTP 599"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := httpErrorMessage(tt.status, tt.statusText, []byte(tt.body)); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
