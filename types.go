package vortex

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// RedirectPolicy controls how the transport treats 3xx responses.
type RedirectPolicy string

const (
	RedirectFollow RedirectPolicy = "follow"
	RedirectManual RedirectPolicy = "manual"
	RedirectError  RedirectPolicy = "error"
)

// ResponseType selects how a response body is parsed.
type ResponseType string

const (
	ResponseJSON   ResponseType = "json"
	ResponseText   ResponseType = "text"
	ResponseBlob   ResponseType = "blob"
	ResponseBinary ResponseType = "binary"
	ResponseForm   ResponseType = "form"
)

// CacheStrategy selects the caching policy.
type CacheStrategy string

const (
	CacheSimple CacheStrategy = "simple"
	CacheSWR    CacheStrategy = "swr"
)

// NoTimeout disables the request timeout when set at any level.
const NoTimeout time.Duration = -1

// Progress describes transferred bytes. Total is -1 when unknown.
type Progress struct {
	Loaded int64
	Total  int64
}

// Percent returns the completion ratio in [0,100], or -1 when Total is unknown.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return -1
	}
	return float64(p.Loaded) * 100 / float64(p.Total)
}

// ProgressFunc receives upload or download progress events.
type ProgressFunc func(Progress)

// RequestView is the normalized request handed to a RequestInterceptor.
// URL is the base URL joined with the unsubstituted path template.
type RequestView struct {
	URL          string
	Method       string
	Headers      map[string]string
	Body         any
	Timeout      time.Duration
	ResponseType ResponseType
	PathParams   map[string]any
	Query        map[string]any
}

// Response is the buffered transport response seen by a ResponseInterceptor.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	URL        string
	Body       []byte
}

// Blob is a binary payload with a declared media type.
type Blob struct {
	Type string
	Data []byte
}

// FormData is a multipart form response held in memory.
type FormData struct {
	Values url.Values
	Files  map[string][]FormFile
}

// FormFile is one file part of a multipart response.
type FormFile struct {
	Filename string
	Type     string
	Data     []byte
}

// RequestInterceptor may rewrite the request before it is built.
type RequestInterceptor func(ctx context.Context, req *RequestView) (*RequestView, error)

// ResponseInterceptor may inspect or replace the response before status
// validation. Returning nil keeps the original response.
type ResponseInterceptor func(ctx context.Context, resp *Response) (*Response, error)

// RetryFunc re-runs the request, optionally with overrides. It returns
// ErrRetryBudgetExceeded once MaxRetries is used up.
type RetryFunc func(ctx context.Context, overrides *Settings) (any, error)

// ErrorInterceptor is the single recovery point. Returning (value, nil)
// recovers with value, (nil, err) fails with err and (nil, nil) lets the
// original error continue.
type ErrorInterceptor func(ctx context.Context, err *ClientError, cfg *RequestConfig, retry RetryFunc) (any, error)

// ResponseMapper transforms a successful value. A nil result keeps the
// current value; an error is logged and ignored.
type ResponseMapper func(value any, cfg *RequestConfig) (any, error)

// ErrorMapper transforms a failure. A nil result keeps the current error; an
// error is logged and ignored.
type ErrorMapper func(err *ClientError, cfg *RequestConfig) (*ClientError, error)

// Lifecycle callbacks.
type (
	StartFunc      func(cfg *RequestConfig)
	SuccessFunc    func(value any, cfg *RequestConfig)
	ErrorFunc      func(err *ClientError, cfg *RequestConfig)
	FinallyFunc    func(cfg *RequestConfig)
	RevalidateFunc func(value any, cfg *RequestConfig)
)

// Logger is the logging surface used by the client. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DebugConfig toggles verbose logging per concern.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogCache     bool
	LogRetries   bool
	RequestIDGen func() string
}

// Option represents a client configuration option.
type Option func(*Client)

// Int returns a pointer to n, for Settings.MaxRetries.
func Int(n int) *int { return &n }

// Bool returns a pointer to b, for optional flags.
func Bool(b bool) *bool { return &b }
