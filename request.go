package vortex

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/vorthain/vorthain-vortex/internal/json"
	"go.opentelemetry.io/otel/attribute"
)

// cancelReason is the cause recorded by RequestBuilder.Cancel.
type cancelReason struct {
	message string
}

func (r *cancelReason) Error() string {
	if r.message == "" {
		return ErrCanceled.Error()
	}
	return ErrCanceled.Error() + ": " + r.message
}

func (r *cancelReason) Unwrap() error { return ErrCanceled }

// RequestBuilder collects per-request settings and sends the request. A
// builder is meant for a single Send; it is safe to call Cancel from another
// goroutine.
type RequestBuilder struct {
	client   *Client
	endpoint string
	method   string

	settings Settings
	err      error

	ctx      context.Context
	cancel   context.CancelCauseFunc
	cancelMu sync.Once
}

func newRequestBuilder(c *Client, endpoint, method string) *RequestBuilder {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &RequestBuilder{
		client:   c,
		endpoint: endpoint,
		method:   method,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// PathParams merges values for ":name" placeholders. Values must be strings
// or numbers.
func (b *RequestBuilder) PathParams(params map[string]any) *RequestBuilder {
	if params == nil {
		b.fail("pathParams must be an object")
		return b
	}
	for k, v := range params {
		if !validParamValue(v) {
			b.fail(fmt.Sprintf("pathParams[%q] must be a string or number, got %T", k, v))
			return b
		}
	}
	if b.settings.PathParams == nil {
		b.settings.PathParams = map[string]any{}
	}
	mergeParams(b.settings.PathParams, params)
	return b
}

// Search merges query parameters. Values must be strings, numbers, booleans
// or nil; nil entries are dropped when the URL is built.
func (b *RequestBuilder) Search(query map[string]any) *RequestBuilder {
	if query == nil {
		b.fail("search must be an object")
		return b
	}
	for k, v := range query {
		if !validQueryValue(v) {
			b.fail(fmt.Sprintf("search[%q] must be a string, number or boolean, got %T", k, v))
			return b
		}
	}
	if b.settings.Query == nil {
		b.settings.Query = map[string]any{}
	}
	mergeParams(b.settings.Query, query)
	return b
}

// Body sets the request body.
func (b *RequestBuilder) Body(body any) *RequestBuilder {
	b.settings.Body = body
	return b
}

// Settings applies request-level overrides. Maps merge with earlier calls;
// other set fields replace.
func (b *RequestBuilder) Settings(s *Settings) *RequestBuilder {
	if s == nil {
		b.fail("settings must be an object")
		return b
	}
	merged := b.settings
	mergeSettings(&merged, s)
	b.settings = merged
	return b
}

// Cancel aborts the request. Only the first call records its message;
// cancelling a finished request is a no-op.
func (b *RequestBuilder) Cancel(message ...string) {
	b.cancelMu.Do(func() {
		reason := &cancelReason{}
		if len(message) > 0 {
			reason.message = message[0]
		}
		b.cancel(reason)
	})
}

// Err returns the first validation error recorded by a mutator.
func (b *RequestBuilder) Err() error {
	return b.err
}

func (b *RequestBuilder) fail(msg string) {
	if b.err == nil {
		b.err = NewError(ErrorTypeValidation, msg, nil, nil)
	}
}

// Send resolves the configuration and runs the request.
func (b *RequestBuilder) Send(ctx context.Context) (any, error) {
	if b.err != nil {
		return nil, b.err
	}
	c := b.client
	if c.destroyed.Load() {
		return nil, configError("client has been destroyed")
	}

	cfg := c.resolve(b.endpoint, b.method, &b.settings)

	ctx, stop := b.bind(ctx)
	defer stop()

	ctx, span := startRequestSpan(ctx, c.tracer, cfg)
	start := time.Now()
	c.metrics.RecordRequestStart(cfg.Method, cfg.Endpoint)

	run := &logicalRequest{client: c}
	value, err := run.attempt(ctx, cfg)

	duration := time.Since(start)
	c.metrics.RecordRequestEnd(cfg.Method, cfg.Endpoint)
	outcome := "success"
	if err != nil {
		outcome = "error"
		if ce, ok := AsClientError(err); ok {
			ce.Duration = duration
			c.metrics.RecordError(ce.Type, cfg.Method, cfg.Endpoint)
		}
	}
	c.metrics.RecordRequest(cfg.Method, cfg.Endpoint, outcome, duration)
	endSpan(span, err, attribute.Int("vortex.retries", int(run.retries.Load())))

	if err != nil {
		return nil, err
	}
	return value, nil
}

// SendInto sends the request and decodes the result into out, which must
// be a non-nil pointer.
func (b *RequestBuilder) SendInto(ctx context.Context, out any) error {
	if rv := reflect.ValueOf(out); rv.Kind() != reflect.Pointer || rv.IsNil() {
		return NewError(ErrorTypeValidation, "SendInto target must be a non-nil pointer", nil, nil)
	}
	value, err := b.Send(ctx)
	if err != nil {
		return err
	}
	if value == nil {
		return nil
	}
	if err := json.Convert(value, out); err != nil {
		ce := NewError(ErrorTypeParse, fmt.Sprintf("Failed to decode response into %T", out), err, nil)
		ce.Metadata["value"] = value
		return ce
	}
	return nil
}

// bind composes the caller context with the builder's cancellation signal.
func (b *RequestBuilder) bind(ctx context.Context) (context.Context, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	merged, cancel := context.WithCancelCause(ctx)
	if b.ctx.Err() != nil {
		// AfterFunc would fire asynchronously; a pre-aborted request must
		// never reach the transport.
		cancel(context.Cause(b.ctx))
	}
	stopAfter := context.AfterFunc(b.ctx, func() {
		cancel(context.Cause(b.ctx))
	})
	return merged, func() {
		stopAfter()
		cancel(nil)
	}
}
