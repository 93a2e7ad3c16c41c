package vortex

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const acceptEncoding = "gzip, deflate, br, zstd"

// TransportOptions carries per-request transport policy.
type TransportOptions struct {
	Redirect           RedirectPolicy
	OnUploadProgress   ProgressFunc
	OnDownloadProgress ProgressFunc
}

// Transport performs one HTTP exchange. Implementations must honour the
// request context for cancellation.
type Transport interface {
	Do(req *http.Request, opts TransportOptions) (*http.Response, error)
}

// HTTPTransport is the plain transport backed by an *http.Client. It applies
// the redirect policy and transparently decodes compressed responses.
type HTTPTransport struct {
	Client *http.Client

	// DisableDecompression leaves Accept-Encoding and the response body alone.
	DisableDecompression bool
}

// NewHTTPTransport returns a plain transport using client, or a default
// client when nil.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{Client: client}
}

// Do implements Transport.
func (t *HTTPTransport) Do(req *http.Request, opts TransportOptions) (*http.Response, error) {
	client := *t.Client
	switch opts.Redirect {
	case RedirectManual:
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	case RedirectError:
		client.CheckRedirect = func(next *http.Request, _ []*http.Request) error {
			return fmt.Errorf("redirect to %s refused by redirect policy", next.URL.Redacted())
		}
	}

	decode := !t.DisableDecompression && req.Header.Get("Accept-Encoding") == ""
	if decode {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if !decode {
		return resp, nil
	}

	encoding := resp.Header.Get("Content-Encoding")
	body, err := decodeResponseBody(resp.Body, encoding)
	if err != nil {
		return nil, err
	}
	if body != resp.Body {
		resp.Body = body
		resp.Header.Del("Content-Encoding")
		resp.Header.Del("Content-Length")
		resp.ContentLength = -1
		resp.Uncompressed = true
	}
	return resp, nil
}

// decodeResponseBody wraps body with a decoder for the first supported
// content coding.
func decodeResponseBody(body io.ReadCloser, contentEncoding string) (io.ReadCloser, error) {
	if contentEncoding == "" {
		return body, nil
	}
	for _, raw := range strings.Split(contentEncoding, ",") {
		switch strings.TrimSpace(strings.ToLower(raw)) {
		case "", "identity":
			continue
		case "gzip":
			gr, err := gzip.NewReader(body)
			if err != nil {
				_ = body.Close()
				return nil, fmt.Errorf("failed to create gzip reader: %w", err)
			}
			return &compositeReadCloser{Reader: gr, closers: []func() error{gr.Close, body.Close}}, nil
		case "deflate":
			fr := flate.NewReader(body)
			return &compositeReadCloser{Reader: fr, closers: []func() error{fr.Close, body.Close}}, nil
		case "br":
			return &compositeReadCloser{Reader: brotli.NewReader(body), closers: []func() error{body.Close}}, nil
		case "zstd":
			dec, err := zstd.NewReader(body)
			if err != nil {
				_ = body.Close()
				return nil, fmt.Errorf("failed to create zstd reader: %w", err)
			}
			return &compositeReadCloser{
				Reader: dec,
				closers: []func() error{
					func() error { dec.Close(); return nil },
					body.Close,
				},
			}, nil
		}
	}
	return body, nil
}

type compositeReadCloser struct {
	io.Reader
	closers []func() error
}

func (c *compositeReadCloser) Close() error {
	var first error
	for _, fn := range c.closers {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ProgressTransport is the streaming transport: it reports upload and
// download byte counts while delegating the exchange to Base.
type ProgressTransport struct {
	Base Transport
}

// NewProgressTransport wraps base with progress reporting.
func NewProgressTransport(base Transport) *ProgressTransport {
	return &ProgressTransport{Base: base}
}

// Do implements Transport.
func (t *ProgressTransport) Do(req *http.Request, opts TransportOptions) (*http.Response, error) {
	if opts.OnUploadProgress != nil && req.Body != nil && req.Body != http.NoBody {
		req.Body = &progressReader{
			ReadCloser: req.Body,
			total:      req.ContentLength,
			notify:     opts.OnUploadProgress,
		}
	}

	resp, err := t.Base.Do(req, opts)
	if err != nil {
		return nil, err
	}

	if opts.OnDownloadProgress != nil && resp.Body != nil {
		resp.Body = &progressReader{
			ReadCloser: resp.Body,
			total:      resp.ContentLength,
			notify:     opts.OnDownloadProgress,
		}
	}
	return resp, nil
}

type progressReader struct {
	io.ReadCloser
	loaded atomic.Int64
	total  int64
	notify ProgressFunc
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if n > 0 {
		loaded := r.loaded.Add(int64(n))
		r.notify(Progress{Loaded: loaded, Total: r.total})
	}
	return n, err
}

// selectTransport picks the streaming transport only when progress was
// requested and one is configured.
func selectTransport(cfg *RequestConfig, plain, streaming Transport) (Transport, bool) {
	if cfg.WantsProgress() && streaming != nil {
		return streaming, true
	}
	return plain, false
}
