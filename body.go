package vortex

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/vorthain/vorthain-vortex/internal/json"
)

// Content types assigned by auto-detection.
const (
	ContentTypeJSON        = "application/json; charset=utf-8"
	ContentTypeForm        = "application/x-www-form-urlencoded"
	ContentTypeOctetStream = "application/octet-stream"
	ContentTypeXML         = "application/xml"
	ContentTypeText        = "text/plain; charset=utf-8"
)

// MultipartForm is a multipart/form-data body. The boundary is chosen when
// the request is encoded, so no Content-Type is detected for it up front.
type MultipartForm struct {
	Fields map[string]string
	Files  []FormFile
}

// FormFile is one file part of a MultipartForm.
type FormFile struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// payload is an encoded request body.
type payload struct {
	reader      io.Reader
	size        int64
	contentType string
}

// detectContentType returns the Content-Type implied by body, or "" when the
// transport has to assign one.
func detectContentType(body any) string {
	switch b := body.(type) {
	case nil, *MultipartForm, MultipartForm:
		return ""
	case url.Values:
		return ContentTypeForm
	case Blob:
		if b.Type != "" {
			return b.Type
		}
		return ContentTypeOctetStream
	case *Blob:
		if b != nil && b.Type != "" {
			return b.Type
		}
		return ContentTypeOctetStream
	case []byte, io.Reader:
		return ContentTypeOctetStream
	case string:
		if looksLikeXML(b) {
			return ContentTypeXML
		}
		return ContentTypeText
	default:
		return ContentTypeJSON
	}
}

func looksLikeXML(s string) bool {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "<") {
		return false
	}
	lower := strings.ToLower(t)
	return strings.Contains(lower, "<?xml") || strings.Contains(lower, "<!doctype")
}

// encodeBody serializes body for the wire. Objects are encoded as JSON.
func encodeBody(body any, cfg *RequestConfig) (*payload, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case *MultipartForm:
		return encodeMultipart(b, cfg)
	case MultipartForm:
		return encodeMultipart(&b, cfg)
	case url.Values:
		return bytesPayload([]byte(b.Encode())), nil
	case Blob:
		return bytesPayload(b.Data), nil
	case *Blob:
		if b == nil {
			return nil, nil
		}
		return bytesPayload(b.Data), nil
	case []byte:
		return bytesPayload(b), nil
	case string:
		return bytesPayload([]byte(b)), nil
	case io.Reader:
		return &payload{reader: b, size: -1}, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, NewError(ErrorTypeValidation, "Failed to serialize request body to JSON", err, cfg)
		}
		return bytesPayload(data), nil
	}
}

func bytesPayload(data []byte) *payload {
	return &payload{reader: bytes.NewReader(data), size: int64(len(data))}
}

func encodeMultipart(form *MultipartForm, cfg *RequestConfig) (*payload, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, name := range sortedStringKeys(form.Fields) {
		if err := w.WriteField(name, form.Fields[name]); err != nil {
			return nil, NewError(ErrorTypeValidation, "Failed to encode multipart form", err, cfg)
		}
	}
	for _, f := range form.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Filename))
		ct := f.ContentType
		if ct == "" {
			ct = ContentTypeOctetStream
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err == nil {
			_, err = part.Write(f.Data)
		}
		if err != nil {
			return nil, NewError(ErrorTypeValidation, "Failed to encode multipart form", err, cfg)
		}
	}
	if err := w.Close(); err != nil {
		return nil, NewError(ErrorTypeValidation, "Failed to encode multipart form", err, cfg)
	}

	return &payload{
		reader:      bytes.NewReader(buf.Bytes()),
		size:        int64(buf.Len()),
		contentType: w.FormDataContentType(),
	}, nil
}

func readCloser(r io.Reader) io.ReadCloser {
	if rc, ok := r.(io.ReadCloser); ok {
		return rc
	}
	return io.NopCloser(r)
}
