package vortex

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/vorthain/vorthain-vortex/internal/json"
)

const (
	previewLimit     = 200
	truncationSuffix = "..."
)

// readResponse buffers the transport response.
func readResponse(resp *http.Response, requestURL string) (*Response, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	finalURL := requestURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		URL:        finalURL,
		Body:       body,
	}, nil
}

func noContent(resp *Response) bool {
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusResetContent:
		return true
	case http.StatusNotModified:
		return len(resp.Body) == 0
	}
	return false
}

// parseBody decodes the buffered body according to the response type.
func parseBody(resp *Response, cfg *RequestConfig) (any, error) {
	if noContent(resp) {
		return nil, nil
	}

	switch cfg.ResponseType {
	case ResponseText:
		return string(resp.Body), nil
	case ResponseBlob:
		return Blob{Type: resp.Header.Get("Content-Type"), Data: resp.Body}, nil
	case ResponseBinary:
		return resp.Body, nil
	case ResponseForm:
		return parseForm(resp, cfg)
	default:
		return parseJSON(resp, cfg)
	}
}

func parseJSON(resp *Response, cfg *RequestConfig) (any, error) {
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		ce := NewError(ErrorTypeParse,
			fmt.Sprintf("Failed to parse JSON response: %s", preview(resp.Body)),
			err, cfg)
		ce.Status = resp.StatusCode
		ce.Metadata["status"] = resp.StatusCode
		ce.Metadata["headers"] = resp.Header
		ce.Metadata["url"] = resp.URL
		ce.Metadata["raw"] = string(resp.Body)
		return nil, ce
	}
	return v, nil
}

func parseForm(resp *Response, cfg *RequestConfig) (any, error) {
	mediaType, params, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != "" {
		form, err := readMultipart(resp.Body, params["boundary"])
		if err != nil {
			return nil, NewError(ErrorTypeParse, "Failed to parse multipart form response", err, cfg)
		}
		return form, nil
	}
	values, err := url.ParseQuery(string(resp.Body))
	if err != nil {
		return nil, NewError(ErrorTypeParse, "Failed to parse form response", err, cfg)
	}
	return values, nil
}

// readMultipart decodes a multipart body without touching the filesystem;
// the body is already buffered.
func readMultipart(body []byte, boundary string) (*FormData, error) {
	form := &FormData{Values: url.Values{}, Files: map[string][]FormFile{}}
	r := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := r.NextPart()
		if err == io.EOF {
			return form, nil
		}
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return nil, err
		}
		name := part.FormName()
		if part.FileName() == "" {
			form.Values.Add(name, string(data))
			continue
		}
		form.Files[name] = append(form.Files[name], FormFile{
			Filename: part.FileName(),
			Type:     part.Header.Get("Content-Type"),
			Data:     data,
		})
	}
}

// httpError builds the HTTP error for a response rejected by the status
// validator. The body is parsed best effort.
func httpError(resp *Response, cfg *RequestConfig) *ClientError {
	statusText := http.StatusText(resp.StatusCode)
	ce := NewError(ErrorTypeHTTP, httpErrorMessage(resp.StatusCode, statusText, resp.Body), nil, cfg)
	ce.Status = resp.StatusCode
	ce.Body = errorBody(resp.Body)
	ce.Metadata["status"] = resp.StatusCode
	ce.Metadata["statusText"] = statusText
	ce.Metadata["url"] = resp.URL
	ce.Metadata["headers"] = resp.Header
	return ce
}

func errorBody(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	var v any
	if json.Unmarshal(trimmed, &v) == nil {
		return v
	}
	return string(raw)
}

func preview(body []byte) string {
	s := string(body)
	if len(s) <= previewLimit {
		return s
	}
	cut := previewLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationSuffix
}
