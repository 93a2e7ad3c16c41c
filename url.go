package vortex

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)

// joinURL concatenates base URL and path template without doubling slashes.
func joinURL(baseURL, path string) string {
	if baseURL == "" {
		return path
	}
	if path == "" {
		return baseURL
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// buildURL substitutes path placeholders and appends the query string.
// Placeholders left without a value fail with a VALIDATION error; supplied
// parameters that match no placeholder are returned as unused.
func buildURL(rawURL string, pathParams, query map[string]any, cfg *RequestConfig) (string, []string, error) {
	target, scheme := splitScheme(rawURL)

	used := make(map[string]bool, len(pathParams))
	var missing []string
	target = placeholderPattern.ReplaceAllStringFunc(target, func(m string) string {
		name := m[1:]
		v, ok := pathParams[name]
		if !ok || v == nil {
			missing = append(missing, name)
			return m
		}
		used[name] = true
		return escapeComponent(stringify(v))
	})

	if len(missing) > 0 {
		provided := sortedKeys(pathParams)
		ce := NewError(ErrorTypeValidation,
			fmt.Sprintf("Missing path parameters: %s. Provided: [%s]", strings.Join(missing, ", "), strings.Join(provided, ", ")),
			nil, cfg)
		ce.Metadata["missing"] = missing
		ce.Metadata["provided"] = provided
		return "", nil, ce
	}

	var unused []string
	for name := range pathParams {
		if !used[name] {
			unused = append(unused, name)
		}
	}
	sort.Strings(unused)

	full := scheme + target
	if qs := encodeQuery(query); qs != "" {
		sep := "?"
		if strings.Contains(full, "?") {
			sep = "&"
		}
		full += sep + qs
	}
	return full, unused, nil
}

// escapeComponent percent-encodes everything outside the unreserved set, so
// "/", "@" and spaces never leak into the path.
func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// splitScheme keeps "scheme://host:port" out of placeholder matching so
// that a port number is never taken for a parameter.
func splitScheme(raw string) (target, prefix string) {
	i := strings.Index(raw, "://")
	if i < 0 {
		return raw, ""
	}
	rest := raw[i+3:]
	slash := strings.IndexAny(rest, "/?#")
	if slash < 0 {
		return "", raw
	}
	return rest[slash:], raw[:i+3] + rest[:slash]
}

func encodeQuery(query map[string]any) string {
	if len(query) == 0 {
		return ""
	}
	values := url.Values{}
	for k, v := range query {
		if v == nil {
			continue
		}
		values.Set(k, stringify(v))
	}
	return values.Encode()
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// validParamValue reports whether v may be used as a path parameter.
func validParamValue(v any) bool {
	switch v.(type) {
	case string, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// validQueryValue additionally accepts booleans and nil (dropped on send).
func validQueryValue(v any) bool {
	if v == nil {
		return true
	}
	if _, ok := v.(bool); ok {
		return true
	}
	return validParamValue(v)
}

func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
