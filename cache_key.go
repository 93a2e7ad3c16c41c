package vortex

import (
	"errors"
	"hash/fnv"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vorthain/vorthain-vortex/internal/json"
)

// cacheKeyHeaders are the only headers that vary the cache key.
var cacheKeyHeaders = []string{"accept", "authorization", "content-type"}

var errUnhashableBody = errors.New("body cannot be hashed")

// CacheKey returns the deterministic cache key for a request:
// METHOD::url[::headers:k:v|...][::body:<hash>].
func CacheKey(method, fullURL string, headers map[string]string, body any) string {
	key, err := buildCacheKey(method, fullURL, headers, body)
	if err != nil {
		return method + "::" + fullURL + "::" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return key
}

func buildCacheKey(method, fullURL string, headers map[string]string, body any) (string, error) {
	var b strings.Builder
	b.WriteString(method)
	b.WriteString("::")
	b.WriteString(fullURL)

	var parts []string
	for k, v := range headers {
		lk := strings.ToLower(k)
		for _, h := range cacheKeyHeaders {
			if lk == h {
				parts = append(parts, lk+":"+v)
				break
			}
		}
	}
	if len(parts) > 0 {
		sort.Strings(parts)
		b.WriteString("::headers:")
		b.WriteString(strings.Join(parts, "|"))
	}

	if hasBody(method) && body != nil {
		serialized, err := serializeForKey(body)
		if err != nil {
			return "", err
		}
		b.WriteString("::body:")
		b.WriteString(hashString(serialized))
	}
	return b.String(), nil
}

func serializeForKey(body any) (string, error) {
	switch v := body.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case url.Values:
		return v.Encode(), nil
	case Blob:
		return v.Type + ":" + string(v.Data), nil
	case io.Reader:
		return "", errUnhashableBody
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// hashString is FNV-1a over the string, rendered in base 36.
func hashString(s string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return strconv.FormatUint(uint64(h.Sum32()), 36)
}
