package vortex

import (
	"strings"
	"testing"
)

func TestCacheKey(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		headers map[string]string
		body    any
		want    string
	}{
		{
			name:   "url only",
			method: "GET",
			want:   "GET::https://api.example.com/users",
		},
		{
			name:    "relevant headers only, sorted",
			method:  "GET",
			headers: map[string]string{"X-Trace": "1", "Authorization": "Bearer t", "Accept": "application/json"},
			want:    "GET::https://api.example.com/users::headers:accept:application/json|authorization:Bearer t",
		},
		{
			name:   "body ignored for GET",
			method: "GET",
			body:   map[string]any{"a": 1},
			want:   "GET::https://api.example.com/users",
		},
		{
			name:   "body hashed for POST",
			method: "POST",
			body:   map[string]any{"a": 1},
			want:   "POST::https://api.example.com/users::body:" + hashString(`{"a":1}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CacheKey(tt.method, "https://api.example.com/users", tt.headers, tt.body)
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCacheKeyDeterministic(t *testing.T) {
	body := map[string]any{"b": 2, "a": 1}
	first := CacheKey("POST", "/items", nil, body)
	for i := 0; i < 10; i++ {
		if got := CacheKey("POST", "/items", nil, body); got != first {
			t.Fatalf("Expected a stable key, got %q then %q", first, got)
		}
	}

	if CacheKey("POST", "/items", nil, map[string]any{"a": 2}) == first {
		t.Error("Expected different bodies to produce different keys")
	}
}

func TestCacheKeyUnhashableBody(t *testing.T) {
	key := CacheKey("POST", "/upload", nil, strings.NewReader("stream"))
	if !strings.HasPrefix(key, "POST::/upload::") {
		t.Errorf("Expected a fallback key with the method and URL, got %q", key)
	}
	if strings.Contains(key, "::body:") {
		t.Errorf("Expected no body hash for a reader, got %q", key)
	}
}
