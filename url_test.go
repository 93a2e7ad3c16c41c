package vortex

import (
	"reflect"
	"strings"
	"testing"
)

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"https://api.example.com", "/users", "https://api.example.com/users"},
		{"https://api.example.com/", "/users", "https://api.example.com/users"},
		{"/api", "users", "/api/users"},
		{"", "/users", "/users"},
		{"https://api.example.com", "", "https://api.example.com"},
	}

	for _, tt := range tests {
		if got := joinURL(tt.base, tt.path); got != tt.want {
			t.Errorf("joinURL(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}

func TestBuildURLSubstitutesAndEncodes(t *testing.T) {
	got, unused, err := buildURL("https://api.example.com/users/:id", map[string]any{"id": "a@b.com"}, nil, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != "https://api.example.com/users/a%40b.com" {
		t.Errorf("Expected encoded parameter, got %q", got)
	}
	if len(unused) != 0 {
		t.Errorf("Expected no unused parameters, got %v", unused)
	}
}

func TestBuildURLEscapesSeparators(t *testing.T) {
	got, _, err := buildURL("/files/:name", map[string]any{"name": "a b/c"}, nil, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != "/files/a%20b%2Fc" {
		t.Errorf("Expected spaces and slashes to be escaped, got %q", got)
	}
}

func TestBuildURLKeepsPort(t *testing.T) {
	got, _, err := buildURL("http://localhost:8080/users/:id", map[string]any{"id": 7}, nil, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != "http://localhost:8080/users/7" {
		t.Errorf("Expected the port to be preserved, got %q", got)
	}
}

func TestBuildURLMissingParameters(t *testing.T) {
	_, _, err := buildURL("/users/:id/posts/:postId", map[string]any{"id": 1}, nil, nil)
	if err == nil {
		t.Fatal("Expected an error for a missing parameter")
	}

	ce, ok := AsClientError(err)
	if !ok || ce.Type != ErrorTypeValidation {
		t.Fatalf("Expected a VALIDATION error, got %v", err)
	}
	if !strings.Contains(ce.Message, "Missing path parameters: postId") {
		t.Errorf("Expected the missing name in the message, got %q", ce.Message)
	}
	if !strings.Contains(ce.Message, "Provided: [id]") {
		t.Errorf("Expected the provided names in the message, got %q", ce.Message)
	}
	if !reflect.DeepEqual(ce.Metadata["missing"], []string{"postId"}) {
		t.Errorf("Unexpected missing metadata: %v", ce.Metadata["missing"])
	}
}

func TestBuildURLReportsUnusedParameters(t *testing.T) {
	_, unused, err := buildURL("/users/:id", map[string]any{"id": 1, "extra": "x", "another": 2}, nil, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !reflect.DeepEqual(unused, []string{"another", "extra"}) {
		t.Errorf("Expected sorted unused parameters, got %v", unused)
	}
}

func TestBuildURLQuery(t *testing.T) {
	query := map[string]any{"q": "go lang", "page": 2, "draft": false, "skip": nil}

	got, _, err := buildURL("/search", nil, query, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != "/search?draft=false&page=2&q=go+lang" {
		t.Errorf("Unexpected URL %q", got)
	}

	got, _, _ = buildURL("/search?x=1", nil, map[string]any{"y": 2}, nil)
	if got != "/search?x=1&y=2" {
		t.Errorf("Expected the query to be appended with &, got %q", got)
	}

	got, _, _ = buildURL("/search", nil, map[string]any{"skip": nil}, nil)
	if got != "/search" {
		t.Errorf("Expected no query string when every value is nil, got %q", got)
	}
}

func TestParamValueValidation(t *testing.T) {
	for _, v := range []any{"x", 1, int64(2), 3.5, uint8(4)} {
		if !validParamValue(v) {
			t.Errorf("Expected %T to be a valid path parameter", v)
		}
	}
	for _, v := range []any{nil, true, []int{1}, map[string]any{}} {
		if validParamValue(v) {
			t.Errorf("Expected %T to be rejected as a path parameter", v)
		}
	}
	if !validQueryValue(nil) || !validQueryValue(true) {
		t.Error("Expected nil and booleans to be valid query values")
	}
	if validQueryValue([]string{"a"}) {
		t.Error("Expected slices to be rejected as query values")
	}
}
