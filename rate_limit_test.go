package vortex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestLimiterRegistry(t *testing.T) {
	r := newLimiterRegistry()
	if r.get("users") != nil {
		t.Error("Expected no limiter by default")
	}

	fallback := rate.NewLimiter(1, 1)
	r.setFallback(fallback)
	specific := rate.NewLimiter(2, 2)
	r.register("users", specific)

	if r.get("users") != specific {
		t.Error("Expected the endpoint limiter to win")
	}
	if r.get("user") != fallback {
		t.Error("Expected other endpoints to use the fallback")
	}
}

func TestClientRateLimit(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusOK, `{}`)
	}))
	defer server.Close()

	client := newTestClient(t, usersConfig(server.URL),
		WithRateLimit(rate.Every(time.Hour), 1),
		WithEndpointRateLimit("user", rate.Inf, 1))
	users := endpoint(t, client, "users")
	short := &Settings{Timeout: 50 * time.Millisecond}

	if _, err := users.Get().Settings(short).Send(context.Background()); err != nil {
		t.Fatalf("Expected the first request to use the burst, got %v", err)
	}
	_, err := users.Get().Settings(short).Send(context.Background())
	ce := mustClientError(t, err, ErrorTypeNetwork)
	if !strings.HasPrefix(ce.Message, "Rate limiter refused request") {
		t.Errorf("Unexpected message %q", ce.Message)
	}

	user := endpoint(t, client, "user")
	for i := 0; i < 3; i++ {
		if _, err := user.Get().PathParams(map[string]any{"id": i}).Send(context.Background()); err != nil {
			t.Fatalf("Expected the endpoint limiter to override the fallback, got %v", err)
		}
	}
	if hits.Load() != 4 {
		t.Errorf("Expected 4 dispatched requests, got %d", hits.Load())
	}
}
