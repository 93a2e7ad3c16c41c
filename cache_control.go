package vortex

import (
	"strconv"
	"strings"
	"time"
)

// cacheDirectives is the subset of Cache-Control the store step honours.
type cacheDirectives struct {
	NoStore bool
	NoCache bool
	Private bool
	MaxAge  *time.Duration
}

// parseCacheControl parses a Cache-Control header value.
func parseCacheControl(header string) cacheDirectives {
	var d cacheDirectives
	for _, part := range strings.Split(header, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}

		key, value, hasValue := strings.Cut(part, "=")
		if hasValue {
			value = strings.Trim(strings.TrimSpace(value), `"`)
			if strings.TrimSpace(key) == "max-age" {
				if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
					maxAge := time.Duration(seconds) * time.Second
					d.MaxAge = &maxAge
				}
			}
			continue
		}

		switch part {
		case "no-store":
			d.NoStore = true
		case "no-cache":
			d.NoCache = true
		case "private":
			d.Private = true
		}
	}
	return d
}

// storeTTL bounds the configured TTL by the response's max-age. A zero
// result means the value must not be stored.
func storeTTL(configured time.Duration, d cacheDirectives) time.Duration {
	if d.NoStore {
		return 0
	}
	if d.MaxAge != nil && *d.MaxAge < configured {
		return *d.MaxAge
	}
	return configured
}
