// Package vortex is an endpoint-oriented HTTP client. Endpoints are declared
// once and requests are issued through a fluent builder:
//
//	client, err := vortex.New(vortex.Config{
//	    BaseURL: "https://api.example.com",
//	    Settings: vortex.Settings{
//	        Headers: map[string]string{"Authorization": "Bearer " + token},
//	    },
//	    Endpoints: map[string]vortex.EndpointConfig{
//	        "user": {
//	            Path: "/users/:id",
//	            Methods: map[string]vortex.Settings{
//	                "GET": {Cache: &vortex.CacheSettings{Enabled: vortex.Bool(true)}},
//	            },
//	        },
//	    },
//	})
//	ep, _ := client.Endpoint("user")
//	user, err := ep.Get().PathParams(map[string]any{"id": 42}).Send(ctx)
//
// Settings cascade client → endpoint → method → request. Scalars take the
// most specific value that is set; headers, path parameters, query and the
// cache block merge key by key. Mappers collect across levels unless a level
// sets InheritMappers to false.
//
// Every failure is a *ClientError classified as HTTP, NETWORK, TIMEOUT,
// ABORT, PARSE, VALIDATION, CONFIG or CACHE. An ErrorInterceptor may recover
// a failure or call its RetryFunc, bounded by MaxRetries. RetryTransient is a
// ready-made interceptor with backoff.
//
// Caching stores parsed values either with a plain TTL ("simple") or with
// stale-while-revalidate, where concurrent refreshes of the same key are
// shared. Call Destroy to release the cache and in-flight registry.
package vortex
