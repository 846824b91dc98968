// Package shield provides reusable HTTP middleware for the rankpilot API.
// It consolidates security headers, request body limits, and shared-secret
// bearer authentication into a single importable package.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultAPIStack() {
//		r.Use(mw)
//	}
//	r.Group(func(r chi.Router) {
//		r.Use(shield.RequireBearer(secret))
//		...
//	})
package shield

import "net/http"

// DefaultAPIStack returns the standard middleware stack for the rankpilot
// API service: SecurityHeaders → MaxJSONBody(1 MiB).
// Bearer authentication is applied per route group, not globally, so that
// /health stays unauthenticated.
func DefaultAPIStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		SecurityHeaders(DefaultHeaders()),
		MaxJSONBody(1 << 20),
	}
}
