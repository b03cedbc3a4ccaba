// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/golang-jwt/jwt/v5"

	"github.com/hearthlib/hearth/internal/metrics"
)

// corsHandler builds the CORS middleware from the configured origins.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	})
}

// rateLimit returns an IP-keyed limiter, or a no-op when requests <= 0.
func rateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(requests, window)
}

// securityHeaders adds the standard hardening headers to API responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// recordMetrics observes request counts and latency per endpoint.
func recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.RecordAPIRequest(r.Method, r.URL.Path, strconv.Itoa(rec.status), time.Since(start))
	})
}

// authenticate validates a Bearer token signed with the shared secret.
// An empty secret disables authentication entirely, which is the default
// for a single-user local deployment.
func authenticate(secret string) func(http.Handler) http.Handler {
	if secret == "" {
		return func(next http.Handler) http.Handler { return next }
	}

	keyFunc := func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				writeError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "missing bearer token")
				return
			}

			token, err := jwt.Parse(raw, keyFunc,
				jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
			if err != nil || !token.Valid {
				writeError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
