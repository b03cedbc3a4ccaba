// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

// Package api exposes the catalogue over HTTP. It is a thin shell: all
// interesting semantics live in the engine packages; handlers validate,
// delegate, and serialise.
package api

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/hearthlib/hearth/internal/logging"
)

// APIResponse is the uniform envelope for every endpoint.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError carries a machine-readable code next to the message.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes for API responses.
const (
	ErrCodeBadRequest     = "BAD_REQUEST"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeInternalError  = "INTERNAL_ERROR"
	ErrCodeStoreError     = "STORE_ERROR"
	ErrCodeValidationFail = "VALIDATION_FAILED"
)

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	writeJSON(w, statusCode, APIResponse{
		Success: false,
		Error: &APIError{
			Code:      code,
			Message:   message,
			RequestID: chimiddleware.GetReqID(r.Context()),
		},
	})
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	logging.Error().Err(err).Str("path", r.URL.Path).Msg("Catalogue error")
	writeError(w, r, http.StatusInternalServerError, ErrCodeStoreError, "catalogue unavailable")
}
