// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers implements the JSON HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"postdesk/internal/apperr"
)

// maxJSONBody bounds non-multipart request bodies.
const maxJSONBody = 1 << 20

// ErrorBody is the JSON envelope for every failed request.
type ErrorBody struct {
	Error  string              `json:"error"`
	Errors []apperr.FieldError `json:"errors,omitempty"`
}

// MessageBody is returned by operations without content.
type MessageBody struct {
	Message string `json:"message"`
}

// writeJSON serialises v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response failed", "error", err)
	}
}

// writeError maps err onto its HTTP status. Internal errors are logged
// and their cause is never sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Internal("Internal server error.", err)
	}
	if ae.Kind == apperr.KindInternal {
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
	}
	writeJSON(w, ae.Kind.Status(), ErrorBody{Error: ae.Message, Errors: ae.Fields})
}

// decodeJSON reads a JSON body into v. Empty bodies decode as the zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.InvalidArgument("body", "Request body must be valid JSON.")
	}
	return nil
}

// uuidParam parses a chi URL parameter as a UUID. Malformed ids are
// reported as not found, matching lookups of ids that do not exist.
func uuidParam(r *http.Request, name, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.NotFound(what + " not found.")
	}
	return id, nil
}
