// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package apperr defines the error taxonomy shared by the post lifecycle,
// the HTTP handlers and the API client. Every failure the API reports maps
// to exactly one Kind, and every Kind maps to exactly one HTTP status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an error for transport purposes.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindUnauthorized
)

// String returns the wire code for the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal_error"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// FieldError is a single field-level validation message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the concrete error type carried through the application.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.Field+": "+f.Message)
		}
		msg = msg + " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation builds a validation error from field messages.
func Validation(fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: "Validation failed.", Fields: fields}
}

// InvalidArgument builds a validation error for a single field.
func InvalidArgument(field, message string) *Error {
	return Validation(FieldError{Field: field, Message: message})
}

// NotFound builds a not-found error.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Forbidden builds an ownership/role failure.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Unauthorized builds an authentication failure.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Internal wraps a storage or infrastructure failure.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf reports the kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err has the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FieldList accumulates field errors during validation.
type FieldList []FieldError

// Add records a message for field.
func (l *FieldList) Add(field, message string) {
	*l = append(*l, FieldError{Field: field, Message: message})
}

// Err returns a validation error if any field failed, nil otherwise.
func (l FieldList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return Validation(l...)
}
