/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

// Package apierr defines the closed set of error kinds that can cross the
// boundary from the view engine into the HTTP surface.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies one of the error kinds surfaced to clients, plus the
// internal-only ConfigError used during startup.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindForbidden         Kind = "forbidden"
	KindUnauthorized      Kind = "unauthorized"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindPayloadTooLarge   Kind = "payload_too_large"
	KindUnsupportedMedia  Kind = "unsupported_media_type"
	KindUpstreamDirectory Kind = "upstream_directory_error"
	KindMailer            Kind = "mailer_error"
	KindConfig            Kind = "config_error"
)

// FieldTree is either a leaf message or a map of child field/group keys to
// subtrees. It is the Go rendition of the "sum of {Simple(msg) |
// Field(key -> subtree)}" structure called for in the design notes.
type FieldTree struct {
	message  string
	children map[string]*FieldTree
}

// Leaf builds a FieldTree that is just a message.
func Leaf(msg string) *FieldTree {
	return &FieldTree{message: msg}
}

// Nest wraps a subtree one level deeper under key.
func Nest(key string, child *FieldTree) *FieldTree {
	return &FieldTree{children: map[string]*FieldTree{key: child}}
}

// MarshalJSON renders a leaf as a JSON string and a node as a JSON object.
func (t *FieldTree) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("null"), nil
	}
	if t.children != nil {
		return json.Marshal(t.children)
	}
	return json.Marshal(t.message)
}

// Error is the single error type used across every layer of this service.
type Error struct {
	Kind     Kind
	Message  string
	Field    *FieldTree
	Upstream string
	cause    error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Validation builds a field-level validation error.
func Validation(field *FieldTree) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Field: field}
}

// Validationf builds a validation error with a plain-message leaf.
func Validationf(format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Kind: KindValidation, Message: msg, Field: Leaf(msg)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...any) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func PayloadTooLarge(format string, args ...any) *Error {
	return &Error{Kind: KindPayloadTooLarge, Message: fmt.Sprintf(format, args...)}
}

func UnsupportedMediaType(format string, args ...any) *Error {
	return &Error{Kind: KindUnsupportedMedia, Message: fmt.Sprintf(format, args...)}
}

func UpstreamDirectory(upstreamKind string, cause error) *Error {
	return &Error{
		Kind:     KindUpstreamDirectory,
		Message:  fmt.Sprintf("directory error (%s): %v", upstreamKind, cause),
		Upstream: upstreamKind,
		cause:    cause,
	}
}

func Mailer(cause error) *Error {
	return &Error{Kind: KindMailer, Message: fmt.Sprintf("mail delivery failed: %v", cause), cause: cause}
}

func Config(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

// WrapField nests err's field tree one level deeper under key, if err is a
// validation *Error. Any other error (or error kind) passes through
// unchanged, matching the original's rule that only field-level validation
// errors bubble with path annotations.
func WrapField(key string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e.Kind == KindValidation {
		return &Error{Kind: KindValidation, Message: e.Message, Field: Nest(key, e.Field)}
	}
	return err
}

// As is a small convenience wrapper around errors.As for *Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
