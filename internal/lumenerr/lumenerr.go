// Copyright 2024 The Lumen Authors
// This file is part of Lumen.
//
// Lumen is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Lumen is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Lumen. If not, see <http://www.gnu.org/licenses/>.

// Package lumenerr defines the node-wide error taxonomy every component
// returns through, so the RPC layer can map errors to JSON-RPC codes
// without each caller knowing about the wire format.
package lumenerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error independently of the message text, generalized
// across every subsystem.
type Kind uint8

const (
	Internal Kind = iota
	InvalidRequest
	NotFound
	PreconditionFailed
	Unsupported
	ResourceExhausted
	Timeout
	Execution
)

func (k Kind) String() string {
	switch k {
	case InvalidRequest:
		return "invalid_request"
	case NotFound:
		return "not_found"
	case PreconditionFailed:
		return "precondition_failed"
	case Unsupported:
		return "unsupported"
	case ResourceExhausted:
		return "resource_exhausted"
	case Timeout:
		return "timeout"
	case Execution:
		return "execution"
	default:
		return "internal"
	}
}

// Error is the concrete type every Lumen package returns for expected
// failure modes. Data carries kind-specific detail (e.g. the field that
// failed validation) that the RPC layer serializes into the JSON-RPC
// error's `data` member.
type Error struct {
	Kind    Kind
	Message string
	Data    any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a Kind-tagged error with no wrapped cause.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds a Kind-tagged error with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind to an underlying error, preserving it for
// errors.Unwrap/errors.Is/errors.As.
func Wrap(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithData attaches structured detail to an existing Lumen error, no-op on
// any other error type.
func WithData(err error, data any) error {
	var le *Error
	if errors.As(err, &le) {
		clone := *le
		clone.Data = data
		return &clone
	}
	return err
}

// KindOf extracts the Kind from err, defaulting to Internal when err is not
// (or does not wrap) a *Error.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return Internal
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
