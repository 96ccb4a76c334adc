// Package dberr is the error taxonomy shared by every backend: a generic
// base, a connection-level category, per-backend coded errors, and an
// aggregate that joins several coded errors (PostgreSQL can report more
// than one field in a single ErrorResponse).
package dberr

import (
	"errors"
	"fmt"
	"strings"
)

// DatabaseError is the generic, user-visible failure category: escape
// failures, bind type mismatches, and anything else that is not a
// connection or backend-coded problem.
type DatabaseError struct {
	Message string
}

func New(message string) *DatabaseError {
	return &DatabaseError{Message: message}
}

func Newf(format string, args ...any) *DatabaseError {
	return &DatabaseError{Message: fmt.Sprintf(format, args...)}
}

func (e *DatabaseError) Error() string {
	return e.Message
}

// ErrTypeMismatch is returned by the result binder (C5) when a cell's
// runtime type cannot be cast into the target field's declared type.
var ErrTypeMismatch = New("type mismatch")

// WrapTypeMismatch builds an error that both renders message and
// satisfies errors.Is(err, ErrTypeMismatch).
func WrapTypeMismatch(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrTypeMismatch)
}

// ConnectionError covers malformed packets, protocol mismatches,
// authentication failure and closed sockets.
type ConnectionError struct {
	Message string
	Cause   error
}

func NewConnection(message string) *ConnectionError {
	return &ConnectionError{Message: message}
}

func WrapConnection(message string, cause error) *ConnectionError {
	return &ConnectionError{Message: message, Cause: cause}
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// ErrConnectionClosed is the sentinel for a 0-byte read on the socket, the
// only manifestation of a timeout in this library.
var ErrConnectionClosed = NewConnection("connection closed by peer")

// WrongPacketSequence is a ConnectionError specialization carrying the
// opcode byte that was expected versus the one actually read.
type WrongPacketSequence struct {
	Expected byte
	Got      byte
}

func NewWrongPacketSequence(expected, got byte) *WrongPacketSequence {
	return &WrongPacketSequence{Expected: expected, Got: got}
}

func (e *WrongPacketSequence) Error() string {
	return fmt.Sprintf("wrong packet sequence: expected %q, got %q", e.Expected, e.Got)
}

// ErrorCodeDatabaseError carries a backend-specific error code: a single
// character field tag for PostgreSQL, a numeric error code (as string) for
// MySQL.
type ErrorCodeDatabaseError struct {
	Name    string
	Code    string
	Message string
}

func NewErrorCode(name, code, message string) *ErrorCodeDatabaseError {
	return &ErrorCodeDatabaseError{Name: name, Code: code, Message: message}
}

func (e *ErrorCodeDatabaseError) Error() string {
	return fmt.Sprintf("(%s-%s) %s", e.Name, e.Code, e.Message)
}

// ErrorCodesDatabaseError aggregates multiple ErrorCodeDatabaseError
// values, joined by ", " — PostgreSQL ErrorResponse packets can carry
// several coded fields in one response.
type ErrorCodesDatabaseError struct {
	Errors []*ErrorCodeDatabaseError
}

func NewErrorCodes(errs ...*ErrorCodeDatabaseError) *ErrorCodesDatabaseError {
	return &ErrorCodesDatabaseError{Errors: errs}
}

func (e *ErrorCodesDatabaseError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, sub := range e.Errors {
		parts[i] = sub.Error()
	}
	return strings.Join(parts, ", ")
}

func (e *ErrorCodesDatabaseError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, sub := range e.Errors {
		errs[i] = sub
	}
	return errs
}

// IsConnection reports whether err is, or wraps, a ConnectionError.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsErrorCode reports whether err is, or wraps, a backend-coded error.
func IsErrorCode(err error) bool {
	var ce *ErrorCodeDatabaseError
	return errors.As(err, &ce)
}
