/*
Package errs provides the custom error type and application-level error code constants.

This file defines CustomError, the constructors used across the engine and the
single auth-expiry predicate every network operation consults.
*/
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"chatsync/internal/pkg/logx"
)

// CustomError is the error structure used throughout the application.
// It carries a business code, a user-facing message, an HTTP status and an optional cause.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Message is the user-friendly error description.
	Message string

	// Status is the HTTP status associated with this error. For errors built from a
	// chat server response it is the upstream status.
	Status int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e CustomError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("error code %d (HTTP %d): %s: %v", e.Code, e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("error code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e CustomError) Unwrap() error {
	return e.Err
}

// NewError constructs a *CustomError from a predefined error code.
// details are printf-style arguments for the message template. An unknown code
// yields ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &unknownErr
	}

	customErr := templateErr

	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	if len(details) > 0 {
		if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else {
			logx.Warn("Details provided for error, but message template has no formatting placeholders. Details ignored.",
				"code", code,
			)
		}
	}

	return &customErr
}

// Wrap builds a *CustomError for code and records err as its cause.
func Wrap(code int, err error, details ...any) *CustomError {
	customErr := NewError(code, details...)
	customErr.Err = err
	return customErr
}

// FromStatus classifies a non-success chat server response.
// 401 and 403 are authorization denials and become ErrAuthExpired; everything
// else becomes ErrRemoteRejected. The upstream status and message are kept.
func FromStatus(status int, upstreamMessage string) *CustomError {
	code := ErrRemoteRejected
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		code = ErrAuthExpired
	}

	customErr := NewError(code)
	customErr.Status = status
	if upstreamMessage != "" {
		customErr.Err = errors.New(upstreamMessage)
	}
	return customErr
}

// IsAuthExpired reports whether err carries an authorization denial from the chat server.
// It is the only place that decides whether a failure must force a logout.
func IsAuthExpired(err error) bool {
	return HasCode(err, ErrAuthExpired)
}

// HasCode reports whether the first CustomError in err's chain has the given code.
func HasCode(err error, code int) bool {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr.Code == code
	}
	return false
}

// As extracts a *CustomError from err, falling back to ErrUnknown with err as its cause.
func As(err error) *CustomError {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr
	}
	return Wrap(ErrUnknown, err)
}
