/*
Package errs provides the custom error type and application-level error code constants.

This file maps each error code to its CustomError template.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: Bridge Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Session State Errors
	ErrChannelExists:       {Code: ErrChannelExists, Message: "Channel %d already exists.", Status: http.StatusConflict},
	ErrChannelNotFound:     {Code: ErrChannelNotFound, Message: "Channel %d not found.", Status: http.StatusNotFound},
	ErrUserNotFound:        {Code: ErrUserNotFound, Message: "User %d not found.", Status: http.StatusNotFound},
	ErrMessageContentEmpty: {Code: ErrMessageContentEmpty, Message: "Message is empty.", Status: http.StatusBadRequest},

	// 3xxx: Authentication Errors
	ErrNotAuthenticated:   {Code: ErrNotAuthenticated, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrAuthExpired:        {Code: ErrAuthExpired, Message: "Your session has expired. Please sign in again.", Status: http.StatusUnauthorized},
	ErrTokenMalformed:     {Code: ErrTokenMalformed, Message: "Received an unreadable token.", Status: http.StatusBadGateway},
	ErrAuthInProgress:     {Code: ErrAuthInProgress, Message: "Sign in is already in progress.", Status: http.StatusConflict},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Invalid email or password.", Status: http.StatusForbidden},

	// 4xxx: Remote Service Errors
	ErrRemoteUnavailable: {Code: ErrRemoteUnavailable, Message: "Chat server is unreachable.", Status: http.StatusBadGateway},
	ErrRemoteRejected:    {Code: ErrRemoteRejected, Message: "Chat server rejected the request.", Status: http.StatusBadGateway},
	ErrRemoteDecode:      {Code: ErrRemoteDecode, Message: "Chat server sent an unexpected response.", Status: http.StatusBadGateway},

	// 5xxx: Internal Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
