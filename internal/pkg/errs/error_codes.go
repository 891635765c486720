/*
Package errs provides the custom error type and application-level error code constants.

Codes identify failures both inside the sync engine and on the local UI bridge, so
the UI can branch on a stable number instead of parsing messages.
*/
package errs

// 1xxx: Bridge Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Session State Errors
const (
	// ErrChannelExists indicates that a channel with the same id is already in the session.
	ErrChannelExists = 2102

	// ErrChannelNotFound indicates that the requested channel id is not in the session's channel list.
	ErrChannelNotFound = 2103

	// ErrUserNotFound indicates that the requested user id is not in the workspace directory.
	ErrUserNotFound = 2104

	// ErrMessageContentEmpty indicates that a message had neither text nor files.
	ErrMessageContentEmpty = 2201
)

// 3xxx: Authentication Errors
const (
	// ErrNotAuthenticated indicates that an operation requiring a token ran without one.
	ErrNotAuthenticated = 3001

	// ErrAuthExpired indicates that the chat server denied the token.
	ErrAuthExpired = 3002

	// ErrTokenMalformed indicates that a token could not be decoded into claims.
	ErrTokenMalformed = 3003

	// ErrAuthInProgress indicates that a signup or signin is already running.
	ErrAuthInProgress = 3004

	// ErrInvalidCredentials indicates that signup or signin was refused by the chat server.
	ErrInvalidCredentials = 3005
)

// 4xxx: Remote Service Errors
const (
	// ErrRemoteUnavailable indicates that the request never got a response (dial, timeout, reset).
	ErrRemoteUnavailable = 4001

	// ErrRemoteRejected indicates a non-success response other than an authorization denial.
	ErrRemoteRejected = 4002

	// ErrRemoteDecode indicates that a response body could not be decoded.
	ErrRemoteDecode = 4003
)

// 5xxx: Internal Errors
const (
	// ErrUnknown represents an unclassified internal error.
	ErrUnknown = 5000
)
