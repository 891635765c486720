/*
Package analytics emits best-effort telemetry about the client's lifecycle and
user actions.

Events are encoded in the protobuf wire format of the analytics server's
AnalyticsEvent message and shipped out of band. Nothing in this package reports
failure to its caller.
*/
package analytics

import "google.golang.org/protobuf/encoding/protowire"

// ExitCode tells the analytics server how the process ended.
type ExitCode int32

const (
	ExitCodeUnspecified ExitCode = 0
	ExitCodeSuccess     ExitCode = 1
	ExitCodeFailure     ExitCode = 2
)

func (c ExitCode) String() string {
	switch c {
	case ExitCodeSuccess:
		return "success"
	case ExitCodeFailure:
		return "failure"
	default:
		return "unspecified"
	}
}

// Event is the kind-specific part of an AnalyticsEvent. Each kind occupies its
// own field of the event_type oneof.
type Event interface {
	// Kind is a short name used in logs.
	Kind() string

	field() protowire.Number
	appendFields(b []byte) []byte
}

type AppStart struct{}

func (AppStart) Kind() string                 { return "app_start" }
func (AppStart) field() protowire.Number      { return 10 }
func (AppStart) appendFields(b []byte) []byte { return b }

type AppExit struct {
	Code ExitCode
}

func (AppExit) Kind() string            { return "app_exit" }
func (AppExit) field() protowire.Number { return 11 }
func (e AppExit) appendFields(b []byte) []byte {
	return appendVarint(b, 1, uint64(e.Code))
}

type UserLogin struct {
	Email string
}

func (UserLogin) Kind() string            { return "user_login" }
func (UserLogin) field() protowire.Number { return 12 }
func (e UserLogin) appendFields(b []byte) []byte {
	return appendString(b, 1, e.Email)
}

type UserLogout struct {
	Email string
}

func (UserLogout) Kind() string            { return "user_logout" }
func (UserLogout) field() protowire.Number { return 13 }
func (e UserLogout) appendFields(b []byte) []byte {
	return appendString(b, 1, e.Email)
}

type UserRegister struct {
	Email       string
	WorkspaceID string
}

func (UserRegister) Kind() string            { return "user_register" }
func (UserRegister) field() protowire.Number { return 14 }
func (e UserRegister) appendFields(b []byte) []byte {
	b = appendString(b, 1, e.Email)
	return appendString(b, 2, e.WorkspaceID)
}

type ChatCreated struct {
	WorkspaceID string
}

func (ChatCreated) Kind() string            { return "chat_created" }
func (ChatCreated) field() protowire.Number { return 15 }
func (e ChatCreated) appendFields(b []byte) []byte {
	return appendString(b, 1, e.WorkspaceID)
}

type MessageSent struct {
	ChatID     string
	Type       string
	Size       int32
	TotalFiles int32
}

func (MessageSent) Kind() string            { return "message_sent" }
func (MessageSent) field() protowire.Number { return 16 }
func (e MessageSent) appendFields(b []byte) []byte {
	b = appendString(b, 1, e.ChatID)
	b = appendString(b, 2, e.Type)
	b = appendVarint(b, 3, uint64(e.Size))
	return appendVarint(b, 4, uint64(e.TotalFiles))
}

type ChatJoined struct {
	ChatID string
}

func (ChatJoined) Kind() string            { return "chat_joined" }
func (ChatJoined) field() protowire.Number { return 17 }
func (e ChatJoined) appendFields(b []byte) []byte {
	return appendString(b, 1, e.ChatID)
}

type ChatLeft struct {
	ChatID string
}

func (ChatLeft) Kind() string            { return "chat_left" }
func (ChatLeft) field() protowire.Number { return 18 }
func (e ChatLeft) appendFields(b []byte) []byte {
	return appendString(b, 1, e.ChatID)
}

type Navigation struct {
	From string
	To   string
}

func (Navigation) Kind() string            { return "navigation" }
func (Navigation) field() protowire.Number { return 19 }
func (e Navigation) appendFields(b []byte) []byte {
	b = appendString(b, 1, e.From)
	return appendString(b, 2, e.To)
}
