/*
Package model contains the chat entities exchanged with the chat server and held by the session.

JSON tags follow the chat server's camelCase wire names so the same structs decode
REST responses, push payloads and cached records.
*/
package model

import "time"

// User is a member of a workspace. It is immutable within a session and replaced
// wholesale when the directory is fetched again.
type User struct {
	ID        int64     `json:"id"`
	WsID      int64     `json:"wsId"`
	WsName    string    `json:"wsName"`
	Fullname  string    `json:"fullname"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Workspace is the tenant the signed-in user belongs to.
type Workspace struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChannelType classifies a conversation.
type ChannelType string

const (
	ChannelSingle         ChannelType = "single"
	ChannelGroup          ChannelType = "group"
	ChannelPrivateChannel ChannelType = "privateChannel"
	ChannelPublicChannel  ChannelType = "publicChannel"
)

// Valid reports whether t is one of the known channel types.
func (t ChannelType) Valid() bool {
	switch t {
	case ChannelSingle, ChannelGroup, ChannelPrivateChannel, ChannelPublicChannel:
		return true
	}
	return false
}

// Channel is a conversation inside a workspace.
type Channel struct {
	ID        int64       `json:"id"`
	WsID      int64       `json:"wsId"`
	Name      *string     `json:"name"`
	Type      ChannelType `json:"type"`
	Members   []int64     `json:"members"`
	CreatedAt time.Time   `json:"createdAt"`

	// Recipient is the other party of a one-to-one channel. It is computed from
	// the user directory on read and never treated as authoritative.
	Recipient *User `json:"recipient"`
}

// Message is a single chat message.
type Message struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chatId"`
	SenderID  int64     `json:"senderId"`
	Content   string    `json:"content"`
	Files     []string  `json:"files"`
	CreatedAt time.Time `json:"createdAt"`

	// FormattedCreatedAt is the human-readable relative timestamp derived when the
	// message enters the session.
	FormattedCreatedAt string `json:"formattedCreatedAt"`

	ModifiedContent *string `json:"modifiedContent,omitempty"`
}
