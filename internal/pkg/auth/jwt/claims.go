package jwt

import (
	"errors"
	"time"
)

// Payload is the set of claims the chat server embeds in its access tokens.
// The user fields are flattened next to the registered claims, so a decoded
// token describes the signed-in user and the workspace they belong to.
type Payload struct {
	// ID is the server-assigned user id.
	ID int64 `json:"id"`

	// WsID is the id of the workspace the user signed into.
	WsID int64 `json:"wsId"`

	// WsName is the display name of that workspace.
	WsName string `json:"wsName"`

	Fullname  string    `json:"fullname"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`

	// Registered claims. Audience is omitted on purpose: servers emit it as either
	// a string or an array and the client never inspects it.
	ExpiresAt int64  `json:"exp,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	Issuer    string `json:"iss,omitempty"`
}

// Valid implements jwt.Claims. Only expiry is checked; the chat server remains
// the authority on whether a token is still accepted.
func (p Payload) Valid() error {
	if p.ExpiresAt != 0 && time.Now().Unix() > p.ExpiresAt {
		return errors.New("token is expired")
	}
	return nil
}
