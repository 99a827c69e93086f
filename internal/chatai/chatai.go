// Package chatai provides the core types shared by the chat client:
// messages, conversation references, identities and the error taxonomy.
// The streaming pipeline (stream), the transcript state machine (transcript)
// and the exchange orchestrator (session) are built on top of these types.
package chatai

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single entry of a conversation transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ID is an identifier issued by the chat server.
// The server emits integer user ids and string conversation ids, so ID
// decodes from either a JSON string or a JSON number.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(data), err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the identifier as a string.
func (id ID) String() string {
	return string(id)
}

// Short returns the first 8 characters of the identifier.
func (id ID) Short() string {
	if len(id) >= 8 {
		return string(id[:8])
	}
	return string(id)
}

// ConversationRef is a read-only summary of a conversation, as listed by the
// conversation directory.
type ConversationRef struct {
	ID    ID     `json:"id"`
	Title string `json:"title"`
}

// Identity is the authenticated user.
type Identity struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
}

// Credential is the bearer credential issued by the auth provider together
// with the identity it belongs to.
type Credential struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	User        Identity `json:"user"`
}

// AuthorizationHeader returns the value of the Authorization header.
func (c *Credential) AuthorizationHeader() string {
	return "Bearer " + c.AccessToken
}
