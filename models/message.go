package models

const (
	// RoleUser marks a message authored by the local identity.
	RoleUser = "user"
	// RoleModel marks an inbound or generated message.
	RoleModel = "model"
)

// Attachment carries non-text message content as a data URI.
type Attachment struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// ChatMessage is one materialized entry in a contact or group history.
// The ID is copied from the originating envelope when one exists.
type ChatMessage struct {
	ID         string      `json:"id"`
	Role       string      `json:"role"`
	Content    string      `json:"content"`
	Timestamp  int64       `json:"timestamp"`
	Attachment *Attachment `json:"attachment,omitempty"`
}
