package model

import (
	"time"
)

// Chat is a persisted conversation. is_incognito is fixed at creation and
// never changed by later saves.
type Chat struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	Model        string    `json:"ai_model"`
	MessageCount int       `json:"message_count"`
	IsIncognito  bool      `json:"is_incognito"`
	Deleted      bool      `json:"deleted,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChatSummary is the chat list entry returned to the sidebar.
type ChatSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Summary      string `json:"summary"`
	LastMessage  string `json:"lastMessage"`
	Timestamp    int64  `json:"timestamp"`
	Model        string `json:"aiModel"`
	MessageCount int    `json:"messageCount"`
}

// ListChatsResponse is the response for listing a user's chats.
type ListChatsResponse struct {
	Chats []ChatSummary `json:"chats"`
}
