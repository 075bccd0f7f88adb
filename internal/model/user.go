// Package model defines data structures for the chat platform.
package model

import (
	"time"
)

// User is a durable user row, keyed by either an anonymous session ID or a
// verified auth identity. Created on first message or heartbeat.
type User struct {
	ID                string            `json:"id"`
	SessionID         *string           `json:"session_id,omitempty"`
	AuthUserID        *string           `json:"auth_user_id,omitempty"`
	Email             *string           `json:"email,omitempty"`
	DisplayName       *string           `json:"display_name,omitempty"`
	IsBanned          bool              `json:"is_banned"`
	BanReason         *string           `json:"ban_reason,omitempty"`
	MessageCount      int               `json:"message_count"`
	APIKeys           map[string]string `json:"api_keys,omitempty"`
	DefaultModel      string            `json:"default_ai"`
	Commands          []Command         `json:"commands,omitempty"`
	CreatorUnlocked   bool              `json:"creator_controls_unlocked"`
	IncognitoUnlocked bool              `json:"incognito_unlocked"`
	LastActive        time.Time         `json:"last_active"`
	LastHeartbeat     *time.Time        `json:"last_heartbeat,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// Command is a user-saved prompt shortcut.
type Command struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

// Identity carries the caller identifiers a request may present. AuthUserID
// is only populated from a server-verified token, never from the body.
type Identity struct {
	SessionID  string
	AuthUserID string
	Email      string
}

// Present reports whether any identifier was supplied.
func (id Identity) Present() bool {
	return id.SessionID != "" || id.AuthUserID != ""
}

// UpdateUserRequest is the admin request to edit a user.
type UpdateUserRequest struct {
	IsBanned    *bool   `json:"is_banned,omitempty"`
	BanReason   *string `json:"ban_reason,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
}

// UsersPage is a paginated user listing for the admin console.
type UsersPage struct {
	Users      []User `json:"users"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalPages int    `json:"totalPages"`
}

// Profile is the account settings view of a user.
type Profile struct {
	DisplayName  *string           `json:"display_name"`
	APIKeys      map[string]string `json:"api_keys"`
	DefaultModel string            `json:"default_ai"`
}

// UpdateProfileRequest updates account settings fields; nil fields are left
// untouched.
type UpdateProfileRequest struct {
	DisplayName  *string            `json:"display_name,omitempty"`
	APIKeys      *map[string]string `json:"api_keys,omitempty"`
	DefaultModel *string            `json:"default_ai,omitempty"`
}

// BanStatus is the response to a ban check.
type BanStatus struct {
	Banned bool   `json:"banned"`
	Reason string `json:"reason,omitempty"`
}
