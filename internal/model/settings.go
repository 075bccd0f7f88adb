package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Well-known creator_settings keys. Other keys (feature toggles, branding)
// are stored and returned as opaque documents.
const (
	SettingModeration = "moderation"
	SettingRateLimit  = "rate_limit"
)

// CreatorSetting is a single admin policy document, upserted wholesale.
type CreatorSetting struct {
	Key       string          `json:"setting_key"`
	Value     json.RawMessage `json:"setting_value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ModerationSettings is the "moderation" policy document.
type ModerationSettings struct {
	Enabled      bool   `json:"enabled"`
	BlockedWords string `json:"blockedWords"`
}

// Words returns the blocked substrings, lowercased, one per line.
func (m ModerationSettings) Words() []string {
	var words []string
	for _, line := range strings.Split(m.BlockedWords, "\n") {
		w := strings.ToLower(strings.TrimSpace(line))
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// RateLimitSettings is the "rate_limit" policy document.
type RateLimitSettings struct {
	Enabled           bool `json:"enabled"`
	MessagesPerMinute int  `json:"messagesPerMinute"`
	DailyCap          int  `json:"dailyCap"`
}

// PerMinute returns the per-minute cap, falling back to the default.
func (r RateLimitSettings) PerMinute() int {
	if r.MessagesPerMinute > 0 {
		return r.MessagesPerMinute
	}
	return 10
}

// Daily returns the daily cap, falling back to the default.
func (r RateLimitSettings) Daily() int {
	if r.DailyCap > 0 {
		return r.DailyCap
	}
	return 100
}
