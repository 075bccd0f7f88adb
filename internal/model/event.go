package model

import (
	"time"
)

// Analytics event types.
const (
	EventMessageSent = "message_sent"
)

// AnalyticsEvent is an append-only usage record, read back only in
// aggregate.
type AnalyticsEvent struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	EventType string         `json:"event_type"`
	Model     string         `json:"ai_model,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ModelCount is one row of the popular-model ranking.
type ModelCount struct {
	Model string `json:"model"`
	Count int    `json:"count"`
}

// DashboardStats are the admin dashboard rollups.
type DashboardStats struct {
	TotalMessages int          `json:"totalMessages"`
	ActiveUsers   int          `json:"activeUsers"`
	TotalUsers    int          `json:"totalUsers"`
	MessagesToday int          `json:"messagesToday"`
	PeakUsageTime string       `json:"peakUsageTime"`
	PopularModels []ModelCount `json:"popularModels"`
}
