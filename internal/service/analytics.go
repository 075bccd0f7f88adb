package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rexmccreary15-dotcom/trexai/internal/events"
	"github.com/rexmccreary15-dotcom/trexai/internal/model"
	"github.com/rexmccreary15-dotcom/trexai/internal/store"
	"github.com/rexmccreary15-dotcom/trexai/pkg/logger"
	"github.com/rexmccreary15-dotcom/trexai/pkg/metrics"
)

// AnalyticsService records usage events and assembles the admin
// dashboard. Dashboard hour buckets use the configured reporting
// timezone so "peak hour" follows the admin's wall clock across DST.
type AnalyticsService struct {
	store        *store.Store
	pub          *events.Publisher
	loc          *time.Location
	onlineWindow time.Duration
	log          *logger.Logger
}

func NewAnalyticsService(st *store.Store, pub *events.Publisher, loc *time.Location, onlineWindow time.Duration, log *logger.Logger) *AnalyticsService {
	if loc == nil {
		loc = time.UTC
	}
	if onlineWindow <= 0 {
		onlineWindow = 15 * time.Minute
	}
	return &AnalyticsService{store: st, pub: pub, loc: loc, onlineWindow: onlineWindow, log: log}
}

// Track records one event. Best effort on both sinks.
func (s *AnalyticsService) Track(ctx context.Context, userID, aiModel string, metadata map[string]any) {
	ev := model.AnalyticsEvent{
		UserID:    userID,
		EventType: model.EventMessageSent,
		Model:     aiModel,
		Metadata:  metadata,
	}
	if err := s.store.InsertEvent(ctx, ev); err != nil {
		s.log.Error("track analytics event", zap.String("user_id", userID), zap.Error(err))
		metrics.AnalyticsEventsTotal.WithLabelValues(ev.EventType, "error").Inc()
	} else {
		metrics.AnalyticsEventsTotal.WithLabelValues(ev.EventType, "stored").Inc()
	}
	s.pub.Publish(ev)
}

// Dashboard assembles the admin analytics rollup.
func (s *AnalyticsService) Dashboard(ctx context.Context, now time.Time) (*model.DashboardStats, error) {
	total, err := s.store.CountEvents(ctx, model.EventMessageSent)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	active, err := s.store.CountUsersActiveSince(ctx, now.Add(-s.onlineWindow))
	if err != nil {
		return nil, fmt.Errorf("count active users: %w", err)
	}

	totalUsers, err := s.store.CountVisibleUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	local := now.In(s.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	today, err := s.store.CountEventsSince(ctx, model.EventMessageSent, midnight.UTC())
	if err != nil {
		return nil, fmt.Errorf("count messages today: %w", err)
	}

	timestamps, err := s.store.EventTimestamps(ctx, model.EventMessageSent)
	if err != nil {
		return nil, fmt.Errorf("load event timestamps: %w", err)
	}

	models, err := s.store.ModelCounts(ctx, model.EventMessageSent, 5)
	if err != nil {
		return nil, fmt.Errorf("count models: %w", err)
	}
	if models == nil {
		models = []model.ModelCount{}
	}

	return &model.DashboardStats{
		TotalMessages: total,
		ActiveUsers:   active,
		TotalUsers:    totalUsers,
		MessagesToday: today,
		PeakUsageTime: peakUsageTime(timestamps, s.loc, now),
		PopularModels: models,
	}, nil
}

// peakUsageTime buckets events by local hour and formats the busiest
// one. Ties keep the earlier hour.
func peakUsageTime(timestamps []time.Time, loc *time.Location, now time.Time) string {
	if len(timestamps) == 0 {
		return "N/A"
	}
	var counts [24]int
	for _, ts := range timestamps {
		counts[ts.In(loc).Hour()]++
	}
	peak, max := 0, 0
	for hour, n := range counts {
		if n > max {
			peak, max = hour, n
		}
	}
	if max == 0 {
		return "N/A"
	}

	label := "AM"
	display := peak
	switch {
	case peak == 0:
		display = 12
	case peak == 12:
		label = "PM"
	case peak > 12:
		display = peak - 12
		label = "PM"
	}
	return fmt.Sprintf("%d:00 %s (%s)", display, label, now.In(loc).Format("MST"))
}
