package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/rexmccreary15-dotcom/trexai/internal/model"
)

const (
	WindowMinute = "minute"
	WindowDay    = "day"
)

// EventCounter counts a user's analytics events in a trailing window.
type EventCounter interface {
	CountUserEventsSince(ctx context.Context, userID, eventType string, since time.Time) (int, error)
}

// RateLimitResult reports whether a message is allowed and, when it is
// not, which window tripped.
type RateLimitResult struct {
	Allowed bool
	Window  string
	Limit   int
}

// RateLimiter enforces the creator-configured per-minute and daily
// message caps by counting persisted message events. The daily window
// resets at local midnight in loc.
type RateLimiter struct {
	counter EventCounter
	loc     *time.Location
}

func NewRateLimiter(counter EventCounter, loc *time.Location) *RateLimiter {
	if loc == nil {
		loc = time.UTC
	}
	return &RateLimiter{counter: counter, loc: loc}
}

// Check runs after the current message has been recorded, so the counts
// include it. A user is over the limit once the window count exceeds the
// configured cap.
func (r *RateLimiter) Check(ctx context.Context, settings model.RateLimitSettings, userID string, now time.Time) (RateLimitResult, error) {
	allowed := RateLimitResult{Allowed: true}
	if !settings.Enabled || userID == "" {
		return allowed, nil
	}

	perMinute := settings.PerMinute()
	n, err := r.counter.CountUserEventsSince(ctx, userID, model.EventMessageSent, now.Add(-time.Minute))
	if err != nil {
		return allowed, fmt.Errorf("count minute window: %w", err)
	}
	if n > perMinute {
		return RateLimitResult{Window: WindowMinute, Limit: perMinute}, nil
	}

	daily := settings.Daily()
	local := now.In(r.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc)
	n, err = r.counter.CountUserEventsSince(ctx, userID, model.EventMessageSent, midnight.UTC())
	if err != nil {
		return allowed, fmt.Errorf("count daily window: %w", err)
	}
	if n > daily {
		return RateLimitResult{Window: WindowDay, Limit: daily}, nil
	}
	return allowed, nil
}
