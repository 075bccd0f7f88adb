package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/rexmccreary15-dotcom/trexai/internal/model"
)

// InsertEvent appends an analytics event.
func (s *Store) InsertEvent(ctx context.Context, ev model.AnalyticsEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.Must(uuid.NewV7()).String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	meta := "{}"
	if ev.Metadata != nil {
		b, err := json.Marshal(ev.Metadata)
		if err != nil {
			return fmt.Errorf("marshal event metadata: %w", err)
		}
		meta = string(b)
	}

	var aiModel any
	if ev.Model != "" {
		aiModel = ev.Model
	}

	q := s.sql.Insert("analytics_events").
		Columns("id", "user_id", "event_type", "ai_model", "metadata", "created_at").
		Values(ev.ID, ev.UserID, ev.EventType, aiModel, meta, ev.CreatedAt)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build event insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// CountUserEventsSince counts a user's events of one type at or after the
// cutoff. Backs the per-minute and daily rate-limit checks.
func (s *Store) CountUserEventsSince(ctx context.Context, userID, eventType string, since time.Time) (int, error) {
	q := s.sql.Select("COUNT(*)").From("analytics_events").
		Where(sq.Eq{"user_id": userID, "event_type": eventType}).
		Where(sq.GtOrEq{"created_at": since})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build user events count query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count user events: %w", err)
	}
	return n, nil
}

// CountEvents counts all events of one type.
func (s *Store) CountEvents(ctx context.Context, eventType string) (int, error) {
	q := s.sql.Select("COUNT(*)").From("analytics_events").
		Where(sq.Eq{"event_type": eventType})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build events count query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// CountEventsSince counts all events of one type at or after the cutoff.
func (s *Store) CountEventsSince(ctx context.Context, eventType string, since time.Time) (int, error) {
	q := s.sql.Select("COUNT(*)").From("analytics_events").
		Where(sq.Eq{"event_type": eventType}).
		Where(sq.GtOrEq{"created_at": since})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build events since query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events since: %w", err)
	}
	return n, nil
}

// EventTimestamps returns the creation times of all events of one type, in
// insertion order. Feeds the hour-of-day histogram.
func (s *Store) EventTimestamps(ctx context.Context, eventType string) ([]time.Time, error) {
	q := s.sql.Select("created_at").From("analytics_events").
		Where(sq.Eq{"event_type": eventType}).
		OrderBy("created_at ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build event timestamps query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list event timestamps: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan event timestamp: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event timestamps: %w", err)
	}
	return out, nil
}

// ModelCounts returns the per-model event counts of one type, descending.
func (s *Store) ModelCounts(ctx context.Context, eventType string, limit int) ([]model.ModelCount, error) {
	q := s.sql.Select("ai_model", "COUNT(*) AS n").From("analytics_events").
		Where(sq.Eq{"event_type": eventType}).
		Where(sq.NotEq{"ai_model": nil}).
		GroupBy("ai_model").
		OrderBy("n DESC").
		Limit(uint64(limit))
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build model counts query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list model counts: %w", err)
	}
	defer rows.Close()

	var out []model.ModelCount
	for rows.Next() {
		var mc model.ModelCount
		if err := rows.Scan(&mc.Model, &mc.Count); err != nil {
			return nil, fmt.Errorf("scan model count: %w", err)
		}
		out = append(out, mc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate model counts: %w", err)
	}
	return out, nil
}

// ListEvents returns up to limit raw events for the export endpoint.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]model.AnalyticsEvent, error) {
	q := s.sql.Select("id", "user_id", "event_type", "ai_model", "metadata", "created_at").
		From("analytics_events").
		OrderBy("created_at ASC").
		Limit(uint64(limit))
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build events list query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []model.AnalyticsEvent
	for rows.Next() {
		var ev model.AnalyticsEvent
		var aiModel sql.NullString
		var meta string
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.EventType, &aiModel, &meta, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if aiModel.Valid {
			ev.Model = aiModel.String
		}
		if meta != "" {
			_ = json.Unmarshal([]byte(meta), &ev.Metadata)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}
