package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/rexmccreary15-dotcom/trexai/internal/model"
)

// GetSetting fetches one policy document by key.
func (s *Store) GetSetting(ctx context.Context, key string) (model.CreatorSetting, error) {
	q := s.sql.Select("setting_key", "setting_value", "updated_at").
		From("creator_settings").
		Where(sq.Eq{"setting_key": key})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return model.CreatorSetting{}, fmt.Errorf("build setting query: %w", err)
	}

	var cs model.CreatorSetting
	var value string
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&cs.Key, &value, &cs.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.CreatorSetting{}, ErrNotFound
		}
		return model.CreatorSetting{}, fmt.Errorf("get setting: %w", err)
	}
	cs.Value = json.RawMessage(value)
	return cs, nil
}

// UpsertSetting replaces one policy document wholesale.
func (s *Store) UpsertSetting(ctx context.Context, key string, value json.RawMessage, now time.Time) error {
	q := s.sql.Insert("creator_settings").
		Columns("setting_key", "setting_value", "updated_at").
		Values(key, string(value), now).
		Suffix("ON CONFLICT(setting_key) DO UPDATE SET setting_value=excluded.setting_value, updated_at=excluded.updated_at")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build setting upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

// ListSettings returns all policy documents, for the export endpoint.
func (s *Store) ListSettings(ctx context.Context) ([]model.CreatorSetting, error) {
	q := s.sql.Select("setting_key", "setting_value", "updated_at").
		From("creator_settings").
		OrderBy("setting_key ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build settings list query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var out []model.CreatorSetting
	for rows.Next() {
		var cs model.CreatorSetting
		var value string
		if err := rows.Scan(&cs.Key, &value, &cs.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		cs.Value = json.RawMessage(value)
		out = append(out, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return out, nil
}

// ModerationSettings loads the "moderation" policy document, returning the
// zero value when unset.
func (s *Store) ModerationSettings(ctx context.Context) (model.ModerationSettings, error) {
	var ms model.ModerationSettings
	cs, err := s.GetSetting(ctx, model.SettingModeration)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ms, nil
		}
		return ms, err
	}
	if err := json.Unmarshal(cs.Value, &ms); err != nil {
		return model.ModerationSettings{}, fmt.Errorf("decode moderation settings: %w", err)
	}
	return ms, nil
}

// RateLimitSettings loads the "rate_limit" policy document, returning the
// zero value when unset.
func (s *Store) RateLimitSettings(ctx context.Context) (model.RateLimitSettings, error) {
	var rs model.RateLimitSettings
	cs, err := s.GetSetting(ctx, model.SettingRateLimit)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return rs, nil
		}
		return rs, err
	}
	if err := json.Unmarshal(cs.Value, &rs); err != nil {
		return model.RateLimitSettings{}, fmt.Errorf("decode rate limit settings: %w", err)
	}
	return rs, nil
}

// ListAllChats returns every chat row, for the export endpoint.
func (s *Store) ListAllChats(ctx context.Context) ([]model.Chat, error) {
	q := s.sql.Select(chatColumns...).From("chats").OrderBy("created_at DESC")
	return s.queryChats(ctx, q)
}

// ListAllMessages returns every message row ordered by chat and sequence,
// for the export endpoint.
func (s *Store) ListAllMessages(ctx context.Context) ([]model.Message, error) {
	q := s.sql.Select("chat_id", "role", "content", "sequence_number").
		From("messages").
		OrderBy("chat_id ASC", "sequence_number ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build all messages query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list all messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		var role string
		if err := rows.Scan(&m.ChatID, &role, &m.Content, &m.Seq); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = model.Role(role)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate all messages: %w", err)
	}
	return msgs, nil
}

// ListAllUsers returns every user row, for the export endpoint.
func (s *Store) ListAllUsers(ctx context.Context) ([]model.User, error) {
	q := s.sql.Select(userColumns...).From("users").OrderBy("created_at ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build all users query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list all users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate all users: %w", err)
	}
	return users, nil
}
