package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/rexmccreary15-dotcom/trexai/internal/model"
)

var userColumns = []string{
	"id", "session_id", "auth_user_id", "email", "display_name",
	"is_banned", "ban_reason", "message_count", "api_keys", "default_ai",
	"commands", "creator_unlocked", "incognito_unlocked",
	"last_active", "last_heartbeat", "created_at",
}

func scanUser(row sq.RowScanner) (model.User, error) {
	var u model.User
	var sessionID, authUserID, email, displayName, banReason sql.NullString
	var apiKeysJSON, commandsJSON string
	var lastHeartbeat sql.NullTime

	err := row.Scan(
		&u.ID, &sessionID, &authUserID, &email, &displayName,
		&u.IsBanned, &banReason, &u.MessageCount, &apiKeysJSON, &u.DefaultModel,
		&commandsJSON, &u.CreatorUnlocked, &u.IncognitoUnlocked,
		&u.LastActive, &lastHeartbeat, &u.CreatedAt,
	)
	if err != nil {
		return model.User{}, err
	}

	if sessionID.Valid {
		u.SessionID = &sessionID.String
	}
	if authUserID.Valid {
		u.AuthUserID = &authUserID.String
	}
	if email.Valid {
		u.Email = &email.String
	}
	if displayName.Valid {
		u.DisplayName = &displayName.String
	}
	if banReason.Valid {
		u.BanReason = &banReason.String
	}
	if lastHeartbeat.Valid {
		t := lastHeartbeat.Time
		u.LastHeartbeat = &t
	}
	if apiKeysJSON != "" {
		_ = json.Unmarshal([]byte(apiKeysJSON), &u.APIKeys)
	}
	if commandsJSON != "" {
		_ = json.Unmarshal([]byte(commandsJSON), &u.Commands)
	}
	return u, nil
}

func (s *Store) queryUser(ctx context.Context, pred sq.Eq) (model.User, error) {
	q := s.sql.Select(userColumns...).From("users").Where(pred)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return model.User{}, fmt.Errorf("build user query: %w", err)
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUser fetches a user by internal id.
func (s *Store) GetUser(ctx context.Context, userID string) (model.User, error) {
	return s.queryUser(ctx, sq.Eq{"id": userID})
}

// GetUserByAuthID fetches a user by verified auth identity.
func (s *Store) GetUserByAuthID(ctx context.Context, authUserID string) (model.User, error) {
	return s.queryUser(ctx, sq.Eq{"auth_user_id": authUserID})
}

// GetUserBySessionID fetches a user by anonymous session id.
func (s *Store) GetUserBySessionID(ctx context.Context, sessionID string) (model.User, error) {
	return s.queryUser(ctx, sq.Eq{"session_id": sessionID})
}

// GetOrCreateUser resolves an identity to a durable user row, creating it
// if absent. Authenticated identity wins over the anonymous session; an
// existing anonymous row is linked to the auth identity when both are
// present. last_active is refreshed on every call.
func (s *Store) GetOrCreateUser(ctx context.Context, id model.Identity, now time.Time) (model.User, error) {
	if !id.Present() {
		return model.User{}, fmt.Errorf("no identity supplied")
	}

	if id.AuthUserID != "" {
		u, err := s.GetUserByAuthID(ctx, id.AuthUserID)
		if err == nil {
			return u, s.touchLastActive(ctx, u.ID, now)
		}
		if !errors.Is(err, ErrNotFound) {
			return model.User{}, err
		}
	}

	if id.SessionID != "" {
		u, err := s.GetUserBySessionID(ctx, id.SessionID)
		if err == nil {
			if id.AuthUserID != "" {
				if err := s.linkAuthIdentity(ctx, u.ID, id.AuthUserID, id.Email); err != nil {
					return model.User{}, err
				}
				u.AuthUserID = &id.AuthUserID
				if id.Email != "" {
					u.Email = &id.Email
				}
			}
			return u, s.touchLastActive(ctx, u.ID, now)
		}
		if !errors.Is(err, ErrNotFound) {
			return model.User{}, err
		}
	}

	u := model.User{
		ID:           uuid.Must(uuid.NewV7()).String(),
		DefaultModel: "myai",
		LastActive:   now,
		CreatedAt:    now,
	}
	var sessionID, authUserID, email any
	if id.SessionID != "" {
		u.SessionID = &id.SessionID
		sessionID = id.SessionID
	}
	if id.AuthUserID != "" {
		u.AuthUserID = &id.AuthUserID
		authUserID = id.AuthUserID
	}
	if id.Email != "" {
		u.Email = &id.Email
		email = id.Email
	}

	q := s.sql.Insert("users").
		Columns("id", "session_id", "auth_user_id", "email", "api_keys", "commands", "default_ai", "last_active", "created_at").
		Values(u.ID, sessionID, authUserID, email, "{}", "[]", u.DefaultModel, now, now)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return model.User{}, fmt.Errorf("build user insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *Store) touchLastActive(ctx context.Context, userID string, now time.Time) error {
	return s.updateUserFields(ctx, userID, map[string]any{"last_active": now})
}

func (s *Store) linkAuthIdentity(ctx context.Context, userID, authUserID, email string) error {
	fields := map[string]any{"auth_user_id": authUserID}
	if email != "" {
		fields["email"] = email
	}
	return s.updateUserFields(ctx, userID, fields)
}

func (s *Store) updateUserFields(ctx context.Context, userID string, fields map[string]any) error {
	q := s.sql.Update("users").SetMap(fields).Where(sq.Eq{"id": userID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build user update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// SetDisplayName stores a user-chosen display name.
func (s *Store) SetDisplayName(ctx context.Context, userID, name string) error {
	return s.updateUserFields(ctx, userID, map[string]any{"display_name": name})
}

// IncrementMessageCount bumps the per-user usage counter.
func (s *Store) IncrementMessageCount(ctx context.Context, userID string) error {
	q := s.sql.Update("users").
		Set("message_count", sq.Expr("message_count + 1")).
		Where(sq.Eq{"id": userID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build message count update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("increment message count: %w", err)
	}
	return nil
}

// SetMessageCount overwrites the stored counter, used when the admin
// listing reconciles it against the event log.
func (s *Store) SetMessageCount(ctx context.Context, userID string, count int) error {
	return s.updateUserFields(ctx, userID, map[string]any{"message_count": count})
}

// Heartbeat records liveness for presence tracking.
func (s *Store) Heartbeat(ctx context.Context, userID string, now time.Time) error {
	return s.updateUserFields(ctx, userID, map[string]any{"last_heartbeat": now})
}

// SetUnlock flips a per-user feature unlock flag. Feature is the column
// name, validated by the caller.
func (s *Store) SetUnlock(ctx context.Context, userID, column string) error {
	return s.updateUserFields(ctx, userID, map[string]any{column: true})
}

// UpdateProfile applies account settings changes; nil fields are skipped.
func (s *Store) UpdateProfile(ctx context.Context, userID string, req model.UpdateProfileRequest) error {
	fields := map[string]any{}
	if req.DisplayName != nil {
		fields["display_name"] = *req.DisplayName
	}
	if req.APIKeys != nil {
		b, err := json.Marshal(*req.APIKeys)
		if err != nil {
			return fmt.Errorf("marshal api keys: %w", err)
		}
		fields["api_keys"] = string(b)
	}
	if req.DefaultModel != nil {
		fields["default_ai"] = *req.DefaultModel
	}
	if len(fields) == 0 {
		return nil
	}
	return s.updateUserFields(ctx, userID, fields)
}

// SetCommands replaces a user's saved prompt shortcuts.
func (s *Store) SetCommands(ctx context.Context, userID string, commands []model.Command) error {
	if commands == nil {
		commands = []model.Command{}
	}
	b, err := json.Marshal(commands)
	if err != nil {
		return fmt.Errorf("marshal commands: %w", err)
	}
	return s.updateUserFields(ctx, userID, map[string]any{"commands": string(b)})
}

// ListUsers returns a page of users ordered by recency, with the total.
func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]model.User, int, error) {
	q := s.sql.Select(userColumns...).From("users").
		OrderBy("last_active DESC").
		Limit(uint64(limit)).Offset(uint64(offset))
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build users list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}

	countSQL, countArgs, err := s.sql.Select("COUNT(*)").From("users").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build users count query: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

// UpdateUser applies admin edits and returns the updated row.
func (s *Store) UpdateUser(ctx context.Context, userID string, req model.UpdateUserRequest) (model.User, error) {
	fields := map[string]any{}
	if req.IsBanned != nil {
		fields["is_banned"] = *req.IsBanned
	}
	if req.BanReason != nil {
		fields["ban_reason"] = *req.BanReason
	}
	if req.DisplayName != nil {
		fields["display_name"] = *req.DisplayName
	}
	if len(fields) > 0 {
		if err := s.updateUserFields(ctx, userID, fields); err != nil {
			return model.User{}, err
		}
	}
	return s.GetUser(ctx, userID)
}

// DeleteUser removes a user; chats, messages, and events cascade.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	q := s.sql.Delete("users").Where(sq.Eq{"id": userID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build user delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUsersActiveSince counts non-banned users with a heartbeat inside the
// presence window. Anonymous rows without a name are excluded.
func (s *Store) CountUsersActiveSince(ctx context.Context, since time.Time) (int, error) {
	q := s.sql.Select("COUNT(*)").From("users").
		Where(sq.Eq{"is_banned": false}).
		Where(sq.GtOrEq{"last_active": since}).
		Where(sq.Or{
			sq.NotEq{"auth_user_id": nil},
			sq.NotEq{"display_name": nil},
		})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build active users query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active users: %w", err)
	}
	return n, nil
}

// CountVisibleUsers counts non-banned users that are signed in or named.
func (s *Store) CountVisibleUsers(ctx context.Context) (int, error) {
	q := s.sql.Select("COUNT(*)").From("users").
		Where(sq.Eq{"is_banned": false}).
		Where(sq.Or{
			sq.NotEq{"auth_user_id": nil},
			sq.NotEq{"display_name": nil},
		})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build visible users query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count visible users: %w", err)
	}
	return n, nil
}
