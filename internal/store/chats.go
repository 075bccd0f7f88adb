package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/rexmccreary15-dotcom/trexai/internal/model"
)

var chatColumns = []string{
	"id", "user_id", "title", "summary", "ai_model", "message_count",
	"is_incognito", "deleted", "created_at", "updated_at",
}

func scanChat(row sq.RowScanner) (model.Chat, error) {
	var c model.Chat
	err := row.Scan(
		&c.ID, &c.UserID, &c.Title, &c.Summary, &c.Model, &c.MessageCount,
		&c.IsIncognito, &c.Deleted, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

// GetChat fetches a chat row by id.
func (s *Store) GetChat(ctx context.Context, chatID string) (model.Chat, error) {
	q := s.sql.Select(chatColumns...).From("chats").Where(sq.Eq{"id": chatID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return model.Chat{}, fmt.Errorf("build chat query: %w", err)
	}
	c, err := scanChat(s.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Chat{}, ErrNotFound
		}
		return model.Chat{}, fmt.Errorf("get chat: %w", err)
	}
	return c, nil
}

// SaveChat upserts the chat row and replaces its message list wholesale.
// The delete and reinsert run in one transaction so concurrent saves to
// the same chat cannot leave a partial list. is_incognito is only written
// on insert; later saves never change it.
func (s *Store) SaveChat(ctx context.Context, chat model.Chat, messages []model.Message, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save chat tx: %w", err)
	}
	defer tx.Rollback()

	upsert := s.sql.Insert("chats").
		Columns("id", "user_id", "title", "summary", "ai_model", "message_count", "is_incognito", "created_at", "updated_at").
		Values(chat.ID, chat.UserID, chat.Title, chat.Summary, chat.Model, len(messages), chat.IsIncognito, now, now).
		Suffix("ON CONFLICT(id) DO UPDATE SET title=excluded.title, summary=excluded.summary, ai_model=excluded.ai_model, message_count=excluded.message_count, updated_at=excluded.updated_at")
	sqlStr, args, err := upsert.ToSql()
	if err != nil {
		return fmt.Errorf("build chat upsert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}

	del := s.sql.Delete("messages").Where(sq.Eq{"chat_id": chat.ID})
	sqlStr, args, err = del.ToSql()
	if err != nil {
		return fmt.Errorf("build message delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("delete chat messages: %w", err)
	}

	if len(messages) > 0 {
		ins := s.sql.Insert("messages").Columns("chat_id", "role", "content", "sequence_number")
		for i, m := range messages {
			ins = ins.Values(chat.ID, string(m.Role), m.Content, i)
		}
		sqlStr, args, err = ins.ToSql()
		if err != nil {
			return fmt.Errorf("build message insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("insert chat messages: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save chat tx: %w", err)
	}
	return nil
}

// ListChats returns a user's visible chat list: no soft-deleted rows, no
// incognito rows, newest first.
func (s *Store) ListChats(ctx context.Context, userID string, limit int) ([]model.Chat, error) {
	q := s.sql.Select(chatColumns...).From("chats").
		Where(sq.Eq{"user_id": userID, "deleted": false, "is_incognito": false}).
		OrderBy("updated_at DESC").
		Limit(uint64(limit))
	return s.queryChats(ctx, q)
}

// ListChatsByUser returns all of a user's chats, incognito included. Used
// by the admin console.
func (s *Store) ListChatsByUser(ctx context.Context, userID string, limit int) ([]model.Chat, error) {
	q := s.sql.Select(chatColumns...).From("chats").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("updated_at DESC").
		Limit(uint64(limit))
	return s.queryChats(ctx, q)
}

func (s *Store) queryChats(ctx context.Context, q sq.SelectBuilder) ([]model.Chat, error) {
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build chats query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []model.Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return chats, nil
}

// GetChatMessages returns a chat's messages in order.
func (s *Store) GetChatMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	q := s.sql.Select("chat_id", "role", "content", "sequence_number").
		From("messages").
		Where(sq.Eq{"chat_id": chatID}).
		OrderBy("sequence_number ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build messages query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
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
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// LastUserMessage returns the content of the chat's most recent user
// message, or "" when there is none.
func (s *Store) LastUserMessage(ctx context.Context, chatID string) (string, error) {
	q := s.sql.Select("content").From("messages").
		Where(sq.Eq{"chat_id": chatID, "role": string(model.RoleUser)}).
		OrderBy("sequence_number DESC").
		Limit(1)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return "", fmt.Errorf("build last message query: %w", err)
	}
	var content string
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get last message: %w", err)
	}
	return content, nil
}

// SoftDeleteChat marks an owner's chat deleted. The rows stay in place for
// administrative visibility.
func (s *Store) SoftDeleteChat(ctx context.Context, chatID, userID string, now time.Time) error {
	q := s.sql.Update("chats").
		Set("deleted", true).
		Set("updated_at", now).
		Where(sq.Eq{"id": chatID, "user_id": userID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build chat soft delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("soft delete chat: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteChat removes a chat and its messages outright. Admin only.
func (s *Store) DeleteChat(ctx context.Context, chatID string) error {
	del := s.sql.Delete("messages").Where(sq.Eq{"chat_id": chatID})
	sqlStr, args, err := del.ToSql()
	if err != nil {
		return fmt.Errorf("build messages delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}

	del = s.sql.Delete("chats").Where(sq.Eq{"id": chatID})
	sqlStr, args, err = del.ToSql()
	if err != nil {
		return fmt.Errorf("build chat delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
