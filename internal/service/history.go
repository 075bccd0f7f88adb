package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rexmccreary15-dotcom/trexai/internal/model"
	"github.com/rexmccreary15-dotcom/trexai/internal/store"
)

const historyPageSize = 50

// History lists the caller's saved chats, newest first. Incognito and
// deleted chats stay hidden.
func (s *ChatService) History(ctx context.Context, authUserID string) ([]model.ChatSummary, error) {
	u, err := s.store.GetUserByAuthID(ctx, authUserID)
	if errors.Is(err, store.ErrNotFound) {
		return []model.ChatSummary{}, nil
	}
	if err != nil {
		return nil, err
	}

	chats, err := s.store.ListChats(ctx, u.ID, historyPageSize)
	if err != nil {
		return nil, err
	}
	out := make([]model.ChatSummary, 0, len(chats))
	for _, c := range chats {
		last, err := s.store.LastUserMessage(ctx, c.ID)
		if err != nil {
			s.log.Warn("load last message", zap.String("chat_id", c.ID), zap.Error(err))
		}
		out = append(out, model.ChatSummary{
			ID:           c.ID,
			Title:        c.Title,
			Summary:      c.Summary,
			LastMessage:  last,
			Timestamp:    c.UpdatedAt.UnixMilli(),
			Model:        c.Model,
			MessageCount: c.MessageCount,
		})
	}
	return out, nil
}

// ChatMessages returns one of the caller's chats with its transcript.
func (s *ChatService) ChatMessages(ctx context.Context, authUserID, chatID string) (model.Chat, []model.Message, error) {
	u, err := s.store.GetUserByAuthID(ctx, authUserID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Chat{}, nil, statusError(http.StatusNotFound, "User not found")
	}
	if err != nil {
		return model.Chat{}, nil, err
	}

	chat, err := s.store.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Chat{}, nil, statusError(http.StatusNotFound, "Chat not found or access denied")
	}
	if err != nil {
		return model.Chat{}, nil, err
	}
	if chat.UserID != u.ID || chat.Deleted {
		return model.Chat{}, nil, statusError(http.StatusNotFound, "Chat not found or access denied")
	}

	msgs, err := s.store.GetChatMessages(ctx, chatID)
	if err != nil {
		return model.Chat{}, nil, err
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return chat, msgs, nil
}

// DeleteChat hides one of the caller's chats. The rows stay for the
// admin console.
func (s *ChatService) DeleteChat(ctx context.Context, authUserID, chatID string) error {
	u, err := s.store.GetUserByAuthID(ctx, authUserID)
	if errors.Is(err, store.ErrNotFound) {
		return statusError(http.StatusNotFound, "User not found")
	}
	if err != nil {
		return err
	}
	err = s.store.SoftDeleteChat(ctx, chatID, u.ID, time.Now().UTC())
	if errors.Is(err, store.ErrNotFound) {
		return statusError(http.StatusNotFound, "Chat not found or access denied")
	}
	return err
}
