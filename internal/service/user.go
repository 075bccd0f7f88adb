package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rexmccreary15-dotcom/trexai/internal/model"
	"github.com/rexmccreary15-dotcom/trexai/internal/store"
	"github.com/rexmccreary15-dotcom/trexai/pkg/logger"
)

// Unlockable features.
const (
	FeatureCreator   = "creator"
	FeatureIncognito = "incognito"
)

const defaultBanReason = "You have been banned from this site."

// UserService covers account, presence, unlock and admin user flows.
type UserService struct {
	store         *store.Store
	creatorCode   string
	incognitoCode string
	log           *logger.Logger
}

func NewUserService(st *store.Store, creatorCode, incognitoCode string, log *logger.Logger) *UserService {
	return &UserService{store: st, creatorCode: creatorCode, incognitoCode: incognitoCode, log: log}
}

// Heartbeat marks the caller present. Creates the user row when this is
// the first contact.
func (s *UserService) Heartbeat(ctx context.Context, identity model.Identity) error {
	if !identity.Present() {
		return statusError(http.StatusBadRequest, "Missing sessionId or authUserId")
	}
	now := time.Now().UTC()
	u, err := s.store.GetOrCreateUser(ctx, identity, now)
	if err != nil {
		return err
	}
	return s.store.Heartbeat(ctx, u.ID, now)
}

// BanStatus looks the caller up without creating a row. An unknown
// identity is simply not banned.
func (s *UserService) BanStatus(ctx context.Context, identity model.Identity) model.BanStatus {
	u, err := s.lookup(ctx, identity)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn("ban check lookup", zap.Error(err))
		}
		return model.BanStatus{}
	}
	if !u.IsBanned {
		return model.BanStatus{}
	}
	reason := defaultBanReason
	if u.BanReason != nil && *u.BanReason != "" {
		reason = *u.BanReason
	}
	return model.BanStatus{Banned: true, Reason: reason}
}

func (s *UserService) lookup(ctx context.Context, identity model.Identity) (model.User, error) {
	if identity.AuthUserID != "" {
		u, err := s.store.GetUserByAuthID(ctx, identity.AuthUserID)
		if err == nil || !errors.Is(err, store.ErrNotFound) {
			return u, err
		}
	}
	if identity.SessionID != "" {
		return s.store.GetUserBySessionID(ctx, identity.SessionID)
	}
	return model.User{}, store.ErrNotFound
}

// UnlockStatus reports whether the authenticated user has unlocked the
// feature. A user without a row has not.
func (s *UserService) UnlockStatus(ctx context.Context, authUserID, feature string) (bool, error) {
	if _, err := unlockColumn(feature); err != nil {
		return false, err
	}
	u, err := s.store.GetUserByAuthID(ctx, authUserID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	switch feature {
	case FeatureCreator:
		return u.CreatorUnlocked, nil
	default:
		return u.IncognitoUnlocked, nil
	}
}

// Unlock redeems an unlock code for the authenticated user. Returns a
// message distinguishing a fresh unlock from a repeat.
func (s *UserService) Unlock(ctx context.Context, identity model.Identity, feature, code string) (string, error) {
	column, err := unlockColumn(feature)
	if err != nil {
		return "", err
	}
	expected := s.creatorCode
	label := "Creator Controls"
	if feature == FeatureIncognito {
		expected = s.incognitoCode
		label = "Incognito Mode"
	}
	if strings.ToLower(strings.TrimSpace(code)) != expected {
		return "", statusError(http.StatusBadRequest, "Incorrect code")
	}

	u, err := s.store.GetOrCreateUser(ctx, identity, time.Now().UTC())
	if err != nil {
		return "", err
	}
	already := (feature == FeatureCreator && u.CreatorUnlocked) ||
		(feature == FeatureIncognito && u.IncognitoUnlocked)
	if err := s.store.SetUnlock(ctx, u.ID, column); err != nil {
		return "", err
	}
	if already {
		return label + " already unlocked!", nil
	}
	return label + " unlocked!", nil
}

func unlockColumn(feature string) (string, error) {
	switch feature {
	case FeatureCreator:
		return "creator_unlocked", nil
	case FeatureIncognito:
		return "incognito_unlocked", nil
	default:
		return "", statusError(http.StatusNotFound, "Unknown feature")
	}
}

// Profile returns the caller's account settings, creating the row on
// first access.
func (s *UserService) Profile(ctx context.Context, identity model.Identity) (model.Profile, error) {
	u, err := s.store.GetOrCreateUser(ctx, identity, time.Now().UTC())
	if err != nil {
		return model.Profile{}, err
	}
	keys := u.APIKeys
	if keys == nil {
		keys = map[string]string{}
	}
	return model.Profile{
		DisplayName:  u.DisplayName,
		APIKeys:      keys,
		DefaultModel: u.DefaultModel,
	}, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, identity model.Identity, req model.UpdateProfileRequest) (model.Profile, error) {
	u, err := s.store.GetOrCreateUser(ctx, identity, time.Now().UTC())
	if err != nil {
		return model.Profile{}, err
	}
	if err := s.store.UpdateProfile(ctx, u.ID, req); err != nil {
		return model.Profile{}, err
	}
	return s.Profile(ctx, identity)
}

func (s *UserService) Commands(ctx context.Context, identity model.Identity) ([]model.Command, error) {
	u, err := s.store.GetOrCreateUser(ctx, identity, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if u.Commands == nil {
		return []model.Command{}, nil
	}
	return u.Commands, nil
}

func (s *UserService) SetCommands(ctx context.Context, identity model.Identity, commands []model.Command) error {
	u, err := s.store.GetOrCreateUser(ctx, identity, time.Now().UTC())
	if err != nil {
		return err
	}
	return s.store.SetCommands(ctx, u.ID, commands)
}

// ListUsers pages through all users for the admin console. Stored
// message counts drift when writes race, so each row is reconciled
// against the authoritative event count.
func (s *UserService) ListUsers(ctx context.Context, page, limit int) (model.UsersPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	users, total, err := s.store.ListUsers(ctx, limit, (page-1)*limit)
	if err != nil {
		return model.UsersPage{}, err
	}
	for i := range users {
		users[i].MessageCount = s.reconcileMessageCount(ctx, users[i])
	}
	totalPages := (total + limit - 1) / limit
	return model.UsersPage{
		Users:      users,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

func (s *UserService) reconcileMessageCount(ctx context.Context, u model.User) int {
	real, err := s.store.CountUserEventsSince(ctx, u.ID, model.EventMessageSent, time.Time{})
	if err != nil {
		s.log.Warn("count user events", zap.String("user_id", u.ID), zap.Error(err))
		return u.MessageCount
	}
	if real != u.MessageCount && real > 0 {
		if err := s.store.SetMessageCount(ctx, u.ID, real); err != nil {
			s.log.Warn("reconcile message count", zap.String("user_id", u.ID), zap.Error(err))
		}
	}
	if real > 0 {
		return real
	}
	return u.MessageCount
}

// UserDetail returns one user with their recent chats, incognito
// included.
func (s *UserService) UserDetail(ctx context.Context, userID string) (model.User, []model.Chat, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return model.User{}, nil, err
	}
	u.MessageCount = s.reconcileMessageCount(ctx, u)
	chats, err := s.store.ListChatsByUser(ctx, userID, 100)
	if err != nil {
		return model.User{}, nil, err
	}
	if chats == nil {
		chats = []model.Chat{}
	}
	return u, chats, nil
}

func (s *UserService) UpdateUser(ctx context.Context, userID string, req model.UpdateUserRequest) (model.User, error) {
	return s.store.UpdateUser(ctx, userID, req)
}

// DeleteUser removes the user; chats, messages and events cascade.
func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	return s.store.DeleteUser(ctx, userID)
}

// Export assembles the admin data export. Chats come out with their
// messages inlined.
func (s *UserService) Export(ctx context.Context, exportType string, now time.Time) (map[string]any, error) {
	out := map[string]any{
		"type":       exportType,
		"exportedAt": now.Format(time.RFC3339),
	}

	switch exportType {
	case "chats":
		chats, err := s.chatsWithMessages(ctx)
		if err != nil {
			return nil, err
		}
		out["count"] = len(chats)
		out["data"] = chats
	case "settings":
		settings, err := s.store.ListSettings(ctx)
		if err != nil {
			return nil, err
		}
		out["count"] = len(settings)
		out["data"] = settings
	case "all":
		users, err := s.store.ListAllUsers(ctx)
		if err != nil {
			return nil, err
		}
		chats, err := s.chatsWithMessages(ctx)
		if err != nil {
			return nil, err
		}
		settings, err := s.store.ListSettings(ctx)
		if err != nil {
			return nil, err
		}
		out["data"] = map[string]any{
			"users":    users,
			"chats":    chats,
			"settings": settings,
		}
	default:
		return nil, statusError(http.StatusBadRequest, "Unknown export type")
	}
	return out, nil
}

type exportedChat struct {
	model.Chat
	Messages []model.Message `json:"messages"`
}

func (s *UserService) chatsWithMessages(ctx context.Context) ([]exportedChat, error) {
	chats, err := s.store.ListAllChats(ctx)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListAllMessages(ctx)
	if err != nil {
		return nil, err
	}
	byChat := make(map[string][]model.Message, len(chats))
	for _, m := range messages {
		byChat[m.ChatID] = append(byChat[m.ChatID], m)
	}
	out := make([]exportedChat, 0, len(chats))
	for _, c := range chats {
		msgs := byChat[c.ID]
		if msgs == nil {
			msgs = []model.Message{}
		}
		out = append(out, exportedChat{Chat: c, Messages: msgs})
	}
	return out, nil
}
