package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rexmccreary15-dotcom/trexai/internal/model"
	"github.com/rexmccreary15-dotcom/trexai/internal/store"
)

// Setting loads a single admin policy document.
func (s *UserService) Setting(ctx context.Context, key string) (model.CreatorSetting, error) {
	setting, err := s.store.GetSetting(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return model.CreatorSetting{}, statusError(http.StatusNotFound, "Setting not found")
	}
	if err != nil {
		return model.CreatorSetting{}, fmt.Errorf("load setting %q: %w", key, err)
	}
	return setting, nil
}

// SetSetting stores an admin policy document wholesale. The value must be
// valid JSON; known keys additionally must decode into their document shape.
func (s *UserService) SetSetting(ctx context.Context, key string, value json.RawMessage, now time.Time) (model.CreatorSetting, error) {
	if !json.Valid(value) {
		return model.CreatorSetting{}, statusError(http.StatusBadRequest, "Setting value must be valid JSON")
	}
	switch key {
	case model.SettingModeration:
		var doc model.ModerationSettings
		if err := json.Unmarshal(value, &doc); err != nil {
			return model.CreatorSetting{}, statusError(http.StatusBadRequest, "Invalid moderation settings")
		}
	case model.SettingRateLimit:
		var doc model.RateLimitSettings
		if err := json.Unmarshal(value, &doc); err != nil {
			return model.CreatorSetting{}, statusError(http.StatusBadRequest, "Invalid rate limit settings")
		}
	}
	if err := s.store.UpsertSetting(ctx, key, value, now); err != nil {
		return model.CreatorSetting{}, fmt.Errorf("save setting %q: %w", key, err)
	}
	return s.Setting(ctx, key)
}
