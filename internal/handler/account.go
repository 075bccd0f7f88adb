package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rexmccreary15-dotcom/trexai/internal/middleware"
	"github.com/rexmccreary15-dotcom/trexai/internal/model"
	"github.com/rexmccreary15-dotcom/trexai/internal/service"
	"github.com/rexmccreary15-dotcom/trexai/pkg/logger"
)

// AccountHandler handles presence, ban checks, feature unlocks and
// account settings endpoints.
type AccountHandler struct {
	service *service.UserService
	logger  *logger.Logger
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(svc *service.UserService, log *logger.Logger) *AccountHandler {
	return &AccountHandler{
		service: svc,
		logger:  log,
	}
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

func (h *AccountHandler) identity(r *http.Request, sessionID string) model.Identity {
	ctx := r.Context()
	return model.Identity{
		SessionID:  sessionID,
		AuthUserID: middleware.GetAuthUserID(ctx),
		Email:      middleware.GetAuthEmail(ctx),
	}
}

// CheckBan handles POST /api/check-ban. It never fails: an unresolvable
// caller is reported as not banned.
func (h *AccountHandler) CheckBan(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status := h.service.BanStatus(r.Context(), h.identity(r, req.SessionID))
	writeJSON(w, http.StatusOK, status)
}

// Heartbeat handles POST /api/heartbeat
func (h *AccountHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.Heartbeat(r.Context(), h.identity(r, req.SessionID)); err != nil {
		writeServiceError(h.logger, w, err, "failed to record heartbeat")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// UnlockStatus handles GET /api/unlock/{feature}
func (h *AccountHandler) UnlockStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	feature := chi.URLParam(r, "feature")

	unlocked, err := h.service.UnlockStatus(ctx, middleware.GetAuthUserID(ctx), feature)
	if err != nil {
		writeServiceError(h.logger, w, err, "failed to check unlock status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"unlocked": unlocked})
}

// Unlock handles POST /api/unlock/{feature}
func (h *AccountHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	feature := chi.URLParam(r, "feature")

	var req struct {
		Code      string `json:"code"`
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message, err := h.service.Unlock(r.Context(), h.identity(r, req.SessionID), feature, req.Code)
	if err != nil {
		writeServiceError(h.logger, w, err, "failed to unlock feature")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"unlocked": true,
		"message":  message,
	})
}

// Profile handles GET /api/user/profile
func (h *AccountHandler) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Profile(r.Context(), h.identity(r, ""))
	if err != nil {
		writeServiceError(h.logger, w, err, "failed to load profile")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// UpdateProfile handles PUT /api/user/profile
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), h.identity(r, ""), req)
	if err != nil {
		writeServiceError(h.logger, w, err, "failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// Commands handles GET /api/user/commands
func (h *AccountHandler) Commands(w http.ResponseWriter, r *http.Request) {
	commands, err := h.service.Commands(r.Context(), h.identity(r, ""))
	if err != nil {
		writeServiceError(h.logger, w, err, "failed to load commands")
		return
	}

	writeJSON(w, http.StatusOK, map[string][]model.Command{"commands": commands})
}

// UpdateCommands handles PUT /api/user/commands
func (h *AccountHandler) UpdateCommands(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Commands []model.Command `json:"commands"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.SetCommands(r.Context(), h.identity(r, ""), req.Commands); err != nil {
		writeServiceError(h.logger, w, err, "failed to save commands")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
