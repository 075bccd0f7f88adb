package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rexmccreary15-dotcom/trexai/internal/middleware"
	"github.com/rexmccreary15-dotcom/trexai/internal/model"
	"github.com/rexmccreary15-dotcom/trexai/internal/service"
	"github.com/rexmccreary15-dotcom/trexai/pkg/logger"
)

// AdminHandler handles the creator console endpoints.
type AdminHandler struct {
	users     *service.UserService
	analytics *service.AnalyticsService
	logger    *logger.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(users *service.UserService, analytics *service.AnalyticsService, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		users:     users,
		analytics: analytics,
		logger:    log,
	}
}

// ListUsers handles GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page := 1
	limit := 20

	if p := r.URL.Query().Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	resp, err := h.users.ListUsers(r.Context(), page, limit)
	if err != nil {
		writeServiceError(h.logger, w, err, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type userDetailResponse struct {
	User  model.User   `json:"user"`
	Chats []model.Chat `json:"chats"`
}

// GetUser handles GET /api/admin/users/{userID}
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := middleware.ValidateUserID(userID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, chats, err := h.users.UserDetail(r.Context(), userID)
	if err != nil {
		writeServiceError(h.logger, w, err, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, userDetailResponse{User: user, Chats: chats})
}

// UpdateUser handles PATCH /api/admin/users/{userID}
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := middleware.ValidateUserID(userID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.UpdateUser(r.Context(), userID, req)
	if err != nil {
		writeServiceError(h.logger, w, err, "failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /api/admin/users/{userID}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := middleware.ValidateUserID(userID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.users.DeleteUser(r.Context(), userID); err != nil {
		writeServiceError(h.logger, w, err, "failed to delete user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GetSetting handles GET /api/admin/settings/{key}
func (h *AdminHandler) GetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	setting, err := h.users.Setting(r.Context(), key)
	if err != nil {
		writeServiceError(h.logger, w, err, "failed to load setting")
		return
	}

	writeJSON(w, http.StatusOK, setting)
}

// SetSetting handles POST /api/admin/settings/{key}
func (h *AdminHandler) SetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req struct {
		Value json.RawMessage `json:"setting_value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	setting, err := h.users.SetSetting(r.Context(), key, req.Value, time.Now().UTC())
	if err != nil {
		writeServiceError(h.logger, w, err, "failed to save setting")
		return
	}

	writeJSON(w, http.StatusOK, setting)
}

// Analytics handles GET /api/admin/analytics
func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.Dashboard(r.Context(), time.Now().UTC())
	if err != nil {
		writeServiceError(h.logger, w, err, "failed to load analytics")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, stats)
}

// Export handles GET /api/admin/export
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	exportType := r.URL.Query().Get("type")
	if exportType == "" {
		exportType = "all"
	}

	payload, err := h.users.Export(r.Context(), exportType, time.Now().UTC())
	if err != nil {
		writeServiceError(h.logger, w, err, "failed to export data")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="export-`+exportType+`.json"`)
	writeJSON(w, http.StatusOK, payload)
}
