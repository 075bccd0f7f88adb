// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rexmccreary15-dotcom/trexai/internal/middleware"
	"github.com/rexmccreary15-dotcom/trexai/internal/model"
	"github.com/rexmccreary15-dotcom/trexai/internal/service"
	"github.com/rexmccreary15-dotcom/trexai/pkg/logger"
)

// ChatHandler handles chat completion and chat history endpoints.
type ChatHandler struct {
	service *service.ChatService
	logger  *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		service: svc,
		logger:  log,
	}
}

// Send handles POST /api/chat
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "No messages provided")
		return
	}
	for _, m := range req.Messages {
		if err := middleware.ValidateMessageContent(m.Content); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	identity := model.Identity{
		SessionID:  req.SessionID,
		AuthUserID: middleware.GetAuthUserID(ctx),
		Email:      middleware.GetAuthEmail(ctx),
	}

	resp, err := h.service.Send(ctx, identity, req)
	if err != nil {
		writeServiceError(h.logger, w, err, "failed to generate response")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
