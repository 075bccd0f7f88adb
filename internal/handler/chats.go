package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rexmccreary15-dotcom/trexai/internal/middleware"
	"github.com/rexmccreary15-dotcom/trexai/internal/model"
)

type chatDetailResponse struct {
	Chat     model.Chat      `json:"chat"`
	Messages []model.Message `json:"messages"`
}

// List handles GET /api/chats
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authUserID := middleware.GetAuthUserID(ctx)

	chats, err := h.service.History(ctx, authUserID)
	if err != nil {
		writeServiceError(h.logger, w, err, "failed to load chats")
		return
	}

	writeJSON(w, http.StatusOK, model.ListChatsResponse{Chats: chats})
}

// Get handles GET /api/chats/{chatID}
func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authUserID := middleware.GetAuthUserID(ctx)
	chatID := chi.URLParam(r, "chatID")

	if err := middleware.ValidateChatID(chatID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	chat, messages, err := h.service.ChatMessages(ctx, authUserID, chatID)
	if err != nil {
		writeServiceError(h.logger, w, err, "failed to load chat")
		return
	}

	writeJSON(w, http.StatusOK, chatDetailResponse{Chat: chat, Messages: messages})
}

// Delete handles DELETE /api/chats/{chatID}
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authUserID := middleware.GetAuthUserID(ctx)
	chatID := chi.URLParam(r, "chatID")

	if err := middleware.ValidateChatID(chatID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.DeleteChat(ctx, authUserID, chatID); err != nil {
		writeServiceError(h.logger, w, err, "failed to delete chat")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
