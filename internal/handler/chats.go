package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/middleware"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/service"
	"github.com/capitalize-ai/movie-ticketing-assistant/pkg/logger"
)

// ChatHandler handles chat endpoints.
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

// Create handles POST /api/v1/chats. Nothing is stored until the first
// message is committed.
func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := h.service.NewChatID()
	writeJSON(w, http.StatusCreated, &model.NewChatResponse{
		ID:   id,
		Path: model.ChatPath(id),
	})
}

// List handles GET /api/v1/chats
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	resp, err := h.service.List(ctx, userID)
	if err != nil {
		h.logger.Error("failed to list chats", zap.Error(err), zap.String("user_id", userID))
		writeError(w, http.StatusInternalServerError, "failed to list chats")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// UI handles GET /api/v1/chats/:id/ui
func (h *ChatHandler) UI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "id")

	if err := middleware.ValidateChatID(chatID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	messages, err := h.service.UIState(ctx, chatID, middleware.GetUserID(ctx))
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to load chat", zap.Error(err), zap.String("chat_id", chatID))
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// Delete handles DELETE /api/v1/chats/:id
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "id")

	if err := middleware.ValidateChatID(chatID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := middleware.GetUserID(ctx)
	if err := h.service.Delete(ctx, chatID, userID); err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to delete chat", zap.Error(err), zap.String("chat_id", chatID))
		}
		writeError(w, status, err.Error())
		return
	}

	h.logger.Info("chat deleted",
		zap.String("chat_id", chatID),
		zap.String("user_id", userID),
		zap.String("email", middleware.GetEmail(ctx)),
	)
	w.WriteHeader(http.StatusNoContent)
}
