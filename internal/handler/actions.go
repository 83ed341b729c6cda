package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/middleware"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/service"
	"github.com/capitalize-ai/movie-ticketing-assistant/pkg/logger"
	"github.com/capitalize-ai/movie-ticketing-assistant/pkg/metrics"
)

// ActionHandler streams the user-facing actions over SSE.
type ActionHandler struct {
	dispatcher *service.Dispatcher
	logger     *logger.Logger
}

// NewActionHandler creates a new action handler.
func NewActionHandler(d *service.Dispatcher, log *logger.Logger) *ActionHandler {
	return &ActionHandler{
		dispatcher: d,
		logger:     log,
	}
}

// SubmitMessage handles POST /api/v1/chats/:id/messages
func (h *ActionHandler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "id")

	if err := middleware.ValidateChatID(chatID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SubmitMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	handle, err := h.dispatcher.SubmitUserMessage(ctx, chatID, middleware.GetUserID(ctx), req.Content)
	if err != nil {
		h.reject(w, chatID, err)
		return
	}

	flusher, ok := startSSE(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	for part := range handle.Display.Subscribe(ctx) {
		if err := sendSSEEvent(w, flusher, eventUI, &model.UIPartEvent{ID: handle.ID, Display: part.Value, Done: part.Done}); err != nil {
			return
		}
	}
	if ctx.Err() != nil {
		h.logger.Debug("SSE client disconnected", zap.String("chat_id", chatID))
		return
	}

	sendSSEEvent(w, flusher, eventDone, map[string]bool{"success": true})
}

// RequestCode handles POST /api/v1/chats/:id/payment/code
func (h *ActionHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	h.payment(w, r, h.dispatcher.RequestCode)
}

// ValidateCode handles POST /api/v1/chats/:id/payment/validate
func (h *ActionHandler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	h.payment(w, r, h.dispatcher.ValidateCode)
}

type paymentAction func(ctx context.Context, chatID, userID string) (*service.PaymentHandle, error)

// payment streams the status and display parts of a payment action as they
// arrive, interleaved on one connection.
func (h *ActionHandler) payment(w http.ResponseWriter, r *http.Request, action paymentAction) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "id")

	if err := middleware.ValidateChatID(chatID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	handle, err := action(ctx, chatID, middleware.GetUserID(ctx))
	if err != nil {
		h.reject(w, chatID, err)
		return
	}

	flusher, ok := startSSE(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	statuses := handle.Status.Subscribe(ctx)
	displays := handle.Display.Subscribe(ctx)

	for statuses != nil || displays != nil {
		select {
		case part, ok := <-statuses:
			if !ok {
				statuses = nil
				continue
			}
			if err := sendSSEEvent(w, flusher, eventStatus, &model.StatusPartEvent{Status: part.Value, Done: part.Done}); err != nil {
				return
			}
		case part, ok := <-displays:
			if !ok {
				displays = nil
				continue
			}
			if err := sendSSEEvent(w, flusher, eventUI, &model.UIPartEvent{ID: handle.ID, Display: part.Value, Done: part.Done}); err != nil {
				return
			}
		}
	}
	if ctx.Err() != nil {
		return
	}

	sendSSEEvent(w, flusher, eventDone, map[string]bool{"success": true})
}

func (h *ActionHandler) reject(w http.ResponseWriter, chatID string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("action failed", zap.Error(err), zap.String("chat_id", chatID))
	}
	writeError(w, status, err.Error())
}
