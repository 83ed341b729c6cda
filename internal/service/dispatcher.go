package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/catalog"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/eventlog"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/llm"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/tools"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/uistream"
	"github.com/capitalize-ai/movie-ticketing-assistant/pkg/logger"
	"github.com/capitalize-ai/movie-ticketing-assistant/pkg/metrics"
	"github.com/capitalize-ai/movie-ticketing-assistant/pkg/tracing"
)

// Assistant notes recorded by the payment sub-flow.
const (
	CodeSentNote          = "A code has been sent to user's phone. They should enter it in the user interface to continue."
	PurchaseCompletedNote = "The purchase has completed successfully."
	FulfillingNote        = "Please wait while we fulfill your order."
)

// Action names used in logs and metrics.
const (
	ActionSubmitUserMessage = "submitUserMessage"
	ActionRequestCode       = "requestCode"
	ActionValidateCode      = "validateCode"
)

// ErrEmptyMessage is returned when a user message has no content.
var ErrEmptyMessage = errors.New("message content is empty")

// UIHandle is a new entry of the UI sequence whose display fills in
// progressively.
type UIHandle struct {
	ID      string
	Display *uistream.Handle[model.Descriptor]
}

// PaymentHandle is returned by the payment actions: a status stream and the
// UI that accompanies it.
type PaymentHandle struct {
	ID      string
	Status  *uistream.Handle[model.PaymentStatus]
	Display *uistream.Handle[model.Descriptor]
}

// DispatcherConfig holds the tunables of the dispatcher.
type DispatcherConfig struct {
	Model          string
	SeatPrice      float64
	MatchThreshold float64
	CodeDelay      time.Duration
	SettleDelay    time.Duration
}

// Dispatcher runs the user-facing actions against a chat.
type Dispatcher struct {
	chats   *ChatService
	llm     llm.Client
	catalog catalog.Catalog
	cfg     DispatcherConfig
	logger  *logger.Logger
}

// NewDispatcher creates a dispatcher. client may be nil, in which case every
// turn ends with an empty display.
func NewDispatcher(chats *ChatService, client llm.Client, cat catalog.Catalog, cfg DispatcherConfig, log *logger.Logger) *Dispatcher {
	if cfg.SeatPrice <= 0 {
		cfg.SeatPrice = model.DefaultSeatPrice
	}
	return &Dispatcher{
		chats:   chats,
		llm:     client,
		catalog: cat,
		cfg:     cfg,
		logger:  log,
	}
}

// SubmitUserMessage appends the user's message and starts a model turn. The
// returned display starts as a spinner and is finalized by the turn, after
// the turn's events are committed.
func (d *Dispatcher) SubmitUserMessage(ctx context.Context, chatID, userID, content string) (*UIHandle, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}

	sess, err := d.chats.open(ctx, chatID, userID)
	if err != nil {
		metrics.RecordAction(ActionSubmitUserMessage, "rejected")
		return nil, err
	}

	txn := sess.conv.Begin()
	if _, err := txn.Append(model.Event{Role: model.RoleUser, Content: content}); err != nil {
		d.chats.release(sess)
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	display := uistream.New(model.Spinner())
	log := d.logger.WithChat(chatID, userID, ActionSubmitUserMessage)

	go d.runTurn(context.WithoutCancel(ctx), sess, txn, display, log)

	return &UIHandle{ID: uuid.Must(uuid.NewV7()).String(), Display: display}, nil
}

func (d *Dispatcher) runTurn(ctx context.Context, sess *session, txn *eventlog.Txn, display *uistream.Handle[model.Descriptor], log *logger.Logger) {
	defer d.chats.release(sess)

	ctx, span := tracing.Start(ctx, "dispatcher.submitUserMessage", "chat_id", sess.conv.ID())
	defer span.End()

	if d.llm == nil {
		d.abortTurn(ctx, txn, display, log, errors.New("no model client configured"))
		metrics.RecordAction(ActionSubmitUserMessage, "error")
		return
	}

	req := d.buildRequest(txn.Get().Events)
	start := time.Now()

	var text strings.Builder
	resp, err := d.llm.CompleteStream(ctx, req, func(token string, _ int) error {
		text.WriteString(token)
		return display.Update(model.BotMessage(text.String()))
	})
	duration := time.Since(start).Seconds()
	if err != nil {
		span.RecordError(err)
		metrics.RecordLLMStream(req.Model, "error", duration, 0, 0)
		d.abortTurn(ctx, txn, display, log, err)
		metrics.RecordAction(ActionSubmitUserMessage, "error")
		return
	}
	metrics.RecordLLMStream(resp.Model, "success", duration, resp.TokensIn, resp.TokensOut)

	if resp.FunctionCall == nil {
		content := resp.Content
		if content == "" {
			content = text.String()
		}
		if strings.TrimSpace(content) == "" {
			d.abortTurn(ctx, txn, display, log, errors.New("model returned an empty reply"))
			metrics.RecordAction(ActionSubmitUserMessage, "error")
			return
		}
		if _, err := txn.Done(ctx, model.Event{Role: model.RoleAssistant, Content: content}); err != nil {
			log.Error("failed to commit reply", zap.Error(err))
		}
		_ = display.Done(model.BotMessage(content))
		metrics.RecordAction(ActionSubmitUserMessage, "text")
		log.Info("turn completed", zap.Int("reply_length", len(content)))
		return
	}

	call, err := tools.Parse(*resp.FunctionCall)
	if err != nil {
		d.abortTurn(ctx, txn, display, log, err)
		metrics.RecordAction(ActionSubmitUserMessage, "error")
		return
	}
	metrics.FunctionCallsTotal.WithLabelValues(string(call.Operation())).Inc()

	outcome := d.render(ctx, sess, call, txn, display, log.With(zap.String("operation", string(call.Operation()))))
	metrics.RecordAction(ActionSubmitUserMessage, outcome)
}

// render drives the display of a selected operation and commits its event.
// It returns the outcome label for metrics.
func (d *Dispatcher) render(ctx context.Context, sess *session, call tools.Call, txn *eventlog.Txn, display *uistream.Handle[model.Descriptor], log *logger.Logger) string {
	switch c := call.(type) {
	case tools.ShowAllMovies:
		_ = display.Update(model.MoviesSkeleton())

		movies, err := d.catalog.AllMovies(ctx)
		if err != nil {
			log.Warn("failed to list movies", zap.Error(err))
			movies = []model.Movie{}
		}
		if err := d.commitFunction(ctx, txn, model.FunctionShowMovies, movies); err != nil {
			return d.failRender(ctx, txn, display, log, err)
		}
		_ = display.Done(model.MovieList(movies))

	case tools.SearchMovies:
		_ = display.Update(model.MoviesSkeleton())

		movies := []model.Movie{}
		limit := c.Limit
		start := time.Now()
		req := model.SearchRequest{Search: c.Search, Limit: &limit}
		if d.cfg.MatchThreshold > 0 {
			req.MatchThreshold = &d.cfg.MatchThreshold
		}
		resp, err := d.catalog.Search(ctx, req)
		if err != nil {
			metrics.RecordSearch("error", time.Since(start).Seconds())
			log.Warn("movie search failed", zap.Error(err), zap.String("search", c.Search))
		} else {
			metrics.RecordSearch("success", time.Since(start).Seconds())
			if resp.Result != nil {
				movies = resp.Result
			}
		}
		if err := d.commitFunction(ctx, txn, model.FunctionSearchMovies, movies); err != nil {
			return d.failRender(ctx, txn, display, log, err)
		}
		_ = display.Done(model.MovieList(movies))

	case tools.ShowTimes:
		_ = display.Update(model.Spinner())

		times := model.ShowTimes{Title: c.Title, Times: c.Times}
		if err := d.commitFunction(ctx, txn, model.FunctionShowTimes, times); err != nil {
			return d.failRender(ctx, txn, display, log, err)
		}
		_ = display.Done(model.TimePicker(times))

	case tools.ShowSeats:
		_ = display.Update(model.Spinner())

		selection := model.SeatSelection{Movie: c.Movie, Time: c.Time, Date: c.Date}
		if err := d.commitFunction(ctx, txn, model.FunctionShowSeats, selection); err != nil {
			return d.failRender(ctx, txn, display, log, err)
		}
		_ = display.Done(model.SeatPicker(selection, d.cfg.SeatPrice))

	case tools.PurchaseTickets:
		_ = display.Update(model.Spinner())

		price := float64(len(c.Seats)) * d.cfg.SeatPrice
		if c.Price != price {
			log.Warn("purchase price recomputed",
				zap.Float64("requested", c.Price),
				zap.Float64("price", price),
				zap.Int("seats", len(c.Seats)),
			)
		}
		summary := model.PurchaseSummary{Movie: c.Movie, Time: c.Time, Price: price, Seats: c.Seats}
		if err := d.commitFunction(ctx, txn, model.FunctionPurchaseTickets, summary); err != nil {
			return d.failRender(ctx, txn, display, log, err)
		}
		sess.setPayment(model.PaymentRequiresConfirmation)
		_ = display.Done(model.Purchase(summary, model.PaymentRequiresConfirmation))

	case tools.Unknown:
		log.Warn("model selected an unknown operation")
		if _, err := txn.Done(ctx); err != nil {
			log.Error("failed to commit turn", zap.Error(err))
		}
		_ = display.Done(model.None())
		return "unknown"
	}

	log.Info("turn completed")
	return "function"
}

func (d *Dispatcher) commitFunction(ctx context.Context, txn *eventlog.Txn, name string, payload any) error {
	content, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", name, err)
	}
	_, err = txn.Done(ctx, model.Event{Role: model.RoleFunction, Name: name, Content: string(content)})
	return err
}

func (d *Dispatcher) failRender(ctx context.Context, txn *eventlog.Txn, display *uistream.Handle[model.Descriptor], log *logger.Logger, err error) string {
	d.abortTurn(ctx, txn, display, log, err)
	return "error"
}

// abortTurn keeps the user's message, leaves the display empty and logs the
// cause.
func (d *Dispatcher) abortTurn(ctx context.Context, txn *eventlog.Txn, display *uistream.Handle[model.Descriptor], log *logger.Logger, cause error) {
	log.Error("turn failed", zap.Error(cause))
	if !txn.Committed() {
		if _, err := txn.Done(ctx); err != nil {
			log.Error("failed to commit turn", zap.Error(err))
		}
	}
	_ = display.Done(model.None())
}

func (d *Dispatcher) buildRequest(events []model.Event) *llm.CompletionRequest {
	messages := make([]llm.ChatMessage, 0, len(events))
	for _, e := range events {
		// Stored chats may carry roles no model accepts.
		if !e.Role.Valid() {
			d.logger.Warn("skipping event with unknown role", zap.String("event_id", e.ID), zap.String("role", string(e.Role)))
			continue
		}
		messages = append(messages, llm.ChatMessage{
			Role:    string(e.Role),
			Content: e.Content,
			Name:    e.Name,
		})
	}

	return &llm.CompletionRequest{
		Model:     d.cfg.Model,
		System:    tools.SystemInstruction,
		Messages:  messages,
		Functions: tools.Definitions(),
	}
}

// RequestCode records that a confirmation code was sent. The status resolves
// to requires_code immediately; the display is a spinner that finishes after
// the code delay.
func (d *Dispatcher) RequestCode(ctx context.Context, chatID, userID string) (*PaymentHandle, error) {
	sess, err := d.chats.open(ctx, chatID, userID)
	if err != nil {
		metrics.RecordAction(ActionRequestCode, "rejected")
		return nil, err
	}
	defer d.chats.release(sess)

	status, err := sess.advancePayment(model.ActionRequestCode, model.PaymentNone)
	if err != nil {
		metrics.RecordAction(ActionRequestCode, "rejected")
		return nil, err
	}

	ctx, span := tracing.Start(ctx, "dispatcher.requestCode", "chat_id", chatID)
	defer span.End()

	log := d.logger.WithChat(chatID, userID, ActionRequestCode)
	if _, err := sess.conv.Begin().Done(ctx, model.Event{Role: model.RoleAssistant, Content: CodeSentNote}); err != nil {
		log.Error("failed to commit code note", zap.Error(err))
	}

	display := uistream.New(model.Spinner())
	go func() {
		timer := time.NewTimer(d.cfg.CodeDelay)
		defer timer.Stop()
		<-timer.C
		_ = display.Done()
	}()

	metrics.RecordAction(ActionRequestCode, "success")
	log.Info("confirmation code requested")

	return &PaymentHandle{
		ID:      uuid.Must(uuid.NewV7()).String(),
		Status:  uistream.Resolved(status),
		Display: display,
	}, nil
}

// ValidateCode settles the purchase. The status streams in_progress then
// completed; on completion the trailing event is replaced with the
// completion note.
func (d *Dispatcher) ValidateCode(ctx context.Context, chatID, userID string) (*PaymentHandle, error) {
	sess, err := d.chats.open(ctx, chatID, userID)
	if err != nil {
		metrics.RecordAction(ActionValidateCode, "rejected")
		return nil, err
	}

	if _, err := sess.advancePayment(model.ActionValidateCode, model.PaymentInProgress); err != nil {
		d.chats.release(sess)
		metrics.RecordAction(ActionValidateCode, "rejected")
		return nil, err
	}

	status := uistream.New(model.PaymentInProgress)
	display := uistream.New(model.Descriptor{Kind: model.KindSpinner, Text: FulfillingNote})
	log := d.logger.WithChat(chatID, userID, ActionValidateCode)

	go d.settle(context.WithoutCancel(ctx), sess, status, display, log)

	return &PaymentHandle{
		ID:      uuid.Must(uuid.NewV7()).String(),
		Status:  status,
		Display: display,
	}, nil
}

func (d *Dispatcher) settle(ctx context.Context, sess *session, status *uistream.Handle[model.PaymentStatus], display *uistream.Handle[model.Descriptor], log *logger.Logger) {
	defer d.chats.release(sess)

	ctx, span := tracing.Start(ctx, "dispatcher.validateCode", "chat_id", sess.conv.ID())
	defer span.End()

	timer := time.NewTimer(d.cfg.SettleDelay)
	defer timer.Stop()
	<-timer.C

	txn := sess.conv.Begin()
	if _, err := txn.ReplaceLast(model.Event{Role: model.RoleAssistant, Content: PurchaseCompletedNote}); err != nil {
		log.Error("failed to record completion", zap.Error(err))
	}
	if _, err := txn.Done(ctx); err != nil {
		log.Error("failed to commit completion", zap.Error(err))
	}
	sess.setPayment(model.PaymentCompleted)

	_ = display.Done(model.PaymentSucceeded())
	_ = status.Done(model.PaymentCompleted)

	metrics.RecordAction(ActionValidateCode, "success")
	log.Info("purchase completed")
}

// paymentStatusFromLog recovers the payment status of a reloaded chat.
func paymentStatusFromLog(events []model.Event) model.PaymentStatus {
	status := model.PaymentNone
	for _, e := range events {
		switch {
		case e.Role == model.RoleFunction && e.Name == model.FunctionPurchaseTickets:
			status = model.PaymentRequiresConfirmation
		case e.Role == model.RoleAssistant && e.Content == CodeSentNote && status == model.PaymentRequiresConfirmation:
			status = model.PaymentRequiresCode
		case e.Role == model.RoleAssistant && e.Content == PurchaseCompletedNote && status != model.PaymentNone:
			status = model.PaymentCompleted
		}
	}
	return status
}
