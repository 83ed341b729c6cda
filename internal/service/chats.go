// Package service provides business logic for the ticketing assistant.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/movie-ticketing-assistant/internal/eventlog"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/model"
	natsclient "github.com/capitalize-ai/movie-ticketing-assistant/internal/nats"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/projector"
	"github.com/capitalize-ai/movie-ticketing-assistant/internal/store"
	"github.com/capitalize-ai/movie-ticketing-assistant/pkg/logger"
	"github.com/capitalize-ai/movie-ticketing-assistant/pkg/metrics"
)

var (
	// ErrChatNotFound is returned when a chat does not exist.
	ErrChatNotFound = errors.New("chat not found")
	// ErrForbidden is returned when a chat belongs to another user.
	ErrForbidden = errors.New("chat belongs to another user")
)

// Journal receives every committed event and forgets a chat's events when
// it is deleted.
type Journal interface {
	Publish(ctx context.Context, entry *natsclient.JournalEntry) (uint64, error)
	Purge(ctx context.Context, chatID string) error
}

// DefaultSessionIdleTTL is how long an unused session stays in memory.
const DefaultSessionIdleTTL = 15 * time.Minute

// session is the in-process state of one chat.
type session struct {
	conv      *eventlog.Conversation
	createdAt time.Time

	mu        sync.Mutex
	userID    string
	payment   model.PaymentStatus
	committed []model.Event

	// saveMu orders saves against deletion.
	saveMu  sync.Mutex
	deleted bool

	// Guarded by ChatService.mu.
	active   int
	lastUsed time.Time
}

// claim checks that userID may act on the session. An authenticated user
// adopts an anonymous session.
func (s *session) claim(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID != "" && s.userID != userID {
		return ErrForbidden
	}
	if s.userID == "" {
		s.userID = userID
	}
	return nil
}

func (s *session) owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *session) paymentStatus() model.PaymentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payment
}

func (s *session) setPayment(status model.PaymentStatus) {
	s.mu.Lock()
	s.payment = status
	s.mu.Unlock()
}

// advancePayment checks that action applies to the payment status and
// moves to via, or to the target of the transition when via is PaymentNone.
// It returns the status stored.
func (s *session) advancePayment(action model.PaymentAction, via model.PaymentStatus) (model.PaymentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.payment.Next(action)
	if err != nil {
		return s.payment, err
	}
	if via != model.PaymentNone {
		next = via
	}
	s.payment = next
	return next, nil
}

// ChatService owns the conversation aggregates and persists them on commit.
// Sessions are cached while in use and evicted once idle; an evicted chat is
// reloaded from the store on its next action.
type ChatService struct {
	store     store.ChatStore
	journal   Journal
	projector *projector.Projector
	logger    *logger.Logger
	idleTTL   time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

// NewChatService creates a chat service. journal may be nil. A zero idleTTL
// uses DefaultSessionIdleTTL.
func NewChatService(st store.ChatStore, journal Journal, proj *projector.Projector, log *logger.Logger, idleTTL time.Duration) *ChatService {
	if idleTTL <= 0 {
		idleTTL = DefaultSessionIdleTTL
	}
	return &ChatService{
		store:     st,
		journal:   journal,
		projector: proj,
		logger:    log,
		idleTTL:   idleTTL,
		sessions:  make(map[string]*session),
	}
}

// NewChatID returns an ID for a chat that has not been persisted yet.
func (s *ChatService) NewChatID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// open returns the session of chatID, loading it from the store or starting
// an empty one, and marks it in use. Every successful open must be paired
// with release.
func (s *ChatService) open(ctx context.Context, chatID, userID string) (*session, error) {
	s.mu.Lock()
	s.evictIdleLocked(time.Now())
	sess, ok := s.sessions[chatID]
	if ok {
		sess.active++
	}
	s.mu.Unlock()

	if !ok {
		// The store round trip runs unlocked so a slow load never holds up
		// other chats.
		loaded, err := s.load(ctx, chatID, userID)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		sess, ok = s.sessions[chatID]
		if !ok {
			sess = loaded
			s.sessions[chatID] = sess
		}
		sess.active++
		s.mu.Unlock()
	}

	if err := sess.claim(userID); err != nil {
		s.release(sess)
		return nil, err
	}
	return sess, nil
}

// load builds a session from the stored chat, or an empty one.
func (s *ChatService) load(ctx context.Context, chatID, userID string) (*session, error) {
	var events []model.Event
	createdAt := time.Now()

	chat, err := s.store.Get(ctx, chatID)
	switch {
	case err == nil:
		if chat.UserID != userID {
			return nil, ErrForbidden
		}
		events = chat.Messages
		createdAt = chat.CreatedAt
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}

	sess := &session{
		createdAt: createdAt,
		userID:    userID,
		payment:   paymentStatusFromLog(events),
		committed: append([]model.Event(nil), events...),
	}
	sess.conv = eventlog.NewConversation(chatID, events, s.commitHook(sess))
	return sess, nil
}

// release marks the end of one use of sess.
func (s *ChatService) release(sess *session) {
	s.mu.Lock()
	sess.active--
	sess.lastUsed = time.Now()
	s.mu.Unlock()
}

// EvictIdle drops the sessions unused for longer than the idle TTL and
// returns how many were dropped.
func (s *ChatService) EvictIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictIdleLocked(time.Now())
}

func (s *ChatService) evictIdleLocked(now time.Time) int {
	evicted := 0
	for id, sess := range s.sessions {
		if sess.active == 0 && now.Sub(sess.lastUsed) >= s.idleTTL {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		metrics.SessionsEvictedTotal.Add(float64(evicted))
	}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	return evicted
}

// Run evicts idle sessions periodically until ctx is done.
func (s *ChatService) Run(ctx context.Context) {
	interval := s.idleTTL / 2
	if interval <= 0 {
		interval = s.idleTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(); n > 0 {
				s.logger.Debug("evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}

// commitHook persists the committed state. Failures are logged, never
// returned: a lost save must not break the turn that produced it.
func (s *ChatService) commitHook(sess *session) eventlog.CommitFunc {
	return func(ctx context.Context, state eventlog.State) {
		sess.mu.Lock()
		userID := sess.userID
		previous := sess.committed
		sess.committed = state.Events
		sess.mu.Unlock()

		log := s.logger.WithChat(state.ChatID, userID, "commit")

		sess.saveMu.Lock()
		defer sess.saveMu.Unlock()
		if sess.deleted {
			log.Debug("chat deleted, commit not saved", zap.Uint64("version", state.Version))
			return
		}

		s.journalChanges(ctx, log, userID, previous, state)

		if userID == "" {
			log.Debug("chat not saved for anonymous user")
			return
		}

		chat := &model.Chat{
			ID:        state.ChatID,
			Title:     model.ChatTitle(state.Events),
			UserID:    userID,
			CreatedAt: sess.createdAt,
			Messages:  state.Events,
			Path:      model.ChatPath(state.ChatID),
		}
		if err := s.store.Upsert(ctx, chat); err != nil {
			metrics.PersistenceFailuresTotal.WithLabelValues("store").Inc()
			log.Error("failed to save chat", zap.Error(err), zap.Uint64("version", state.Version))
			return
		}
		log.Debug("chat saved", zap.Uint64("version", state.Version), zap.Int("events", len(state.Events)))
	}
}

// journalChanges records the events that are new or replaced since the
// previous commit.
func (s *ChatService) journalChanges(ctx context.Context, log *logger.Logger, userID string, previous []model.Event, state eventlog.State) {
	now := time.Now()
	for i, e := range state.Events {
		replaced := i < len(previous) && previous[i].ID != e.ID
		if i < len(previous) && !replaced {
			continue
		}
		metrics.EventsAppendedTotal.WithLabelValues(string(e.Role)).Inc()

		if s.journal == nil {
			continue
		}
		entry := &natsclient.JournalEntry{
			ChatID:    state.ChatID,
			UserID:    userID,
			Version:   state.Version,
			Index:     i,
			Replaced:  replaced,
			Event:     e,
			CreatedAt: now,
		}
		if _, err := s.journal.Publish(ctx, entry); err != nil {
			metrics.PersistenceFailuresTotal.WithLabelValues("journal").Inc()
			log.Warn("failed to journal event", zap.Error(err), zap.String("event_id", e.ID))
		}
	}
}

// UIState rebuilds the UI sequence of a chat. Anonymous callers get an
// empty sequence.
func (s *ChatService) UIState(ctx context.Context, chatID, userID string) ([]model.UIMessage, error) {
	if userID == "" {
		return []model.UIMessage{}, nil
	}

	s.mu.Lock()
	sess, ok := s.sessions[chatID]
	s.mu.Unlock()

	if ok {
		if sess.owner() != userID {
			return nil, ErrForbidden
		}
		return s.projector.Project(chatID, sess.conv.State().Events), nil
	}

	chat, err := s.store.Get(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	if chat.UserID != userID {
		return nil, ErrForbidden
	}
	return s.projector.Project(chatID, chat.Messages), nil
}

// List returns summaries of the user's chats.
func (s *ChatService) List(ctx context.Context, userID string) (*model.ListChatsResponse, error) {
	chats, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	summaries := make([]model.ChatSummary, 0, len(chats))
	for _, c := range chats {
		summaries = append(summaries, model.ChatSummary{
			ID:        c.ID,
			Title:     c.Title,
			CreatedAt: c.CreatedAt,
			Path:      c.Path,
		})
	}

	return &model.ListChatsResponse{Chats: summaries, Total: len(summaries)}, nil
}

// Delete removes a chat owned by userID.
func (s *ChatService) Delete(ctx context.Context, chatID, userID string) error {
	chat, err := s.store.Get(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrChatNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load chat: %w", err)
	}
	if chat.UserID != userID {
		return ErrForbidden
	}

	// Detach the live session first so a turn still running cannot save the
	// chat again after it is gone.
	s.mu.Lock()
	sess, ok := s.sessions[chatID]
	delete(s.sessions, chatID)
	s.mu.Unlock()
	if ok {
		sess.saveMu.Lock()
		sess.deleted = true
		sess.saveMu.Unlock()
	}

	if err := s.store.Delete(ctx, chatID); err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}

	if s.journal != nil {
		if err := s.journal.Purge(ctx, chatID); err != nil {
			metrics.PersistenceFailuresTotal.WithLabelValues("journal").Inc()
			s.logger.Warn("failed to purge journaled events", zap.Error(err), zap.String("chat_id", chatID))
		}
	}

	return nil
}
