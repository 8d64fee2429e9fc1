package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"groundchat/internal/model"
)

// Shown as the assistant turn when generation fails; the error itself never
// propagates past SendMessage so the conversation stays usable.
const generationFallback = "I couldn't generate a response. Please try rephrasing your question."

var (
	ErrSessionNotFound = errors.New("chat session not found")
	ErrMessageEmpty    = errors.New("message content is empty")
)

// AsyncMessagePublisher hands messages to the persistence queue.
type AsyncMessagePublisher interface {
	Publish(ctx context.Context, msg model.ChatMessage) error
}

// HistoryCache is the short-lived per-session history cache.
type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID string) ([]model.ChatMessage, bool, error)
	SetHistory(ctx context.Context, sessionID string, messages []model.ChatMessage) error
	DeleteHistory(ctx context.Context, sessionID string) error
	MarkDirty(ctx context.Context, sessionID string) error
	IsDirty(ctx context.Context, sessionID string) (bool, error)
}

// SessionStore persists chat sessions.
type SessionStore interface {
	Create(session *model.ChatSession) error
	GetByIDAndUserID(sessionID string, userID uint) (*model.ChatSession, error)
	ListByUserID(userID uint) ([]model.ChatSession, error)
	DeleteByIDAndUserID(sessionID string, userID uint) error
}

// MessageStore persists chat messages (writes go through the async
// publisher; the store only reads and clears).
type MessageStore interface {
	ListBySessionID(sessionID string, limit int) ([]model.ChatMessage, error)
	DeleteBySessionID(sessionID string) error
}

// ChatService owns the conversations. Message history is held in memory per
// session (the ordering source of truth) and persisted asynchronously
// through the publisher/worker pipeline.
type ChatService struct {
	retrieval    RetrievalService
	registry     *StoreRegistry
	tracker      *DocumentTracker
	sessions     SessionStore
	messages     MessageStore
	publisher    AsyncMessagePublisher
	historyCache HistoryCache
	maxContext   int

	mu   sync.Mutex
	live map[string]*sessionState
}

// sessionState is one conversation's in-memory history. lastAnswered is the
// start time of the most recent request whose reply was appended; replies of
// requests that started earlier are stale and get discarded.
type sessionState struct {
	messages     []model.ChatMessage
	lastAnswered time.Time
}

func NewChatService(
	retrieval RetrievalService,
	registry *StoreRegistry,
	tracker *DocumentTracker,
	sessions SessionStore,
	messages MessageStore,
	publisher AsyncMessagePublisher,
	historyCache HistoryCache,
	maxContext int,
) *ChatService {
	if maxContext <= 0 {
		maxContext = 20
	}
	return &ChatService{
		retrieval:    retrieval,
		registry:     registry,
		tracker:      tracker,
		sessions:     sessions,
		messages:     messages,
		publisher:    publisher,
		historyCache: historyCache,
		maxContext:   maxContext,
		live:         make(map[string]*sessionState),
	}
}

type CreateSessionInput struct {
	UserID  uint
	Title   string
	StoreID string // empty = bind to the active store
}

func (s *ChatService) CreateSession(input CreateSessionInput) (*model.ChatSession, error) {
	if input.UserID == 0 {
		return nil, fmt.Errorf("%w: user id is required", model.ErrInvalidArgument)
	}

	storeID := strings.TrimSpace(input.StoreID)
	if storeID == "" {
		active, ok := s.registry.ActiveStore()
		if !ok {
			return nil, fmt.Errorf("%w: no active store selected", model.ErrNotFound)
		}
		storeID = active.ID
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "New Chat"
	}

	session := &model.ChatSession{
		ID:      uuid.NewString(),
		UserID:  input.UserID,
		StoreID: storeID,
		Title:   title,
	}
	if err := s.sessions.Create(session); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.live[session.ID] = &sessionState{}
	s.mu.Unlock()
	return session, nil
}

func (s *ChatService) ListSessions(userID uint) ([]model.ChatSession, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: user id is required", model.ErrInvalidArgument)
	}
	return s.sessions.ListByUserID(userID)
}

func (s *ChatService) DeleteSession(ctx context.Context, userID uint, sessionID string) error {
	if userID == 0 || sessionID == "" {
		return fmt.Errorf("%w: user id and session id are required", model.ErrInvalidArgument)
	}
	session, err := s.sessions.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if err := s.messages.DeleteBySessionID(sessionID); err != nil {
		return err
	}
	if err := s.sessions.DeleteByIDAndUserID(sessionID, userID); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.live, sessionID)
	s.mu.Unlock()
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, sessionID)
	}
	return nil
}

type SendMessageInput struct {
	UserID    uint
	SessionID string
	Content   string
	WebSearch bool // web-search grounding instead of the document store
}

// SendMessageResult carries the turn's messages. Stale marks a reply that
// was dropped because a newer request already completed; Warning is the
// non-fatal no-processed-documents signal for the UI.
type SendMessageResult struct {
	Messages []model.ChatMessageView `json:"messages"`
	Stale    bool                    `json:"stale,omitempty"`
	Warning  string                  `json:"warning,omitempty"`
}

// SendMessage appends the user turn, runs one grounded generation call
// scoped to the session's store (or web search), and appends the assistant
// turn with its citations. Generation failure is swallowed into a fixed
// placeholder reply. User turns append strictly in call order; when sends
// overlap, a completion belonging to a superseded request is discarded.
func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageResult, error) {
	if input.UserID == 0 || input.SessionID == "" {
		return nil, fmt.Errorf("%w: user id and session id are required", model.ErrInvalidArgument)
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}

	session, err := s.sessions.GetByIDAndUserID(input.SessionID, input.UserID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	result := &SendMessageResult{}
	if !input.WebSearch && s.tracker != nil &&
		s.tracker.CountByStatus(session.StoreID, model.StatusActive) == 0 {
		result.Warning = "store has no processed documents; the answer may carry no citations"
	}

	s.mu.Lock()
	state := s.liveState(session.ID)
	started := time.Now()
	userMsg := model.ChatMessage{
		SessionID: session.ID,
		Role:      model.RoleUser,
		Content:   content,
		CreatedAt: started,
	}
	state.messages = append(state.messages, userMsg)
	history := s.historyTurnsLocked(state, len(state.messages)-1)
	s.mu.Unlock()

	s.persist(ctx, userMsg)
	result.Messages = append(result.Messages, userMsg.View())

	assistantMsg := model.ChatMessage{
		SessionID: session.ID,
		Role:      model.RoleAssistant,
	}
	generated, genErr := s.retrieval.GenerateGrounded(ctx, model.GenerateRequest{
		Query:     content,
		StoreID:   session.StoreID,
		WebSearch: input.WebSearch,
		History:   history,
	})
	if genErr != nil {
		log.Printf("grounded generation failed for session %s: %v", session.ID, genErr)
		assistantMsg.Content = generationFallback
	} else {
		assistantMsg.Content = generated.Text
		assistantMsg.SetCitations(dedupeCitations(generated.Citations))
	}
	assistantMsg.CreatedAt = time.Now()

	s.mu.Lock()
	if started.Before(state.lastAnswered) {
		s.mu.Unlock()
		result.Stale = true
		return result, nil
	}
	state.lastAnswered = started
	state.messages = append(state.messages, assistantMsg)
	s.mu.Unlock()

	s.persist(ctx, assistantMsg)
	result.Messages = append(result.Messages, assistantMsg.View())
	return result, nil
}

// ClearHistory resets the conversation to empty. Stored documents are not
// affected.
func (s *ChatService) ClearHistory(ctx context.Context, userID uint, sessionID string) error {
	if userID == 0 || sessionID == "" {
		return fmt.Errorf("%w: user id and session id are required", model.ErrInvalidArgument)
	}
	session, err := s.sessions.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	s.live[sessionID] = &sessionState{}
	s.mu.Unlock()

	if err := s.messages.DeleteBySessionID(sessionID); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, sessionID)
	}
	return nil
}

// History returns the conversation's messages in order. The in-memory state
// wins; otherwise the cache is consulted and finally the message store,
// rehydrating both.
func (s *ChatService) History(ctx context.Context, userID uint, sessionID string, limit int) ([]model.ChatMessageView, error) {
	if userID == 0 || sessionID == "" {
		return nil, fmt.Errorf("%w: user id and session id are required", model.ErrInvalidArgument)
	}
	session, err := s.sessions.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	if state, ok := s.live[sessionID]; ok && len(state.messages) > 0 {
		views := viewsOf(trimMessages(state.messages, limit))
		s.mu.Unlock()
		return views, nil
	}
	s.mu.Unlock()

	if s.historyCache != nil {
		dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID)
		if dirtyErr == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				s.rehydrate(sessionID, cached)
				return viewsOf(trimMessages(cached, limit)), nil
			}
		}
	}

	messages, err := s.messages.ListBySessionID(sessionID, limit)
	if err != nil {
		return nil, err
	}
	s.rehydrate(sessionID, messages)
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, sessionID, messages)
		}
	}
	return viewsOf(messages), nil
}

// persist enqueues a message for asynchronous persistence and invalidates
// the cache. Both are best effort: the in-memory history already carries the
// turn, and losing a persistence write must not break the conversation.
func (s *ChatService) persist(ctx context.Context, msg model.ChatMessage) {
	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, msg.SessionID)
		_ = s.historyCache.DeleteHistory(ctx, msg.SessionID)
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		log.Printf("enqueue message for session %s failed: %v", msg.SessionID, err)
	}
}

// liveState must be called with s.mu held.
func (s *ChatService) liveState(sessionID string) *sessionState {
	state, ok := s.live[sessionID]
	if !ok {
		state = &sessionState{}
		s.live[sessionID] = state
	}
	return state
}

// historyTurnsLocked converts the last maxContext messages before index end
// into generation context. Must be called with s.mu held.
func (s *ChatService) historyTurnsLocked(state *sessionState, end int) []model.ChatTurn {
	start := end - s.maxContext
	if start < 0 {
		start = 0
	}
	turns := make([]model.ChatTurn, 0, end-start)
	for _, msg := range state.messages[start:end] {
		turns = append(turns, model.ChatTurn{Role: msg.Role, Content: msg.Content})
	}
	return turns
}

func (s *ChatService) rehydrate(sessionID string, messages []model.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.live[sessionID]; ok && len(state.messages) > 0 {
		return
	}
	s.live[sessionID] = &sessionState{messages: append([]model.ChatMessage(nil), messages...)}
}

// dedupeCitations keeps the first appearance of each label, preserving
// order.
func dedupeCitations(citations []model.Citation) []model.Citation {
	seen := make(map[string]bool, len(citations))
	var out []model.Citation
	for _, c := range citations {
		if c.Label == "" || seen[c.Label] {
			continue
		}
		seen[c.Label] = true
		out = append(out, c)
	}
	return out
}

func trimMessages(messages []model.ChatMessage, limit int) []model.ChatMessage {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}

func viewsOf(messages []model.ChatMessage) []model.ChatMessageView {
	views := make([]model.ChatMessageView, 0, len(messages))
	for i := range messages {
		views = append(views, messages[i].View())
	}
	return views
}
