package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"groundchat/internal/model"
)

// fakeRetrieval is an in-memory RetrievalService. Uploads land in PENDING;
// tests drive state transitions through setDocument or the function hooks.
type fakeRetrieval struct {
	mu     sync.Mutex
	nextID int
	base   time.Time
	stores map[string]model.Store
	docs   map[string]model.Document

	createStoreErr error
	listStoresErr  error
	deleteStoreErr error
	uploadErr      error
	listDocsErr    error
	deleteDocErr   error

	getDocFn   func(documentID string) (*model.Document, error)
	generateFn func(req model.GenerateRequest) (*model.GenerateResult, error)
}

func newFakeRetrieval() *fakeRetrieval {
	return &fakeRetrieval{
		base:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		stores: make(map[string]model.Store),
		docs:   make(map[string]model.Document),
	}
}

func (f *fakeRetrieval) tick() time.Time {
	f.nextID++
	return f.base.Add(time.Duration(f.nextID) * time.Second)
}

func (f *fakeRetrieval) CreateStore(ctx context.Context, displayName string) (*model.Store, error) {
	if f.createStoreErr != nil {
		return nil, f.createStoreErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	created := f.tick()
	store := model.Store{
		ID:          fmt.Sprintf("fileSearchStores/store-%d", f.nextID),
		DisplayName: displayName,
		CreatedAt:   created,
	}
	f.stores[store.ID] = store
	return &store, nil
}

func (f *fakeRetrieval) ListStores(ctx context.Context) ([]model.Store, error) {
	if f.listStoresErr != nil {
		return nil, f.listStoresErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var stores []model.Store
	for _, store := range f.stores {
		stores = append(stores, store)
	}
	return stores, nil
}

func (f *fakeRetrieval) DeleteStore(ctx context.Context, storeID string) error {
	if f.deleteStoreErr != nil {
		return f.deleteStoreErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stores, storeID)
	for id, doc := range f.docs {
		if doc.StoreID == storeID {
			delete(f.docs, id)
		}
	}
	return nil
}

func (f *fakeRetrieval) UploadDocument(ctx context.Context, req model.UploadRequest) (*model.Document, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	created := f.tick()
	doc := model.Document{
		ID:             fmt.Sprintf("%s/documents/doc-%d", req.StoreID, f.nextID),
		StoreID:        req.StoreID,
		DisplayName:    req.DisplayName,
		MIMEType:       req.MIMEType,
		SizeBytes:      int64(len(req.Data)),
		Status:         model.StatusPending,
		CustomMetadata: req.Metadata,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	f.docs[doc.ID] = doc
	return &doc, nil
}

func (f *fakeRetrieval) GetDocument(ctx context.Context, documentID string) (*model.Document, error) {
	if f.getDocFn != nil {
		return f.getDocFn(documentID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[documentID]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", model.ErrNotFound, documentID)
	}
	out := doc
	return &out, nil
}

func (f *fakeRetrieval) ListDocuments(ctx context.Context, storeID string) ([]model.Document, error) {
	if f.listDocsErr != nil {
		return nil, f.listDocsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var docs []model.Document
	for _, doc := range f.docs {
		if doc.StoreID == storeID {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (f *fakeRetrieval) DeleteDocument(ctx context.Context, documentID string) error {
	if f.deleteDocErr != nil {
		return f.deleteDocErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, documentID)
	return nil
}

func (f *fakeRetrieval) GenerateGrounded(ctx context.Context, req model.GenerateRequest) (*model.GenerateResult, error) {
	if f.generateFn != nil {
		return f.generateFn(req)
	}
	return &model.GenerateResult{Text: "generated answer"}, nil
}

// setDocument overwrites the remote view of one document.
func (f *fakeRetrieval) setDocument(doc model.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = doc
}

func (f *fakeRetrieval) removeDocument(documentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, documentID)
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]model.ChatSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]model.ChatSession)}
}

func (s *fakeSessionStore) Create(session *model.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

func (s *fakeSessionStore) GetByIDAndUserID(sessionID string, userID uint) (*model.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || session.UserID != userID {
		return nil, nil
	}
	out := session
	return &out, nil
}

func (s *fakeSessionStore) ListByUserID(userID uint) ([]model.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sessions []model.ChatSession
	for _, session := range s.sessions {
		if session.UserID == userID {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

func (s *fakeSessionStore) DeleteByIDAndUserID(sessionID string, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if ok && session.UserID == userID {
		delete(s.sessions, sessionID)
	}
	return nil
}

type fakeMessageStore struct {
	mu       sync.Mutex
	messages []model.ChatMessage
}

func (s *fakeMessageStore) ListBySessionID(sessionID string, limit int) ([]model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ChatMessage
	for _, msg := range s.messages {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *fakeMessageStore) DeleteBySessionID(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []model.ChatMessage
	for _, msg := range s.messages {
		if msg.SessionID != sessionID {
			kept = append(kept, msg)
		}
	}
	s.messages = kept
	return nil
}

type fakeHistoryCache struct {
	mu      sync.Mutex
	history map[string][]model.ChatMessage
	dirty   map[string]bool
	gets    int
}

func newFakeHistoryCache() *fakeHistoryCache {
	return &fakeHistoryCache{
		history: make(map[string][]model.ChatMessage),
		dirty:   make(map[string]bool),
	}
}

func (c *fakeHistoryCache) GetHistory(ctx context.Context, sessionID string) ([]model.ChatMessage, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	messages, ok := c.history[sessionID]
	return messages, ok, nil
}

func (c *fakeHistoryCache) SetHistory(ctx context.Context, sessionID string, messages []model.ChatMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history[sessionID] = append([]model.ChatMessage(nil), messages...)
	return nil
}

func (c *fakeHistoryCache) DeleteHistory(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.history, sessionID)
	return nil
}

func (c *fakeHistoryCache) MarkDirty(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty[sessionID] = true
	return nil
}

func (c *fakeHistoryCache) IsDirty(ctx context.Context, sessionID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty[sessionID], nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []model.ChatMessage
	err       error
}

func (p *fakePublisher) Publish(ctx context.Context, msg model.ChatMessage) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, msg)
	return nil
}
