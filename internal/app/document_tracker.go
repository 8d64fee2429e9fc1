package app

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"groundchat/internal/model"
)

// ListPageSize is the fixed page size for document listings.
const ListPageSize = 20

// DocumentTracker owns the canonical local view of uploaded documents and is
// the only component that mutates document state. The external service
// remains the durable source of truth; the tracker mirrors it through
// uploads and caller-initiated refreshes.
type DocumentTracker struct {
	svc             RetrievalService
	defaultChunking model.ChunkingConfig

	mu      sync.Mutex
	docs    map[string]model.Document
	deleted map[string]struct{} // tombstones: delete wins over racing refreshes
}

func NewDocumentTracker(svc RetrievalService, defaultChunking model.ChunkingConfig) *DocumentTracker {
	if defaultChunking.IsZero() {
		defaultChunking = model.ChunkingConfig{ChunkSizeTokens: 400, ChunkOverlapTokens: 40}
	}
	return &DocumentTracker{
		svc:             svc,
		defaultChunking: defaultChunking,
		docs:            make(map[string]model.Document),
		deleted:         make(map[string]struct{}),
	}
}

// UploadInput carries one upload. MIMEType may be empty, in which case it is
// sniffed from the file bytes. Chunking nil means the tracker default.
type UploadInput struct {
	StoreID     string
	Data        []byte
	MIMEType    string
	DisplayName string
	Metadata    []model.MetadataEntry
	Chunking    *model.ChunkingConfig
}

// Upload validates the input locally, then hands the file to the service.
// The returned document is in PENDING state; processing is asynchronous and
// observed via RefreshStatus/RefreshAll.
func (t *DocumentTracker) Upload(ctx context.Context, input UploadInput) (*model.Document, error) {
	if strings.TrimSpace(input.StoreID) == "" {
		return nil, fmt.Errorf("%w: store id is empty", model.ErrInvalidArgument)
	}
	if len(input.Data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", model.ErrInvalidArgument)
	}
	if len(input.Data) > model.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", model.ErrPayloadTooLarge, len(input.Data), model.MaxUploadBytes)
	}

	mimeType := strings.TrimSpace(input.MIMEType)
	if mimeType == "" {
		mimeType = mimetype.Detect(input.Data).String()
	}
	if !model.SupportedMIMEType(mimeType) {
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedType, mimeType)
	}

	if err := model.ValidateMetadata(input.Metadata); err != nil {
		return nil, err
	}

	chunking := t.defaultChunking
	if input.Chunking != nil {
		if err := input.Chunking.Validate(); err != nil {
			return nil, err
		}
		chunking = *input.Chunking
	}

	doc, err := t.svc.UploadDocument(ctx, model.UploadRequest{
		StoreID:     input.StoreID,
		DisplayName: strings.TrimSpace(input.DisplayName),
		MIMEType:    mimeType,
		Data:        input.Data,
		Metadata:    input.Metadata,
		Chunking:    chunking,
	})
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.deleted, doc.ID)
	t.docs[doc.ID] = *doc
	out := *doc
	return &out, nil
}

// RefreshStatus re-queries one document. Transient service failures keep the
// last known state and are reported only in the log; a refresh result older
// than the local view is discarded, and a refresh racing a completed delete
// is dropped entirely.
func (t *DocumentTracker) RefreshStatus(ctx context.Context, documentID string) (*model.Document, error) {
	t.mu.Lock()
	local, known := t.docs[documentID]
	_, gone := t.deleted[documentID]
	t.mu.Unlock()
	if gone || !known {
		return nil, fmt.Errorf("%w: document %s", model.ErrNotFound, documentID)
	}

	remote, err := t.svc.GetDocument(ctx, documentID)
	if err != nil {
		if isTransient(err) {
			log.Printf("refresh %s failed, keeping last known status: %v", documentID, err)
			out := local
			return &out, nil
		}
		if isNotFound(err) {
			// Removed remotely out of band; the service is authoritative.
			t.mu.Lock()
			delete(t.docs, documentID)
			t.deleted[documentID] = struct{}{}
			t.mu.Unlock()
		}
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, gone := t.deleted[documentID]; gone {
		return nil, fmt.Errorf("%w: document %s", model.ErrNotFound, documentID)
	}
	current, ok := t.docs[documentID]
	if ok && remote.UpdatedAt.Before(current.UpdatedAt) {
		out := current
		return &out, nil
	}
	t.docs[documentID] = *remote
	out := *remote
	return &out, nil
}

// RefreshAll re-queries every document of a store and merges the result
// under the same monotonic and tombstone guards. On a transient failure the
// last known snapshot is returned unchanged.
func (t *DocumentTracker) RefreshAll(ctx context.Context, storeID string) ([]model.Document, error) {
	remote, err := t.svc.ListDocuments(ctx, storeID)
	if err != nil {
		if isTransient(err) {
			log.Printf("refresh store %s failed, keeping last known state: %v", storeID, err)
			return t.Snapshot(storeID), nil
		}
		return nil, err
	}

	t.mu.Lock()
	seen := make(map[string]struct{}, len(remote))
	for _, doc := range remote {
		seen[doc.ID] = struct{}{}
		if _, gone := t.deleted[doc.ID]; gone {
			continue
		}
		if current, ok := t.docs[doc.ID]; ok && doc.UpdatedAt.Before(current.UpdatedAt) {
			continue
		}
		t.docs[doc.ID] = doc
	}
	// Anything the service no longer reports for this store is gone.
	for id, doc := range t.docs {
		if doc.StoreID != storeID {
			continue
		}
		if _, ok := seen[id]; !ok {
			delete(t.docs, id)
			t.deleted[id] = struct{}{}
		}
	}
	t.mu.Unlock()

	return t.Snapshot(storeID), nil
}

// ListFilter narrows a listing; zero values mean "no constraint".
type ListFilter struct {
	StoreID    string
	Status     model.DocumentStatus
	SearchTerm string
}

type SortField string

const (
	SortByUploadTime SortField = "uploadTime"
	SortByName       SortField = "name"
	SortBySize       SortField = "size"
)

type ListSort struct {
	By        SortField
	Ascending bool
}

// DocumentPage is one page of a filtered, sorted listing.
type DocumentPage struct {
	Documents  []model.Document `json:"documents"`
	Page       int              `json:"page"`
	TotalPages int              `json:"total_pages"`
	Total      int              `json:"total"`
}

// List returns a filtered/sorted snapshot of local state in pages of 20.
// It never touches the network.
func (t *DocumentTracker) List(filter ListFilter, sortBy ListSort, page int) (*DocumentPage, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page %d", model.ErrInvalidArgument, page)
	}

	term := strings.ToLower(strings.TrimSpace(filter.SearchTerm))
	var matched []model.Document
	t.mu.Lock()
	for _, doc := range t.docs {
		if filter.StoreID != "" && doc.StoreID != filter.StoreID {
			continue
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(doc.DisplayName), term) {
			continue
		}
		matched = append(matched, doc)
	}
	t.mu.Unlock()

	sortDocuments(matched, sortBy)

	total := len(matched)
	totalPages := (total + ListPageSize - 1) / ListPageSize
	if totalPages == 0 {
		totalPages = 1
	}
	start := (page - 1) * ListPageSize
	if start > total {
		start = total
	}
	end := start + ListPageSize
	if end > total {
		end = total
	}

	return &DocumentPage{
		Documents:  matched[start:end],
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
	}, nil
}

// Delete removes a document. The external delete must succeed before local
// state changes; deleting an id that is already absent is a no-op success.
func (t *DocumentTracker) Delete(ctx context.Context, documentID string) error {
	t.mu.Lock()
	_, known := t.docs[documentID]
	t.mu.Unlock()
	if !known {
		return nil
	}

	if err := t.svc.DeleteDocument(ctx, documentID); err != nil && !isNotFound(err) {
		return err
	}

	t.mu.Lock()
	delete(t.docs, documentID)
	t.deleted[documentID] = struct{}{}
	t.mu.Unlock()
	return nil
}

// Get returns the local view of one document.
func (t *DocumentTracker) Get(documentID string) (*model.Document, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	doc, ok := t.docs[documentID]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", model.ErrNotFound, documentID)
	}
	out := doc
	return &out, nil
}

// Snapshot returns the local documents of one store, upload time ascending.
func (t *DocumentTracker) Snapshot(storeID string) []model.Document {
	t.mu.Lock()
	var docs []model.Document
	for _, doc := range t.docs {
		if doc.StoreID == storeID {
			docs = append(docs, doc)
		}
	}
	t.mu.Unlock()
	sortDocuments(docs, ListSort{By: SortByUploadTime, Ascending: true})
	return docs
}

// CountByStatus returns how many local documents of the store have the given
// status.
func (t *DocumentTracker) CountByStatus(storeID string, status model.DocumentStatus) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, doc := range t.docs {
		if doc.StoreID == storeID && doc.Status == status {
			count++
		}
	}
	return count
}

// ForgetStore drops all local documents of a deleted store.
func (t *DocumentTracker) ForgetStore(storeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, doc := range t.docs {
		if doc.StoreID == storeID {
			delete(t.docs, id)
			t.deleted[id] = struct{}{}
		}
	}
}

func sortDocuments(docs []model.Document, by ListSort) {
	less := func(i, j int) bool { return docs[i].CreatedAt.Before(docs[j].CreatedAt) }
	switch by.By {
	case SortByName:
		less = func(i, j int) bool {
			return strings.ToLower(docs[i].DisplayName) < strings.ToLower(docs[j].DisplayName)
		}
	case SortBySize:
		less = func(i, j int) bool { return docs[i].SizeBytes < docs[j].SizeBytes }
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if by.Ascending {
			return less(i, j)
		}
		return less(j, i)
	})
}
