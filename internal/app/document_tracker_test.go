package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundchat/internal/model"
)

const testStoreID = "fileSearchStores/store-1"

func newTestTracker() (*DocumentTracker, *fakeRetrieval) {
	svc := newFakeRetrieval()
	return NewDocumentTracker(svc, model.ChunkingConfig{ChunkSizeTokens: 400, ChunkOverlapTokens: 40}), svc
}

func uploadTestDoc(t *testing.T, tracker *DocumentTracker, name string) *model.Document {
	t.Helper()
	doc, err := tracker.Upload(context.Background(), UploadInput{
		StoreID:     testStoreID,
		Data:        []byte("some text content"),
		MIMEType:    "text/plain",
		DisplayName: name,
	})
	require.NoError(t, err)
	return doc
}

func TestUploadStartsPending(t *testing.T) {
	tracker, _ := newTestTracker()

	doc := uploadTestDoc(t, tracker, "notes.txt")
	assert.Equal(t, model.StatusPending, doc.Status)
	assert.Equal(t, testStoreID, doc.StoreID)
	assert.Equal(t, int64(len("some text content")), doc.SizeBytes)

	assert.Equal(t, 1, tracker.CountByStatus(testStoreID, model.StatusPending))
	assert.Equal(t, 0, tracker.CountByStatus(testStoreID, model.StatusActive))
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	tracker, _ := newTestTracker()

	_, err := tracker.Upload(context.Background(), UploadInput{
		StoreID:  testStoreID,
		Data:     make([]byte, model.MaxUploadBytes+1),
		MIMEType: "text/plain",
	})
	require.ErrorIs(t, err, model.ErrPayloadTooLarge)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	tracker, _ := newTestTracker()

	_, err := tracker.Upload(context.Background(), UploadInput{
		StoreID:  testStoreID,
		Data:     []byte("PK\x03\x04"),
		MIMEType: "application/zip",
	})
	require.ErrorIs(t, err, model.ErrUnsupportedType)
}

func TestUploadSniffsMissingMIMEType(t *testing.T) {
	tracker, _ := newTestTracker()

	doc, err := tracker.Upload(context.Background(), UploadInput{
		StoreID:     testStoreID,
		Data:        []byte("plain readable text"),
		DisplayName: "notes.txt",
	})
	require.NoError(t, err)
	assert.Contains(t, doc.MIMEType, "text/plain")
}

func TestUploadValidatesMetadataAndChunking(t *testing.T) {
	tracker, _ := newTestTracker()
	ctx := context.Background()

	tooMany := make([]model.MetadataEntry, model.MaxMetadataEntries+1)
	for i := range tooMany {
		tooMany[i] = model.MetadataEntry{Key: fmt.Sprintf("k%d", i), Value: "v"}
	}
	_, err := tracker.Upload(ctx, UploadInput{
		StoreID:  testStoreID,
		Data:     []byte("text"),
		MIMEType: "text/plain",
		Metadata: tooMany,
	})
	require.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = tracker.Upload(ctx, UploadInput{
		StoreID:  testStoreID,
		Data:     []byte("text"),
		MIMEType: "text/plain",
		Chunking: &model.ChunkingConfig{ChunkSizeTokens: 200, ChunkOverlapTokens: 200},
	})
	require.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestRefreshStatusPicksUpCompletion(t *testing.T) {
	tracker, svc := newTestTracker()
	doc := uploadTestDoc(t, tracker, "notes.txt")

	remote := *doc
	remote.Status = model.StatusActive
	remote.UpdatedAt = doc.UpdatedAt.Add(time.Minute)
	svc.setDocument(remote)

	refreshed, err := tracker.RefreshStatus(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, refreshed.Status)
	assert.Equal(t, 1, tracker.CountByStatus(testStoreID, model.StatusActive))
}

func TestRefreshStatusDiscardsStaleResult(t *testing.T) {
	tracker, svc := newTestTracker()
	doc := uploadTestDoc(t, tracker, "notes.txt")

	// Advance the local view past the remote one.
	newer := *doc
	newer.Status = model.StatusActive
	newer.UpdatedAt = doc.UpdatedAt.Add(time.Minute)
	svc.setDocument(newer)
	_, err := tracker.RefreshStatus(context.Background(), doc.ID)
	require.NoError(t, err)

	stale := *doc
	stale.Status = model.StatusPending
	stale.UpdatedAt = doc.UpdatedAt.Add(-time.Minute)
	svc.setDocument(stale)

	refreshed, err := tracker.RefreshStatus(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, refreshed.Status, "older refresh result must not regress local state")
}

func TestRefreshStatusKeepsLastKnownOnTransientFailure(t *testing.T) {
	tracker, svc := newTestTracker()
	doc := uploadTestDoc(t, tracker, "notes.txt")

	svc.getDocFn = func(string) (*model.Document, error) {
		return nil, fmt.Errorf("%w: 503", model.ErrServiceUnavailable)
	}

	refreshed, err := tracker.RefreshStatus(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, refreshed.Status)
}

func TestRefreshStatusDropsRemotelyDeletedDocument(t *testing.T) {
	tracker, svc := newTestTracker()
	doc := uploadTestDoc(t, tracker, "notes.txt")

	svc.removeDocument(doc.ID)

	_, err := tracker.RefreshStatus(context.Background(), doc.ID)
	require.ErrorIs(t, err, model.ErrNotFound)

	_, err = tracker.Get(doc.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	tracker, _ := newTestTracker()
	doc := uploadTestDoc(t, tracker, "notes.txt")
	ctx := context.Background()

	require.NoError(t, tracker.Delete(ctx, doc.ID))
	require.NoError(t, tracker.Delete(ctx, doc.ID), "second delete must be a no-op")
	require.NoError(t, tracker.Delete(ctx, "never-existed"))

	_, err := tracker.Get(doc.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteTreatsRemoteNotFoundAsSuccess(t *testing.T) {
	tracker, svc := newTestTracker()
	doc := uploadTestDoc(t, tracker, "notes.txt")

	svc.deleteDocErr = fmt.Errorf("%w: already gone", model.ErrNotFound)
	require.NoError(t, tracker.Delete(context.Background(), doc.ID))

	_, err := tracker.Get(doc.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteWinsOverRacingRefresh(t *testing.T) {
	tracker, svc := newTestTracker()
	doc := uploadTestDoc(t, tracker, "notes.txt")
	ctx := context.Background()

	// A refresh reads the remote state, then the delete completes before the
	// refresh result is applied.
	svc.getDocFn = func(documentID string) (*model.Document, error) {
		require.NoError(t, tracker.Delete(ctx, documentID))
		out := *doc
		out.Status = model.StatusActive
		out.UpdatedAt = doc.UpdatedAt.Add(time.Minute)
		return &out, nil
	}

	_, err := tracker.RefreshStatus(ctx, doc.ID)
	require.ErrorIs(t, err, model.ErrNotFound)

	_, err = tracker.Get(doc.ID)
	require.ErrorIs(t, err, model.ErrNotFound, "refresh must not resurrect a deleted document")
}

func TestRefreshAllRemovesVanishedDocuments(t *testing.T) {
	tracker, svc := newTestTracker()
	kept := uploadTestDoc(t, tracker, "kept.txt")
	gone := uploadTestDoc(t, tracker, "gone.txt")

	svc.removeDocument(gone.ID)

	docs, err := tracker.RefreshAll(context.Background(), testStoreID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, kept.ID, docs[0].ID)

	_, err = tracker.Get(gone.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestRefreshAllKeepsSnapshotOnTransientFailure(t *testing.T) {
	tracker, svc := newTestTracker()
	uploadTestDoc(t, tracker, "a.txt")
	uploadTestDoc(t, tracker, "b.txt")

	svc.listDocsErr = fmt.Errorf("%w: 503", model.ErrServiceUnavailable)

	docs, err := tracker.RefreshAll(context.Background(), testStoreID)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestListFiltersSortsAndPaginates(t *testing.T) {
	tracker, _ := newTestTracker()
	for i := 0; i < 25; i++ {
		uploadTestDoc(t, tracker, fmt.Sprintf("doc-%02d.txt", i))
	}

	page1, err := tracker.List(ListFilter{StoreID: testStoreID}, ListSort{By: SortByUploadTime, Ascending: true}, 1)
	require.NoError(t, err)
	assert.Equal(t, 25, page1.Total)
	assert.Equal(t, 2, page1.TotalPages)
	require.Len(t, page1.Documents, ListPageSize)
	assert.Equal(t, "doc-00.txt", page1.Documents[0].DisplayName)

	page2, err := tracker.List(ListFilter{StoreID: testStoreID}, ListSort{By: SortByUploadTime, Ascending: true}, 2)
	require.NoError(t, err)
	assert.Len(t, page2.Documents, 5)

	overflow, err := tracker.List(ListFilter{StoreID: testStoreID}, ListSort{}, 3)
	require.NoError(t, err)
	assert.Empty(t, overflow.Documents)

	_, err = tracker.List(ListFilter{}, ListSort{}, 0)
	require.ErrorIs(t, err, model.ErrInvalidArgument)

	byNameDesc, err := tracker.List(ListFilter{StoreID: testStoreID}, ListSort{By: SortByName, Ascending: false}, 1)
	require.NoError(t, err)
	assert.Equal(t, "doc-24.txt", byNameDesc.Documents[0].DisplayName)

	searched, err := tracker.List(ListFilter{StoreID: testStoreID, SearchTerm: "DOC-07"}, ListSort{}, 1)
	require.NoError(t, err)
	require.Len(t, searched.Documents, 1)
	assert.Equal(t, "doc-07.txt", searched.Documents[0].DisplayName)

	pending, err := tracker.List(ListFilter{StoreID: testStoreID, Status: model.StatusActive}, ListSort{}, 1)
	require.NoError(t, err)
	assert.Empty(t, pending.Documents)
}
