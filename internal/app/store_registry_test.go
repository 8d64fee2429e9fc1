package app

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundchat/internal/model"
)

func newTestRegistry(softLimit int64) (*StoreRegistry, *DocumentTracker, *fakeRetrieval) {
	svc := newFakeRetrieval()
	tracker := NewDocumentTracker(svc, model.ChunkingConfig{})
	return NewStoreRegistry(svc, tracker, softLimit), tracker, svc
}

func TestCreateStoreValidatesName(t *testing.T) {
	registry, _, _ := newTestRegistry(0)
	ctx := context.Background()

	_, err := registry.CreateStore(ctx, "   ")
	require.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = registry.CreateStore(ctx, strings.Repeat("x", model.MaxStoreNameLength+1))
	require.ErrorIs(t, err, model.ErrInvalidArgument)

	store, err := registry.CreateStore(ctx, strings.Repeat("x", model.MaxStoreNameLength))
	require.NoError(t, err)
	assert.NotEmpty(t, store.ID)
}

func TestCreateStoreEnforcesAccountQuota(t *testing.T) {
	registry, _, _ := newTestRegistry(0)
	ctx := context.Background()

	for i := 0; i < model.MaxStoresPerAccount; i++ {
		_, err := registry.CreateStore(ctx, fmt.Sprintf("store %d", i))
		require.NoError(t, err)
	}

	_, err := registry.CreateStore(ctx, "one too many")
	require.ErrorIs(t, err, model.ErrQuotaExceeded)
}

func TestFirstCreatedStoreBecomesActive(t *testing.T) {
	registry, _, _ := newTestRegistry(0)
	ctx := context.Background()

	first, err := registry.CreateStore(ctx, "first")
	require.NoError(t, err)
	_, err = registry.CreateStore(ctx, "second")
	require.NoError(t, err)

	active, ok := registry.ActiveStore()
	require.True(t, ok)
	assert.Equal(t, first.ID, active.ID)
}

func TestSetActiveStore(t *testing.T) {
	registry, _, _ := newTestRegistry(0)
	ctx := context.Background()

	_, err := registry.CreateStore(ctx, "first")
	require.NoError(t, err)
	second, err := registry.CreateStore(ctx, "second")
	require.NoError(t, err)

	require.NoError(t, registry.SetActiveStore(second.ID))
	active, ok := registry.ActiveStore()
	require.True(t, ok)
	assert.Equal(t, second.ID, active.ID)

	err = registry.SetActiveStore("fileSearchStores/unknown")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestListStoresOrdersByCreationTime(t *testing.T) {
	registry, _, svc := newTestRegistry(0)
	ctx := context.Background()

	// Created directly against the service, out of order.
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		_, err := svc.CreateStore(ctx, name)
		require.NoError(t, err)
	}

	stores, err := registry.ListStores(ctx)
	require.NoError(t, err)
	require.Len(t, stores, 3)
	for i := 1; i < len(stores); i++ {
		assert.False(t, stores[i].CreatedAt.Before(stores[i-1].CreatedAt))
	}
	assert.Equal(t, "charlie", stores[0].DisplayName)
}

func TestListStoresClearsStaleActivePointer(t *testing.T) {
	registry, _, svc := newTestRegistry(0)
	ctx := context.Background()

	store, err := registry.CreateStore(ctx, "short lived")
	require.NoError(t, err)
	_, ok := registry.ActiveStore()
	require.True(t, ok)

	// Deleted out of band; the next listing no longer contains it.
	require.NoError(t, svc.DeleteStore(ctx, store.ID))
	_, err = registry.ListStores(ctx)
	require.NoError(t, err)

	_, ok = registry.ActiveStore()
	assert.False(t, ok)
}

func TestDeleteStoreForgetsTrackedDocuments(t *testing.T) {
	registry, tracker, _ := newTestRegistry(0)
	ctx := context.Background()

	store, err := registry.CreateStore(ctx, "docs")
	require.NoError(t, err)

	doc, err := tracker.Upload(ctx, UploadInput{
		StoreID:  store.ID,
		Data:     []byte("content"),
		MIMEType: "text/plain",
	})
	require.NoError(t, err)

	require.NoError(t, registry.DeleteStore(ctx, store.ID))

	_, ok := registry.ActiveStore()
	assert.False(t, ok)
	assert.Empty(t, tracker.Snapshot(store.ID))
	_, err = tracker.Get(doc.ID)
	require.ErrorIs(t, err, model.ErrNotFound)

	err = registry.DeleteStore(ctx, store.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestGetStoreStats(t *testing.T) {
	registry, tracker, svc := newTestRegistry(10)
	ctx := context.Background()

	store, err := registry.CreateStore(ctx, "stats")
	require.NoError(t, err)

	doc, err := tracker.Upload(ctx, UploadInput{
		StoreID:  store.ID,
		Data:     []byte("enough bytes to cross the soft limit"),
		MIMEType: "text/plain",
	})
	require.NoError(t, err)

	remote := *doc
	remote.Status = model.StatusActive
	remote.UpdatedAt = doc.UpdatedAt.Add(time.Minute)
	svc.setDocument(remote)
	_, err = tracker.RefreshStatus(ctx, doc.ID)
	require.NoError(t, err)

	_, err = tracker.Upload(ctx, UploadInput{
		StoreID:  store.ID,
		Data:     []byte("still pending"),
		MIMEType: "text/plain",
	})
	require.NoError(t, err)

	stats, err := registry.GetStoreStats(store.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DocumentCount)
	assert.Equal(t, 1, stats.StatusBreakdown[model.StatusActive])
	assert.Equal(t, 1, stats.StatusBreakdown[model.StatusPending])
	assert.True(t, stats.SoftLimitExceeded)

	_, err = registry.GetStoreStats("fileSearchStores/unknown")
	require.ErrorIs(t, err, model.ErrNotFound)
}
