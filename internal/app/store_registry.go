package app

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"groundchat/internal/model"
)

// StoreRegistry tracks the known retrieval stores and which one is active
// for the session. Switching the active store is a pure local pointer
// change; only listing, creation and deletion touch the service.
type StoreRegistry struct {
	svc            RetrievalService
	tracker        *DocumentTracker
	softLimitBytes int64
	maxStores      int

	mu       sync.Mutex
	stores   map[string]model.Store
	activeID string
}

func NewStoreRegistry(svc RetrievalService, tracker *DocumentTracker, softLimitBytes int64) *StoreRegistry {
	return &StoreRegistry{
		svc:            svc,
		tracker:        tracker,
		softLimitBytes: softLimitBytes,
		maxStores:      model.MaxStoresPerAccount,
		stores:         make(map[string]model.Store),
	}
}

// ListStores fetches the account's stores and replaces the local registry.
// Failures are returned unchanged (already taxonomy-wrapped by the client)
// so the caller can retry.
func (r *StoreRegistry) ListStores(ctx context.Context) ([]model.Store, error) {
	stores, err := r.svc.ListStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	sort.SliceStable(stores, func(i, j int) bool {
		return stores[i].CreatedAt.Before(stores[j].CreatedAt)
	})

	r.mu.Lock()
	r.stores = make(map[string]model.Store, len(stores))
	for _, store := range stores {
		r.stores[store.ID] = store
	}
	if _, ok := r.stores[r.activeID]; !ok {
		r.activeID = ""
	}
	r.mu.Unlock()
	return stores, nil
}

// CreateStore creates a store with the given display name. The account
// quota is pre-checked against the local view; the service enforces it
// authoritatively and surfaces the same ErrQuotaExceeded.
func (r *StoreRegistry) CreateStore(ctx context.Context, displayName string) (*model.Store, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, fmt.Errorf("%w: display name is empty", model.ErrInvalidArgument)
	}
	if len(name) > model.MaxStoreNameLength {
		return nil, fmt.Errorf("%w: display name exceeds %d characters", model.ErrInvalidArgument, model.MaxStoreNameLength)
	}

	r.mu.Lock()
	atQuota := len(r.stores) >= r.maxStores
	r.mu.Unlock()
	if atQuota {
		return nil, fmt.Errorf("%w: account limit of %d stores reached", model.ErrQuotaExceeded, r.maxStores)
	}

	store, err := r.svc.CreateStore(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	r.mu.Lock()
	r.stores[store.ID] = *store
	if r.activeID == "" {
		r.activeID = store.ID
	}
	r.mu.Unlock()
	return store, nil
}

// SetActiveStore switches the session's active store without contacting the
// service.
func (r *StoreRegistry) SetActiveStore(storeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stores[storeID]; !ok {
		return fmt.Errorf("%w: store %s", model.ErrNotFound, storeID)
	}
	r.activeID = storeID
	return nil
}

// ActiveStore returns the currently selected store, if any.
func (r *StoreRegistry) ActiveStore() (model.Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	store, ok := r.stores[r.activeID]
	return store, ok
}

// DeleteStore force-deletes a store and drops its tracked documents. The
// active pointer is cleared when it pointed at the deleted store.
func (r *StoreRegistry) DeleteStore(ctx context.Context, storeID string) error {
	r.mu.Lock()
	_, known := r.stores[storeID]
	r.mu.Unlock()
	if !known {
		return fmt.Errorf("%w: store %s", model.ErrNotFound, storeID)
	}

	if err := r.svc.DeleteStore(ctx, storeID); err != nil {
		return fmt.Errorf("delete store: %w", err)
	}

	r.mu.Lock()
	delete(r.stores, storeID)
	if r.activeID == storeID {
		r.activeID = ""
	}
	r.mu.Unlock()
	r.tracker.ForgetStore(storeID)
	return nil
}

// GetStoreStats aggregates the tracker's local view of one store. When
// storage exceeds the configured soft threshold the stats carry a warning
// flag; this is advisory, never an error.
func (r *StoreRegistry) GetStoreStats(storeID string) (*model.StoreStats, error) {
	r.mu.Lock()
	_, ok := r.stores[storeID]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: store %s", model.ErrNotFound, storeID)
	}

	stats := &model.StoreStats{
		StatusBreakdown: map[model.DocumentStatus]int{},
	}
	for _, doc := range r.tracker.Snapshot(storeID) {
		stats.DocumentCount++
		stats.StorageBytes += doc.SizeBytes
		stats.StatusBreakdown[doc.Status]++
	}
	if r.softLimitBytes > 0 && stats.StorageBytes > r.softLimitBytes {
		stats.SoftLimitExceeded = true
		log.Printf("store %s uses %d bytes, above the soft limit of %d", storeID, stats.StorageBytes, r.softLimitBytes)
	}
	return stats, nil
}
