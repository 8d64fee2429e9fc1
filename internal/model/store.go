package model

import "time"

// Service-enforced account limits, checked locally before calling out.
const (
	MaxStoresPerAccount = 10
	MaxStoreNameLength  = 512
)

// Store is a named, service-managed collection of documents available for
// retrieval grounding. The ID is the opaque resource name assigned by the
// service; DocumentCount and StorageBytes are derived from the documents it
// holds.
type Store struct {
	ID            string    `json:"id"`
	DisplayName   string    `json:"display_name"`
	CreatedAt     time.Time `json:"created_at"`
	DocumentCount int       `json:"document_count"`
	StorageBytes  int64     `json:"storage_bytes"`
}

// StoreStats aggregates the local tracker's view of one store.
// SoftLimitExceeded is a non-fatal warning, not an error.
type StoreStats struct {
	DocumentCount     int                    `json:"document_count"`
	StorageBytes      int64                  `json:"storage_bytes"`
	StatusBreakdown   map[DocumentStatus]int `json:"status_breakdown"`
	SoftLimitExceeded bool                   `json:"soft_limit_exceeded"`
}
