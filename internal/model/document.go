package model

import (
	"fmt"
	"strings"
	"time"
)

// DocumentStatus is the processing state reported by the retrieval service.
// Transitions are observed by polling, never driven locally.
type DocumentStatus string

const (
	StatusPending DocumentStatus = "PENDING"
	StatusActive  DocumentStatus = "ACTIVE"
	StatusFailed  DocumentStatus = "FAILED"
)

// Hard limits enforced client-side before any upload reaches the service.
const (
	MaxUploadBytes     = 100 << 20 // 100 MB
	MaxMetadataEntries = 20
)

// MetadataEntry is one custom key/value pair attached to a document.
// Order is preserved; keys must be unique per document.
type MetadataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Document is one uploaded file tracked through its processing lifecycle.
// It always belongs to exactly one store.
type Document struct {
	ID             string          `json:"id"`
	StoreID        string          `json:"store_id"`
	DisplayName    string          `json:"display_name"`
	MIMEType       string          `json:"mime_type"`
	SizeBytes      int64           `json:"size_bytes"`
	Status         DocumentStatus  `json:"status"`
	CustomMetadata []MetadataEntry `json:"custom_metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// supportedMIMETypes is the upload set the service accepts. Source-code
// files arrive as text/* subtypes and are allowed by prefix below.
var supportedMIMETypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
	"application/vnd.ms-excel":                                                  true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"application/json":       true,
	"application/javascript": true,
	"application/xml":        true,
}

// SupportedMIMEType reports whether the given MIME type may be uploaded.
// Parameters such as "; charset=utf-8" are ignored.
func SupportedMIMEType(mimeType string) bool {
	base := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(base, ";"); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	if base == "" {
		return false
	}
	if strings.HasPrefix(base, "text/") {
		return true
	}
	return supportedMIMETypes[base]
}

// ValidateMetadata checks the ≤20 entries / unique non-empty keys rules.
func ValidateMetadata(entries []MetadataEntry) error {
	if len(entries) > MaxMetadataEntries {
		return fmt.Errorf("%w: %d metadata entries exceeds limit of %d", ErrInvalidArgument, len(entries), MaxMetadataEntries)
	}
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		key := strings.TrimSpace(entry.Key)
		if key == "" {
			return fmt.Errorf("%w: metadata key is empty", ErrInvalidArgument)
		}
		if seen[key] {
			return fmt.Errorf("%w: duplicate metadata key %q", ErrInvalidArgument, key)
		}
		seen[key] = true
	}
	return nil
}
