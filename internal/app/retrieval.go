package app

import (
	"context"

	"groundchat/internal/model"
)

// RetrievalService is the single point of contact with the managed
// retrieval/generation API. The core only requires stable opaque ids,
// monotonic UpdatedAt per document, and grounding metadata attributable to
// documents; it never assumes a particular transport. Implemented by
// ai.FileSearchClient and by in-memory fakes in tests.
type RetrievalService interface {
	CreateStore(ctx context.Context, displayName string) (*model.Store, error)
	ListStores(ctx context.Context) ([]model.Store, error)
	DeleteStore(ctx context.Context, storeID string) error

	UploadDocument(ctx context.Context, req model.UploadRequest) (*model.Document, error)
	GetDocument(ctx context.Context, documentID string) (*model.Document, error)
	ListDocuments(ctx context.Context, storeID string) ([]model.Document, error)
	DeleteDocument(ctx context.Context, documentID string) error

	GenerateGrounded(ctx context.Context, req model.GenerateRequest) (*model.GenerateResult, error)
}
