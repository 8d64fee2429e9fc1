package model

import "fmt"

// Chunking bounds accepted by the retrieval service.
const (
	MinChunkSizeTokens    = 100
	MaxChunkSizeTokens    = 2000
	MaxChunkOverlapTokens = 200
)

// ChunkingConfig controls how the service splits a document into passages.
// It applies to exactly the upload it was supplied with and cannot be
// changed afterwards.
type ChunkingConfig struct {
	ChunkSizeTokens    int `json:"chunk_size_tokens"`
	ChunkOverlapTokens int `json:"chunk_overlap_tokens"`
}

// Validate checks the service bounds: size in [100, 2000], overlap in
// [0, 200] and strictly below size.
func (c ChunkingConfig) Validate() error {
	if c.ChunkSizeTokens < MinChunkSizeTokens || c.ChunkSizeTokens > MaxChunkSizeTokens {
		return fmt.Errorf("%w: chunk size %d out of range [%d, %d]", ErrInvalidArgument, c.ChunkSizeTokens, MinChunkSizeTokens, MaxChunkSizeTokens)
	}
	if c.ChunkOverlapTokens < 0 || c.ChunkOverlapTokens > MaxChunkOverlapTokens {
		return fmt.Errorf("%w: chunk overlap %d out of range [0, %d]", ErrInvalidArgument, c.ChunkOverlapTokens, MaxChunkOverlapTokens)
	}
	if c.ChunkOverlapTokens >= c.ChunkSizeTokens {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", ErrInvalidArgument, c.ChunkOverlapTokens, c.ChunkSizeTokens)
	}
	return nil
}

// IsZero reports whether no chunking was supplied and defaults should apply.
func (c ChunkingConfig) IsZero() bool {
	return c.ChunkSizeTokens == 0 && c.ChunkOverlapTokens == 0
}
