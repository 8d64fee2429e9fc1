package model

// UploadRequest is a validated upload handed to the retrieval service.
type UploadRequest struct {
	StoreID     string
	DisplayName string
	MIMEType    string
	Data        []byte
	Metadata    []MetadataEntry
	Chunking    ChunkingConfig
}

// ChatTurn is one prior conversation turn passed as generation context.
type ChatTurn struct {
	Role    string
	Content string
}

// GenerateRequest scopes one grounded-generation call. StoreID grounding and
// WebSearch grounding are mutually exclusive per call.
type GenerateRequest struct {
	Query     string
	StoreID   string
	WebSearch bool
	History   []ChatTurn
}

// GenerateResult is the answer text plus the citations derived from the
// response's grounding metadata, in attribution order.
type GenerateResult struct {
	Text      string
	Citations []Citation
}
