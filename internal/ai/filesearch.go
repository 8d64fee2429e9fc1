// Package ai implements the client for the managed retrieval and grounded
// generation API. The core talks to it only through the interface declared
// in internal/app, so nothing outside this package knows the wire format.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"groundchat/internal/model"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// FileSearchClient talks to the file search store and generation endpoints.
// Every call is bounded by the configured timeout.
type FileSearchClient struct {
	httpClient *http.Client
	cfg        Config
}

func NewFileSearchClient(cfg Config) *FileSearchClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &FileSearchClient{
		httpClient: &http.Client{},
		cfg:        cfg,
	}
}

func (c *FileSearchClient) CreateStore(ctx context.Context, displayName string) (*model.Store, error) {
	var created wireStore
	body := map[string]string{"displayName": displayName}
	if err := c.doJSON(ctx, http.MethodPost, c.cfg.BaseURL+"/v1beta/fileSearchStores", body, &created); err != nil {
		return nil, err
	}
	store := created.toModel()
	return &store, nil
}

func (c *FileSearchClient) ListStores(ctx context.Context) ([]model.Store, error) {
	var stores []model.Store
	pageToken := ""
	for {
		url := c.cfg.BaseURL + "/v1beta/fileSearchStores?pageSize=20"
		if pageToken != "" {
			url += "&pageToken=" + pageToken
		}
		var page struct {
			FileSearchStores []wireStore `json:"fileSearchStores"`
			NextPageToken    string      `json:"nextPageToken"`
		}
		if err := c.doJSON(ctx, http.MethodGet, url, nil, &page); err != nil {
			return nil, err
		}
		for _, ws := range page.FileSearchStores {
			stores = append(stores, ws.toModel())
		}
		if page.NextPageToken == "" {
			return stores, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *FileSearchClient) DeleteStore(ctx context.Context, storeID string) error {
	url := c.cfg.BaseURL + "/v1beta/" + storeID + "?force=true"
	return c.doJSON(ctx, http.MethodDelete, url, nil, nil)
}

// UploadDocument pushes the file and its upload configuration in one
// multipart/related request. The service processes asynchronously; the
// returned document starts in PENDING.
func (c *FileSearchClient) UploadDocument(ctx context.Context, req model.UploadRequest) (*model.Document, error) {
	payload, contentType, err := buildUploadBody(req)
	if err != nil {
		return nil, fmt.Errorf("build upload body failed: %w", err)
	}

	url := c.cfg.BaseURL + "/upload/v1beta/" + req.StoreID + ":uploadToFileSearchStore"
	var op wireOperation
	if err := c.doRaw(ctx, http.MethodPost, url, payload, contentType, &op); err != nil {
		return nil, err
	}

	wd := op.document()
	if wd == nil || wd.Name == "" {
		return nil, fmt.Errorf("%w: upload response carries no document", model.ErrServiceUnavailable)
	}
	doc := wd.toModel(req.StoreID)
	if doc.Status == "" {
		doc.Status = model.StatusPending
	}
	// The service echoes little back while the operation is still running;
	// fill in what we already know from the request.
	if doc.DisplayName == "" {
		doc.DisplayName = req.DisplayName
	}
	if doc.MIMEType == "" {
		doc.MIMEType = req.MIMEType
	}
	if doc.SizeBytes == 0 {
		doc.SizeBytes = int64(len(req.Data))
	}
	if len(doc.CustomMetadata) == 0 {
		doc.CustomMetadata = req.Metadata
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	return &doc, nil
}

func (c *FileSearchClient) GetDocument(ctx context.Context, documentID string) (*model.Document, error) {
	var wd wireDocument
	if err := c.doJSON(ctx, http.MethodGet, c.cfg.BaseURL+"/v1beta/"+documentID, nil, &wd); err != nil {
		return nil, err
	}
	doc := wd.toModel(storeIDFromDocumentID(documentID))
	return &doc, nil
}

func (c *FileSearchClient) ListDocuments(ctx context.Context, storeID string) ([]model.Document, error) {
	var docs []model.Document
	pageToken := ""
	for {
		url := c.cfg.BaseURL + "/v1beta/" + storeID + "/documents?pageSize=20"
		if pageToken != "" {
			url += "&pageToken=" + pageToken
		}
		var page struct {
			Documents     []wireDocument `json:"documents"`
			NextPageToken string         `json:"nextPageToken"`
		}
		if err := c.doJSON(ctx, http.MethodGet, url, nil, &page); err != nil {
			return nil, err
		}
		for _, wd := range page.Documents {
			docs = append(docs, wd.toModel(storeID))
		}
		if page.NextPageToken == "" {
			return docs, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *FileSearchClient) DeleteDocument(ctx context.Context, documentID string) error {
	return c.doJSON(ctx, http.MethodDelete, c.cfg.BaseURL+"/v1beta/"+documentID, nil, nil)
}

// GenerateGrounded runs one generation call with exactly one grounding tool:
// the file search store, or web search when req.WebSearch is set.
func (c *FileSearchClient) GenerateGrounded(ctx context.Context, req model.GenerateRequest) (*model.GenerateResult, error) {
	contents := make([]wireContent, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := "user"
		if turn.Role == model.RoleAssistant {
			role = "model"
		}
		contents = append(contents, wireContent{Role: role, Parts: []wirePart{{Text: turn.Content}}})
	}
	contents = append(contents, wireContent{Role: "user", Parts: []wirePart{{Text: req.Query}}})

	var tool map[string]any
	if req.WebSearch {
		tool = map[string]any{"google_search": map[string]any{}}
	} else {
		tool = map[string]any{
			"file_search": map[string]any{
				"file_search_store_names": []string{req.StoreID},
			},
		}
	}

	body := map[string]any{
		"contents": contents,
		"tools":    []map[string]any{tool},
	}

	url := c.cfg.BaseURL + "/v1beta/models/" + c.cfg.Model + ":generateContent"
	var parsed wireGenerateResponse
	if err := c.doJSON(ctx, http.MethodPost, url, body, &parsed); err != nil {
		if errors.Is(err, model.ErrInvalidArgument) {
			// The service answered but refused the generation itself.
			return nil, fmt.Errorf("%w: %v", model.ErrGenerationFailed, err)
		}
		return nil, err
	}

	if len(parsed.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates returned", model.ErrGenerationFailed)
	}
	candidate := parsed.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, fmt.Errorf("%w: empty response text", model.ErrGenerationFailed)
	}

	return &model.GenerateResult{
		Text:      strings.TrimSpace(text.String()),
		Citations: candidate.citations(),
	}, nil
}

func (c *FileSearchClient) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request failed: %w", err)
		}
		reader = bytes.NewReader(raw)
		contentType = "application/json"
	}
	return c.do(ctx, method, url, reader, contentType, out)
}

func (c *FileSearchClient) doRaw(ctx context.Context, method, url string, body []byte, contentType string, out any) error {
	return c.do(ctx, method, url, bytes.NewReader(body), contentType, out)
}

func (c *FileSearchClient) do(ctx context.Context, method, url string, body io.Reader, contentType string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Goog-Api-Key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s", model.ErrTimeout, method, url)
		}
		return fmt.Errorf("%w: %v", model.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response failed: %v", model.ErrServiceUnavailable, err)
	}
	if err := mapStatus(resp.StatusCode, raw); err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: parse response failed: %v", model.ErrServiceUnavailable, err)
	}
	return nil
}

func mapStatus(status int, body []byte) error {
	if status < 300 {
		return nil
	}
	snippet := string(body)
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}
	switch status {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: status 400: %s", model.ErrInvalidArgument, snippet)
	case http.StatusNotFound:
		return fmt.Errorf("%w: status 404: %s", model.ErrNotFound, snippet)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: status 429: %s", model.ErrQuotaExceeded, snippet)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d: %s", model.ErrTimeout, status, snippet)
	default:
		return fmt.Errorf("%w: status %d: %s", model.ErrServiceUnavailable, status, snippet)
	}
}

// buildUploadBody assembles the multipart/related payload: a JSON part with
// the upload configuration followed by the file bytes.
func buildUploadBody(req model.UploadRequest) ([]byte, string, error) {
	meta := map[string]any{}
	if req.DisplayName != "" {
		meta["displayName"] = req.DisplayName
	}
	if len(req.Metadata) > 0 {
		entries := make([]map[string]string, 0, len(req.Metadata))
		for _, entry := range req.Metadata {
			entries = append(entries, map[string]string{"key": entry.Key, "stringValue": entry.Value})
		}
		meta["customMetadata"] = entries
	}
	if !req.Chunking.IsZero() {
		meta["chunkingConfig"] = map[string]any{
			"whiteSpaceConfig": map[string]int{
				"maxTokensPerChunk": req.Chunking.ChunkSizeTokens,
				"maxOverlapTokens":  req.Chunking.ChunkOverlapTokens,
			},
		}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	jsonHeader := textproto.MIMEHeader{}
	jsonHeader.Set("Content-Type", "application/json; charset=UTF-8")
	jsonPart, err := writer.CreatePart(jsonHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := jsonPart.Write(metaJSON); err != nil {
		return nil, "", err
	}

	fileHeader := textproto.MIMEHeader{}
	fileHeader.Set("Content-Type", req.MIMEType)
	filePart, err := writer.CreatePart(fileHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := filePart.Write(req.Data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	contentType := "multipart/related; boundary=" + writer.Boundary()
	return buf.Bytes(), contentType, nil
}

// storeIDFromDocumentID trims "/documents/<id>" off a document resource name.
func storeIDFromDocumentID(documentID string) string {
	if i := strings.Index(documentID, "/documents/"); i > 0 {
		return documentID[:i]
	}
	return ""
}

// int64String accepts both JSON numbers and the API's proto-style quoted
// int64 fields.
type int64String int64

func (v *int64String) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*v = 0
		return nil
	}
	parsed, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*v = int64String(parsed)
	return nil
}
