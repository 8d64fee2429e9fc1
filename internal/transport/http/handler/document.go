package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"groundchat/internal/app"
	"groundchat/internal/model"
	"groundchat/internal/transport/http/response"
)

type DocumentHandler struct {
	tracker  *app.DocumentTracker
	registry *app.StoreRegistry
}

func NewDocumentHandler(tracker *app.DocumentTracker, registry *app.StoreRegistry) *DocumentHandler {
	return &DocumentHandler{tracker: tracker, registry: registry}
}

// Upload accepts a multipart form: a "file" part plus optional display_name,
// store_id (defaults to the active store), repeated metadata_key and
// metadata_value fields, and chunk_size / chunk_overlap overrides.
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if fileHeader.Size > model.MaxUploadBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge,
			fmt.Sprintf("file exceeds %d bytes", int64(model.MaxUploadBytes)))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "open uploaded file failed")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, model.MaxUploadBytes+1))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "read uploaded file failed")
		return
	}

	storeID := c.PostForm("store_id")
	if storeID == "" {
		active, ok := h.registry.ActiveStore()
		if !ok {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "no store selected")
			return
		}
		storeID = active.ID
	}

	displayName := c.PostForm("display_name")
	if displayName == "" {
		displayName = fileHeader.Filename
	}

	keys := c.PostFormArray("metadata_key")
	values := c.PostFormArray("metadata_value")
	if len(keys) != len(values) {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "metadata keys and values mismatch")
		return
	}
	metadata := make([]model.MetadataEntry, 0, len(keys))
	for i := range keys {
		metadata = append(metadata, model.MetadataEntry{Key: keys[i], Value: values[i]})
	}

	var chunking *model.ChunkingConfig
	if raw := c.PostForm("chunk_size"); raw != "" {
		size, convErr := strconv.Atoi(raw)
		if convErr != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid chunk_size")
			return
		}
		overlap := 0
		if rawOverlap := c.PostForm("chunk_overlap"); rawOverlap != "" {
			if overlap, convErr = strconv.Atoi(rawOverlap); convErr != nil {
				response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid chunk_overlap")
				return
			}
		}
		chunking = &model.ChunkingConfig{ChunkSizeTokens: size, ChunkOverlapTokens: overlap}
	}

	doc, err := h.tracker.Upload(c.Request.Context(), app.UploadInput{
		StoreID:     storeID,
		Data:        data,
		MIMEType:    fileHeader.Header.Get("Content-Type"),
		DisplayName: displayName,
		Metadata:    metadata,
		Chunking:    chunking,
	})
	if err != nil {
		respondDomainError(c, err, "upload document failed")
		return
	}
	response.OK(c, doc)
}

// List serves a filtered, sorted page of the local document view. Query
// params: store_id, status, q, sort (uploadTime|name|size), order (asc|desc),
// page.
func (h *DocumentHandler) List(c *gin.Context) {
	filter := app.ListFilter{
		StoreID:    c.Query("store_id"),
		Status:     model.DocumentStatus(c.Query("status")),
		SearchTerm: c.Query("q"),
	}

	sortBy := app.ListSort{By: app.SortByUploadTime}
	switch c.Query("sort") {
	case "", string(app.SortByUploadTime):
	case string(app.SortByName):
		sortBy.By = app.SortByName
	case string(app.SortBySize):
		sortBy.By = app.SortBySize
	default:
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid sort field")
		return
	}
	sortBy.Ascending = c.Query("order") != "desc"

	page := 1
	if raw := c.Query("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid page")
			return
		}
		page = parsed
	}

	result, err := h.tracker.List(filter, sortBy, page)
	if err != nil {
		respondDomainError(c, err, "list documents failed")
		return
	}
	response.OK(c, result)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.tracker.Get(c.Param("id"))
	if err != nil {
		respondDomainError(c, err, "get document failed")
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	documentID := c.Param("id")
	if err := h.tracker.Delete(c.Request.Context(), documentID); err != nil {
		respondDomainError(c, err, "delete document failed")
		return
	}
	response.OK(c, gin.H{"deleted_document_id": documentID})
}

// Refresh re-reads one document's processing state from the service.
func (h *DocumentHandler) Refresh(c *gin.Context) {
	doc, err := h.tracker.RefreshStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDomainError(c, err, "refresh document failed")
		return
	}
	response.OK(c, doc)
}

// RefreshAll re-reads the whole store listing from the service. store_id
// defaults to the active store.
func (h *DocumentHandler) RefreshAll(c *gin.Context) {
	storeID := c.Query("store_id")
	if storeID == "" {
		active, ok := h.registry.ActiveStore()
		if !ok {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "no store selected")
			return
		}
		storeID = active.ID
	}

	docs, err := h.tracker.RefreshAll(c.Request.Context(), storeID)
	if err != nil {
		respondDomainError(c, err, "refresh documents failed")
		return
	}
	response.OK(c, gin.H{"documents": docs})
}
