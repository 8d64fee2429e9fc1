package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"groundchat/internal/app"
	"groundchat/internal/transport/http/response"
)

type StoreHandler struct {
	registry *app.StoreRegistry
}

type CreateStoreRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}

func NewStoreHandler(registry *app.StoreRegistry) *StoreHandler {
	return &StoreHandler{registry: registry}
}

func (h *StoreHandler) List(c *gin.Context) {
	stores, err := h.registry.ListStores(c.Request.Context())
	if err != nil {
		respondDomainError(c, err, "list stores failed")
		return
	}

	var activeID string
	if active, ok := h.registry.ActiveStore(); ok {
		activeID = active.ID
	}
	response.OK(c, gin.H{
		"stores":          stores,
		"active_store_id": activeID,
	})
}

func (h *StoreHandler) Create(c *gin.Context) {
	var req CreateStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	store, err := h.registry.CreateStore(c.Request.Context(), req.DisplayName)
	if err != nil {
		respondDomainError(c, err, "create store failed")
		return
	}
	response.OK(c, store)
}

func (h *StoreHandler) Activate(c *gin.Context) {
	storeID := c.Param("id")
	if err := h.registry.SetActiveStore(storeID); err != nil {
		respondDomainError(c, err, "select store failed")
		return
	}
	response.OK(c, gin.H{"active_store_id": storeID})
}

func (h *StoreHandler) Delete(c *gin.Context) {
	storeID := c.Param("id")
	if err := h.registry.DeleteStore(c.Request.Context(), storeID); err != nil {
		respondDomainError(c, err, "delete store failed")
		return
	}
	response.OK(c, gin.H{"deleted_store_id": storeID})
}

func (h *StoreHandler) Stats(c *gin.Context) {
	storeID := c.Param("id")
	stats, err := h.registry.GetStoreStats(storeID)
	if err != nil {
		respondDomainError(c, err, "get store stats failed")
		return
	}
	response.OK(c, stats)
}
