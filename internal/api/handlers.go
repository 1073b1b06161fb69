// Package api wires up the Gin HTTP router with the client-facing KV
// surface (spec.md §4.5, §6), generalizing the teacher's handlers.go from a
// single flat store onto the Replica Manager's create/read/update/
// remove_replica primitives.
package api

import (
	"errors"
	"net/http"

	"adaptive-replication/internal/registry"
	"adaptive-replication/internal/replicamgr"
	"adaptive-replication/internal/rerr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler holds the Replica Manager injected from main.
type Handler struct {
	rm *replicamgr.Manager
}

// NewHandler creates a Handler.
func NewHandler(rm *replicamgr.Manager) *Handler {
	return &Handler{rm: rm}
}

// Register mounts the client-facing KV routes on r.
func (h *Handler) Register(r *gin.Engine) {
	kv := r.Group("/kv")
	kv.PUT("/:key", h.Create)
	kv.GET("/:key", h.Get)
	kv.POST("/:key", h.Update)
	kv.DELETE("/:key", h.Delete)
}

type createBody struct {
	Value    string                    `json:"value" binding:"required"`
	Strategy string                    `json:"strategy"`
	Params   *registry.StrategyParams `json:"params"`
}

// Create handles PUT /kv/:key
// Body: {"value": "<string>", "strategy": "<tag>", "params": {...}}
func (h *Handler) Create(c *gin.Context) {
	key := c.Param("key")
	reqID := uuid.NewString()

	var body createBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "request_id": reqID})
		return
	}
	params := registry.DefaultParams()
	if body.Params != nil {
		params = *body.Params
	}

	if err := h.rm.Create(c.Request.Context(), key, []byte(body.Value), body.Strategy, params); err != nil {
		writeError(c, err, reqID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "request_id": reqID})
}

type updateBody struct {
	Value string `json:"value" binding:"required"`
}

// Update handles POST /kv/:key
// Body: {"value": "<string>"}
func (h *Handler) Update(c *gin.Context) {
	key := c.Param("key")
	reqID := uuid.NewString()

	var body updateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "request_id": reqID})
		return
	}
	if err := h.rm.Update(c.Request.Context(), key, []byte(body.Value)); err != nil {
		writeError(c, err, reqID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "request_id": reqID})
}

// Get handles GET /kv/:key
func (h *Handler) Get(c *gin.Context) {
	key := c.Param("key")
	reqID := uuid.NewString()

	res, err := h.rm.Read(c.Request.Context(), key)
	if err != nil {
		writeError(c, err, reqID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": string(res.Value), "request_id": reqID})
}

// Delete handles DELETE /kv/:key — local eviction only (remove_replica).
func (h *Handler) Delete(c *gin.Context) {
	key := c.Param("key")
	reqID := uuid.NewString()

	if err := h.rm.RemoveReplica(c.Request.Context(), key); err != nil {
		writeError(c, err, reqID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": key, "request_id": reqID})
}

func writeError(c *gin.Context, err error, reqID string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, rerr.ErrNotFound), errors.Is(err, rerr.ErrNoReplica):
		status = http.StatusNotFound
	case errors.Is(err, rerr.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, rerr.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, rerr.ErrNoDCs):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error(), "request_id": reqID})
}
