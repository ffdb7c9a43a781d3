package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/audit-sync-monitor/internal/models"
)

// Provider is the subset of the remote client the passthrough routes use.
type Provider interface {
	Records(ctx context.Context, status models.Status) (json.RawMessage, error)
	QueueSize(ctx context.Context) (json.RawMessage, error)
	ClearQueue(ctx context.Context, ids []json.RawMessage) (json.RawMessage, error)
	Resync(ctx context.Context, id json.RawMessage) (json.RawMessage, error)
}

// RegisterRecordRoutes registers GET /api/records/:status, a read-only view of
// what the provider currently reports for one status.
func RegisterRecordRoutes(r gin.IRoutes, p Provider) {
	r.GET("/api/records/:status", func(c *gin.Context) {
		status, err := models.ParseStatus(c.Param("status"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		body, err := p.Records(c.Request.Context(), status)
		if err != nil {
			providerError(c, "Error fetching records", err)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
	})
}

type clearQueueRequest struct {
	IDs []json.RawMessage `json:"ids"`
}

type resyncRequest struct {
	ID json.RawMessage `json:"id"`
}

// RegisterQueueRoutes registers the provider queue operations.
//
// GET  /api/queue/status              provider body unchanged
// POST /api/queue/clear  {"ids":[...]} {"success":true,"result":...}
// POST /api/resync       {"id":...}    {"success":true,"result":...}
func RegisterQueueRoutes(r gin.IRoutes, p Provider) {
	r.GET("/api/queue/status", func(c *gin.Context) {
		body, err := p.QueueSize(c.Request.Context())
		if err != nil {
			providerError(c, "Error fetching queue status", err)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
	})

	r.POST("/api/queue/clear", func(c *gin.Context) {
		var req clearQueueRequest
		if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "ids must be a non-empty array"})
			return
		}
		body, err := p.ClearQueue(c.Request.Context(), req.IDs)
		if err != nil {
			providerError(c, "Error clearing queue", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "result": body})
	})

	r.POST("/api/resync", func(c *gin.Context) {
		var req resyncRequest
		if err := c.ShouldBindJSON(&req); err != nil || isBlankJSON(req.ID) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "id is required"})
			return
		}
		body, err := p.Resync(c.Request.Context(), req.ID)
		if err != nil {
			providerError(c, "Error resyncing record", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "result": body})
	})
}

func isBlankJSON(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) == 0 || string(v) == "null" || string(v) == `""`
}
