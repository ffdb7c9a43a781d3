package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/audit-sync-monitor/internal/metrics"
	"github.com/PratikDhanave/audit-sync-monitor/internal/models"
	"github.com/PratikDhanave/audit-sync-monitor/internal/store"
)

// RegisterMetricRoutes registers the serving-path endpoint.
//
// GET /api/metrics?from=...&to=...
// - Both bounds optional and inclusive (RFC3339 or YYYY-MM-DD)
// - Returns the matching entries and their summary
func RegisterMetricRoutes(r gin.IRoutes, st store.LogStore, loc *time.Location, logger *slog.Logger) {
	r.GET("/api/metrics", func(c *gin.Context) {
		from, err := metrics.ParseBound(c.Query("from"), loc, false)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339 or YYYY-MM-DD"})
			return
		}
		to, err := metrics.ParseBound(c.Query("to"), loc, true)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339 or YYYY-MM-DD"})
			return
		}

		// Validate window to avoid confusing results.
		if from != nil && to != nil && from.After(*to) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be <= to"})
			return
		}

		entries, err := loadEntries(c.Request.Context(), st, logger, from, to)
		if err != nil {
			logger.Error("reading sync log", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching metrics", "details": err.Error()})
			return
		}
		if entries == nil {
			entries = []models.SyncEntry{}
		}

		c.JSON(http.StatusOK, gin.H{
			"metrics": entries,
			"summary": metrics.Summarize(entries, loc),
		})
	})
}
