package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/audit-sync-monitor/internal/auth"
)

// RegisterCollectRoutes registers the manual ingestion trigger.
//
// POST /api/collect-data
// - Requires X-API-Key
// - Runs every status, including manual-only ones, in parallel
// - Durable: returns only after every cycle finished appending
func RegisterCollectRoutes(r gin.IRoutes, col Collector, logger *slog.Logger) {
	r.POST("/api/collect-data", func(c *gin.Context) {
		results := col.CollectNow(c.Request.Context())

		failed := 0
		for _, res := range results {
			if res.Err != nil {
				failed++
			}
		}
		logger.Info("manual collection finished",
			"client", auth.Client(c),
			"statuses", len(results),
			"failed", failed,
		)

		// 200 while at least one status went through; the per-status errors
		// are in the body.
		status := http.StatusOK
		if failed == len(results) && failed > 0 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{
			"success": status == http.StatusOK,
			"message": "Data collection completed",
			"results": viewCycles(results),
		})
	})
}
