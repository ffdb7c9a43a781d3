package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/audit-sync-monitor/internal/ledger"
)

// RegisterLedgerRoutes exposes the dedup ledger for diagnostics.
//
// GET /api/ledger[?ids=true]
func RegisterLedgerRoutes(r gin.IRoutes, l *ledger.Ledger) {
	r.GET("/api/ledger", func(c *gin.Context) {
		body := gin.H{"size": l.Len()}
		if c.Query("ids") == "true" {
			body["ids"] = l.IDs()
		}
		c.JSON(http.StatusOK, body)
	})
}
