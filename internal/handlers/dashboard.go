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

const historyWindow = 24 * time.Hour

type currentView struct {
	NotProcessed int               `json:"notProcessed"`
	Failed       int               `json:"failed"`
	Operators    map[string]int    `json:"operators"`
	Errors       map[string]string `json:"errors,omitempty"`
}

// RegisterDashboardRoutes registers GET /api/dashboard.
//
// The call runs one periodic firing first, so "current" reports what that
// firing found new, then returns the last 24h of history.
func RegisterDashboardRoutes(r gin.IRoutes, col Collector, st store.LogStore, logger *slog.Logger) {
	r.GET("/api/dashboard", func(c *gin.Context) {
		ctx := c.Request.Context()

		cur := currentView{Operators: map[string]int{}}
		for _, res := range col.RunPeriodic(ctx) {
			if res.Err != nil {
				if cur.Errors == nil {
					cur.Errors = map[string]string{}
				}
				cur.Errors[string(res.Status)] = res.Err.Error()
				continue
			}
			if res.Entry == nil {
				continue
			}
			switch res.Status {
			case models.StatusNotProcessed:
				cur.NotProcessed = res.Entry.NewCount
			case models.StatusFailed:
				cur.Failed = res.Entry.NewCount
			}
			for op, n := range res.Entry.OperatorCounts {
				cur.Operators[op] += n
			}
		}

		all, err := loadEntries(ctx, st, logger, nil, nil)
		if err != nil {
			logger.Error("reading sync log", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching dashboard data", "details": err.Error()})
			return
		}

		now := time.Now()
		from := now.Add(-historyWindow)
		historical := metrics.FilterRange(all, &from, &now)

		c.JSON(http.StatusOK, gin.H{
			"current":      cur,
			"historical":   historical,
			"totalRecords": len(all),
		})
	})
}
