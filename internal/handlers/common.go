package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/audit-sync-monitor/internal/models"
	"github.com/PratikDhanave/audit-sync-monitor/internal/remote"
	"github.com/PratikDhanave/audit-sync-monitor/internal/scheduler"
	"github.com/PratikDhanave/audit-sync-monitor/internal/store"
)

// Collector triggers ingestion cycles.
type Collector interface {
	RunPeriodic(ctx context.Context) []scheduler.CycleResult
	CollectNow(ctx context.Context) []scheduler.CycleResult
}

// cycleView is the JSON shape of one cycle outcome.
type cycleView struct {
	Status   models.Status     `json:"status"`
	NewCount int               `json:"count"`
	Entry    *models.SyncEntry `json:"entry,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func viewCycles(results []scheduler.CycleResult) []cycleView {
	out := make([]cycleView, 0, len(results))
	for _, r := range results {
		v := cycleView{Status: r.Status, Entry: r.Entry}
		if r.Entry != nil {
			v.NewCount = r.Entry.NewCount
		}
		if r.Err != nil {
			v.Error = r.Err.Error()
		}
		out = append(out, v)
	}
	return out
}

// loadEntries reads the log in [from, to]. A corrupt log is reported and read
// as empty so summaries degrade to zero instead of failing.
func loadEntries(ctx context.Context, st store.LogStore, logger *slog.Logger, from, to *time.Time) ([]models.SyncEntry, error) {
	entries, err := store.Window(ctx, st, from, to)
	if errors.Is(err, store.ErrCorrupt) {
		logger.Error("sync log unreadable, serving empty data", "error", err)
		return nil, nil
	}
	return entries, err
}

// providerError maps a remote failure onto the response, keeping the
// provider's body as details when it answered.
func providerError(c *gin.Context, msg string, err error) {
	details := err.Error()
	var se *remote.StatusError
	if errors.As(err, &se) && se.Body != "" {
		details = se.Body
	}
	c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": msg, "details": details})
}
