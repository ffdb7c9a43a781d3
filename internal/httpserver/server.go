package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/PratikDhanave/audit-sync-monitor/internal/auth"
	"github.com/PratikDhanave/audit-sync-monitor/internal/config"
	"github.com/PratikDhanave/audit-sync-monitor/internal/handlers"
	"github.com/PratikDhanave/audit-sync-monitor/internal/ledger"
	"github.com/PratikDhanave/audit-sync-monitor/internal/store"
)

// Deps are the components the routes serve from.
type Deps struct {
	Store     store.LogStore
	Ledger    *ledger.Ledger
	Collector handlers.Collector
	Provider  handlers.Provider
	// Live is mounted at /api/live when set.
	Live   http.Handler
	Logger *slog.Logger
}

// NewRouter wires public endpoints and authenticated APIs.
// Public: /health, /ready, /api/dashboard, /api/metrics, /api/records/:status, /api/ledger, /api/live
// Authenticated: /api/collect-data, /api/queue/*, /api/resync
func NewRouter(cfg config.Config, d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := cfg.Location()
	if err != nil {
		loc = time.Local
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the sync log is reachable and readable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := d.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	handlers.RegisterDashboardRoutes(r, d.Collector, d.Store, logger)
	handlers.RegisterMetricRoutes(r, d.Store, loc, logger)
	handlers.RegisterRecordRoutes(r, d.Provider)
	handlers.RegisterLedgerRoutes(r, d.Ledger)
	if d.Live != nil {
		r.GET("/api/live", gin.WrapH(d.Live))
	}

	// Operator actions change remote or local state and need X-API-Key.
	authGroup := r.Group("/")
	authGroup.Use(auth.APIKeyMiddleware(cfg.APIKeys))

	handlers.RegisterCollectRoutes(authGroup, d.Collector, logger)
	handlers.RegisterQueueRoutes(authGroup, d.Provider)

	return r
}

// requestLogger stamps X-Request-ID and logs one line per request.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header("X-Request-ID", reqID)

		c.Next()

		logger.Info("http request",
			"request_id", reqID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client", auth.Client(c),
		)
	}
}
