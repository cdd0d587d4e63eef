package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"invoicing-service/internal/metrics"
)

// HealthHandler reports liveness plus dependency checks and the metrics
// snapshot.
type HealthHandler struct {
	db      *gorm.DB
	redis   *redis.Client
	metrics *metrics.Collector
	started time.Time
}

func NewHealthHandler(db *gorm.DB, redisClient *redis.Client, collector *metrics.Collector) *HealthHandler {
	return &HealthHandler{
		db:      db,
		redis:   redisClient,
		metrics: collector,
		started: time.Now(),
	}
}

// Health checks the process and its dependencies. Redis is optional, so
// a missing client reports "disabled" rather than failing the check.
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{}
	healthy := true

	dbStatus := "ok"
	if sqlDB, err := h.db.DB(); err != nil {
		dbStatus = err.Error()
		healthy = false
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = err.Error()
		healthy = false
	}
	checks["database"] = dbStatus

	redisStatus := "disabled"
	if h.redis != nil {
		redisStatus = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			redisStatus = err.Error()
			healthy = false
		}
	}
	checks["redis"] = redisStatus

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"success": healthy,
		"status":  map[bool]string{true: "healthy", false: "degraded"}[healthy],
		"uptime":  time.Since(h.started).String(),
		"checks":  checks,
	})
}

// Stats exposes the in-process metrics snapshot as JSON; Prometheus
// scrapes /metrics for the same numbers.
// GET /api/stats
func (h *HealthHandler) Stats(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"stats": h.metrics.Snapshot()})
}
