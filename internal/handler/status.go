package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger is a dependency whose reachability is reported by the health check
type Pinger interface {
	Ping(ctx context.Context) error
}

// SessionCounter reports the number of live sessions
type SessionCounter interface {
	Len() int
}

// StatusHandler answers liveness probes
type StatusHandler struct {
	sessions SessionCounter
	store    Pinger
	logger   *zap.Logger
}

// NewStatusHandler creates a new StatusHandler. store may be nil.
func NewStatusHandler(sessions SessionCounter, store Pinger, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		sessions: sessions,
		store:    store,
		logger:   logger,
	}
}

// HealthResponse is the liveness probe body
type HealthResponse struct {
	Status    string    `json:"status"`
	Sessions  int       `json:"sessions"`
	Store     string    `json:"store,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// GetHealth reports service health
func (h *StatusHandler) GetHealth(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Sessions:  h.sessions.Len(),
		Timestamp: time.Now(),
	}

	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.logger.Error("snapshot store health check failed", zap.Error(err))
			resp.Status = "degraded"
			resp.Store = "unreachable"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		resp.Store = "ok"
	}

	c.JSON(http.StatusOK, resp)
}
