package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
	"go.uber.org/zap"
)

// HealthHandler exposes the session's health metrics
type HealthHandler struct {
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{logger: logger}
}

// MetricsResponse is the metrics snapshot with its display label
type MetricsResponse struct {
	Metrics      model.HealthMetrics `json:"metrics"`
	HealthStatus string              `json:"health_status"`
}

func metricsResponse(m model.HealthMetrics) MetricsResponse {
	return MetricsResponse{Metrics: m, HealthStatus: model.HealthStatus(m.HealthScore)}
}

// GetMetrics reloads the latest metrics
func (h *HealthHandler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, metricsResponse(currentSession(c).Metrics.Load(c.Request.Context())))
}

// PostMetric edits one metric. The body maps field names to values; numbers
// and strings are both accepted.
func (h *HealthHandler) PostMetric(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		badRequest(c, err)
		return
	}

	values := make(map[string]string, len(body))
	for k, v := range body {
		values[k] = formString(v)
	}

	metric := c.Param("metric")
	saved, err := currentSession(c).Metrics.Update(c.Request.Context(), metric, values)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, metricsResponse(saved))
}

// formString renders a JSON value the way a form input would hold it
func formString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
