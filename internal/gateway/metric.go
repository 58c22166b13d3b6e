package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
	"go.uber.org/zap"
)

const healthMetricsPath = "/api/health-metrics/"

// MetricGateway wraps the backend's health metric endpoints
type MetricGateway struct {
	client *Client
	logger *zap.Logger
}

// NewMetricGateway creates a new metric gateway
func NewMetricGateway(client *Client, logger *zap.Logger) *MetricGateway {
	return &MetricGateway{client: client, logger: logger}
}

// Latest returns the most recent vitals snapshot, zeroed when unavailable
func (g *MetricGateway) Latest(ctx context.Context) model.HealthMetrics {
	body, err := g.client.getJSON(ctx, "health_metrics.latest", healthMetricsPath+"latest/")
	if err != nil {
		g.logger.Warn("failed to fetch latest health metrics, showing empty snapshot", zap.Error(err))
		return model.HealthMetrics{}
	}
	return model.NormalizeHealthMetrics(body)
}

// Create stores the first snapshot for a patient
func (g *MetricGateway) Create(ctx context.Context, patch map[string]any) (model.HealthMetrics, error) {
	body, err := g.client.sendJSON(ctx, "health_metrics.create", http.MethodPost, healthMetricsPath, patch)
	if err != nil {
		return model.HealthMetrics{}, fmt.Errorf("failed to create health metrics: %w", err)
	}
	return model.NormalizeHealthMetrics(body), nil
}

// Patch updates part of an existing snapshot
func (g *MetricGateway) Patch(ctx context.Context, id model.FlexID, patch map[string]any) (model.HealthMetrics, error) {
	path := healthMetricsPath + url.PathEscape(id.String()) + "/"
	body, err := g.client.sendJSON(ctx, "health_metrics.patch", http.MethodPatch, path, patch)
	if err != nil {
		return model.HealthMetrics{}, fmt.Errorf("failed to update health metrics: %w", err)
	}
	return model.NormalizeHealthMetrics(body), nil
}
