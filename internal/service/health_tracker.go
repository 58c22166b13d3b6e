package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/metrics"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
	"go.uber.org/zap"
)

// MetricSource is the backend side of the health tracker
type MetricSource interface {
	Latest(ctx context.Context) model.HealthMetrics
	Create(ctx context.Context, patch map[string]any) (model.HealthMetrics, error)
	Patch(ctx context.Context, id model.FlexID, patch map[string]any) (model.HealthMetrics, error)
}

// HealthTracker holds the latest health metrics snapshot
type HealthTracker struct {
	source  MetricSource
	audit   *audit.Logger
	metrics *metrics.PortalMetrics
	logger  *zap.Logger

	mu       sync.Mutex
	snapshot model.HealthMetrics
	loaded   bool
	loadSeq  uint64
	onChange ChangeFunc
}

// NewHealthTracker creates a tracker with an empty snapshot
func NewHealthTracker(source MetricSource, auditLogger *audit.Logger, m *metrics.PortalMetrics, logger *zap.Logger) *HealthTracker {
	return &HealthTracker{
		source:  source,
		audit:   auditLogger,
		metrics: m,
		logger:  logger,
	}
}

// OnChange registers the mutation hook
func (h *HealthTracker) OnChange(fn ChangeFunc) {
	h.mu.Lock()
	h.onChange = fn
	h.mu.Unlock()
}

// Snapshot returns the current metrics
func (h *HealthTracker) Snapshot() model.HealthMetrics {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot
}

// Load fetches the latest snapshot. A read failure leaves an empty snapshot.
func (h *HealthTracker) Load(ctx context.Context) model.HealthMetrics {
	h.mu.Lock()
	h.loadSeq++
	seq := h.loadSeq
	h.mu.Unlock()

	latest := h.source.Latest(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	if seq != h.loadSeq {
		h.metrics.ObserveStaleResponse("health_metrics")
		return h.snapshot
	}
	h.snapshot = latest
	h.loaded = true
	return latest
}

// Update saves one metric edit. The first edit creates the record; later
// edits patch it. A tracker that has never loaded reads the latest record
// first so an existing one is patched. The snapshot is reloaded after a
// successful write.
func (h *HealthTracker) Update(ctx context.Context, metric string, values map[string]string) (model.HealthMetrics, error) {
	patch, err := model.BuildMetricPatch(metric, values)
	if err != nil {
		return model.HealthMetrics{}, err
	}

	h.mu.Lock()
	loaded := h.loaded
	h.mu.Unlock()
	if !loaded {
		h.Load(ctx)
	}

	h.mu.Lock()
	id := h.snapshot.ID
	h.mu.Unlock()

	var saved model.HealthMetrics
	op := audit.OperationUpdate
	if id.IsZero() {
		op = audit.OperationCreate
		saved, err = h.source.Create(ctx, patch)
	} else {
		saved, err = h.source.Patch(ctx, id, patch)
	}

	resourceID := id.String()
	if resourceID == "" {
		resourceID = saved.ID.String()
	}
	h.audit.Log(ctx, auditEntry(op, resourceID, metric, err))
	if err != nil {
		h.logger.Error("failed to save health metrics",
			zap.String("metric", metric),
			zap.Bool("create", id.IsZero()),
			zap.Error(err),
		)
		return model.HealthMetrics{}, fmt.Errorf("failed to save %s: %w", metric, err)
	}

	h.logger.Info("health metrics saved", zap.String("metric", metric), zap.Int("fields", len(patch)))

	h.mu.Lock()
	h.snapshot = saved
	h.loaded = true
	h.mu.Unlock()
	refreshed := h.Load(ctx)
	if refreshed.ID.IsZero() && !saved.ID.IsZero() {
		h.mu.Lock()
		h.snapshot = saved
		h.mu.Unlock()
		refreshed = saved
	}

	h.mu.Lock()
	notify := h.onChange
	h.mu.Unlock()
	if notify != nil {
		notify(ChangeMetrics)
	}
	return refreshed, nil
}

func auditEntry(op audit.OperationType, resourceID, metric string, err error) audit.AuditLog {
	entry := audit.AuditLog{
		OperationType:  op,
		ResourceType:   audit.ResourceHealthMetrics,
		ResourceID:     resourceID,
		AdditionalData: map[string]interface{}{"metric": metric},
	}
	if err != nil {
		entry.Outcome = audit.OutcomeFailure
		entry.Error = err.Error()
	}
	return entry
}
