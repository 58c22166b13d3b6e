package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/metrics"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
	"go.uber.org/zap"
)

var (
	ErrMedicationNotFound  = errors.New("medication not found")
	ErrMedicationCompleted = errors.New("medication course is already completed")
)

// MedicationSource is the backend side of the medication board
type MedicationSource interface {
	Today(ctx context.Context) []model.Medication
	Stats(ctx context.Context) model.MedicationStats
	MarkAsTaken(ctx context.Context, id model.FlexID, notes string) error
	Add(ctx context.Context, input model.MedicationInput) (model.Medication, error)
	Update(ctx context.Context, id model.FlexID, input model.MedicationInput) (model.Medication, error)
	Delete(ctx context.Context, id model.FlexID) error
}

// MedicationBoard holds today's medication reminders of one session
type MedicationBoard struct {
	source  MedicationSource
	audit   *audit.Logger
	metrics *metrics.PortalMetrics
	logger  *zap.Logger

	mu       sync.Mutex
	items    []model.Medication
	stats    model.MedicationStats
	loaded   bool
	loadSeq  uint64
	statsSeq uint64
	tokens   recordTokens
	onChange ChangeFunc
}

// NewMedicationBoard creates an empty board
func NewMedicationBoard(source MedicationSource, auditLogger *audit.Logger, m *metrics.PortalMetrics, logger *zap.Logger) *MedicationBoard {
	return &MedicationBoard{
		source:  source,
		audit:   auditLogger,
		metrics: m,
		logger:  logger,
		items:   []model.Medication{},
		tokens:  newRecordTokens(),
	}
}

// OnChange registers the mutation hook
func (b *MedicationBoard) OnChange(fn ChangeFunc) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Items returns a copy of the current list
func (b *MedicationBoard) Items() []model.Medication {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Medication{}, b.items...)
}

// Loaded reports whether a load has completed
func (b *MedicationBoard) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

// Load fetches today's medications. A read failure leaves an empty list.
func (b *MedicationBoard) Load(ctx context.Context) []model.Medication {
	b.mu.Lock()
	b.loadSeq++
	seq := b.loadSeq
	snap := b.tokens.snapshot()
	b.mu.Unlock()

	list := b.source.Today(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if seq != b.loadSeq {
		b.metrics.ObserveStaleResponse("medications")
		b.logger.Debug("dropping superseded medication list", zap.Uint64("seq", seq))
		return append([]model.Medication{}, b.items...)
	}

	merged, stale := mergeLoaded(b.items, list, medicationKey, b.tokens, snap)
	if stale > 0 {
		b.metrics.ObserveStaleResponse("medication_record")
		b.logger.Debug("kept newer local medication records", zap.Int("count", stale))
	}
	b.items = merged
	b.loaded = true
	return append([]model.Medication{}, b.items...)
}

// Stats fetches adherence counters
func (b *MedicationBoard) Stats(ctx context.Context) model.MedicationStats {
	b.mu.Lock()
	b.statsSeq++
	seq := b.statsSeq
	b.mu.Unlock()

	stats := b.source.Stats(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if seq != b.statsSeq {
		b.metrics.ObserveStaleResponse("medication_stats")
		return b.stats
	}
	b.stats = stats
	return stats
}

// MarkAsTaken records one dose. Only the marked record changes locally, and
// only once the backend accepted the write.
func (b *MedicationBoard) MarkAsTaken(ctx context.Context, id string) (model.Medication, error) {
	b.ensureLoaded(ctx)

	b.mu.Lock()
	med, ok := b.findLocked(id)
	if !ok {
		b.mu.Unlock()
		return model.Medication{}, ErrMedicationNotFound
	}
	if !med.IsActive() {
		b.mu.Unlock()
		return med, ErrMedicationCompleted
	}
	b.tokens.bump(id)
	b.mu.Unlock()

	err := b.source.MarkAsTaken(ctx, med.ID, "")
	b.audit.Record(ctx, audit.OperationUpdate, audit.ResourceMedicationDose, id, err)
	if err != nil {
		b.logger.Error("failed to mark medication as taken",
			zap.String("medication_id", id),
			zap.Error(err),
		)
		return med, fmt.Errorf("failed to mark medication as taken: %w", err)
	}

	b.mu.Lock()
	b.tokens.bump(id)
	var updated model.Medication
	for i := range b.items {
		if b.items[i].ID.String() == id {
			b.items[i].ApplyTaken()
			updated = b.items[i]
			break
		}
	}
	notify := b.onChange
	b.mu.Unlock()

	b.logger.Info("medication marked as taken",
		zap.String("medication_id", id),
		zap.Int("remaining", updated.Remaining),
		zap.String("status", string(updated.Status)),
	)
	if notify != nil {
		notify(ChangeMedications)
	}
	return updated, nil
}

// Add validates input, creates the medication and reloads the list
func (b *MedicationBoard) Add(ctx context.Context, input model.MedicationInput) (model.Medication, error) {
	if err := input.Validate(); err != nil {
		return model.Medication{}, err
	}

	med, err := b.source.Add(ctx, input)
	b.audit.Record(ctx, audit.OperationCreate, audit.ResourceMedication, med.ID.String(), err)
	if err != nil {
		b.logger.Error("failed to add medication", zap.String("name", input.Name), zap.Error(err))
		return model.Medication{}, fmt.Errorf("failed to add medication: %w", err)
	}

	b.logger.Info("medication added", zap.String("medication_id", med.ID.String()), zap.String("name", med.Name))
	b.Load(ctx)
	b.notify(ChangeMedications)
	return med, nil
}

// Update validates input, saves it and reloads the list
func (b *MedicationBoard) Update(ctx context.Context, id string, input model.MedicationInput) (model.Medication, error) {
	if err := input.Validate(); err != nil {
		return model.Medication{}, err
	}
	b.ensureLoaded(ctx)

	b.mu.Lock()
	current, ok := b.findLocked(id)
	if !ok {
		b.mu.Unlock()
		return model.Medication{}, ErrMedicationNotFound
	}
	b.tokens.bump(id)
	b.mu.Unlock()

	med, err := b.source.Update(ctx, current.ID, input)
	b.audit.Record(ctx, audit.OperationUpdate, audit.ResourceMedication, id, err)
	if err != nil {
		b.logger.Error("failed to update medication", zap.String("medication_id", id), zap.Error(err))
		return model.Medication{}, fmt.Errorf("failed to update medication: %w", err)
	}

	b.mu.Lock()
	b.tokens.bump(id)
	b.mu.Unlock()

	b.logger.Info("medication updated", zap.String("medication_id", id))
	b.Load(ctx)
	b.notify(ChangeMedications)
	return med, nil
}

// Delete removes the medication once the backend confirmed it
func (b *MedicationBoard) Delete(ctx context.Context, id string) error {
	b.ensureLoaded(ctx)

	b.mu.Lock()
	med, ok := b.findLocked(id)
	if !ok {
		b.mu.Unlock()
		return ErrMedicationNotFound
	}
	b.tokens.bump(id)
	b.mu.Unlock()

	err := b.source.Delete(ctx, med.ID)
	b.audit.Record(ctx, audit.OperationDelete, audit.ResourceMedication, id, err)
	if err != nil {
		b.logger.Error("failed to delete medication", zap.String("medication_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete medication: %w", err)
	}

	b.mu.Lock()
	b.tokens.bump(id)
	kept := b.items[:0]
	for _, item := range b.items {
		if item.ID.String() != id {
			kept = append(kept, item)
		}
	}
	b.items = kept
	b.mu.Unlock()

	b.logger.Info("medication deleted", zap.String("medication_id", id))
	b.notify(ChangeMedications)
	return nil
}

// ensureLoaded reads the list once for a board that has not loaded yet, so
// ids from a previous page view resolve after a session resume
func (b *MedicationBoard) ensureLoaded(ctx context.Context) {
	if !b.Loaded() {
		b.Load(ctx)
	}
}

func (b *MedicationBoard) findLocked(id string) (model.Medication, bool) {
	for _, item := range b.items {
		if item.ID.String() == id {
			return item, true
		}
	}
	return model.Medication{}, false
}

func (b *MedicationBoard) notify(change Change) {
	b.mu.Lock()
	fn := b.onChange
	b.mu.Unlock()
	if fn != nil {
		fn(change)
	}
}

func medicationKey(m model.Medication) string {
	return m.ID.String()
}
