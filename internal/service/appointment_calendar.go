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
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrAppointmentCancelled = errors.New("appointment is already cancelled")
)

// AppointmentSource is the backend side of the calendar
type AppointmentSource interface {
	List(ctx context.Context) []model.Appointment
	Cancel(ctx context.Context, id model.FlexID) error
}

// AppointmentCalendar holds the patient's appointments
type AppointmentCalendar struct {
	source  AppointmentSource
	audit   *audit.Logger
	metrics *metrics.PortalMetrics
	logger  *zap.Logger

	mu       sync.Mutex
	items    []model.Appointment
	loadSeq  uint64
	tokens   recordTokens
	onChange ChangeFunc
}

// NewAppointmentCalendar creates an empty calendar
func NewAppointmentCalendar(source AppointmentSource, auditLogger *audit.Logger, m *metrics.PortalMetrics, logger *zap.Logger) *AppointmentCalendar {
	return &AppointmentCalendar{
		source:  source,
		audit:   auditLogger,
		metrics: m,
		logger:  logger,
		items:   []model.Appointment{},
		tokens:  newRecordTokens(),
	}
}

// OnChange registers the mutation hook
func (c *AppointmentCalendar) OnChange(fn ChangeFunc) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Load fetches the appointment list. A read failure leaves an empty list.
func (c *AppointmentCalendar) Load(ctx context.Context) []model.Appointment {
	c.mu.Lock()
	c.loadSeq++
	seq := c.loadSeq
	snap := c.tokens.snapshot()
	c.mu.Unlock()

	list := c.source.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.loadSeq {
		c.metrics.ObserveStaleResponse("appointments")
		return append([]model.Appointment{}, c.items...)
	}

	merged, stale := mergeLoaded(c.items, list, appointmentKey, c.tokens, snap)
	if stale > 0 {
		c.metrics.ObserveStaleResponse("appointment_record")
	}
	c.items = merged
	return append([]model.Appointment{}, c.items...)
}

// Items returns every appointment, cancelled ones included
func (c *AppointmentCalendar) Items() []model.Appointment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Appointment{}, c.items...)
}

// Upcoming returns the appointments still ahead of the patient
func (c *AppointmentCalendar) Upcoming() []model.Appointment {
	c.mu.Lock()
	defer c.mu.Unlock()
	upcoming := []model.Appointment{}
	for _, a := range c.items {
		if a.IsUpcoming() {
			upcoming = append(upcoming, a)
		}
	}
	return upcoming
}

// Cancel marks the appointment cancelled before asking the backend. The local
// status stays cancelled even if the request fails; the entry is never removed.
// Change hooks run once the backend call has returned.
func (c *AppointmentCalendar) Cancel(ctx context.Context, id string) error {
	c.mu.Lock()
	idx := -1
	for i := range c.items {
		if c.items[i].ID.String() == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return ErrAppointmentNotFound
	}
	if c.items[idx].Status == model.AppointmentStatusCancelled {
		c.mu.Unlock()
		return ErrAppointmentCancelled
	}
	c.items[idx].Status = model.AppointmentStatusCancelled
	appointmentID := c.items[idx].ID
	c.tokens.bump(id)
	c.mu.Unlock()

	err := c.source.Cancel(ctx, appointmentID)
	c.mu.Lock()
	c.tokens.bump(id)
	notify := c.onChange
	c.mu.Unlock()

	if notify != nil {
		notify(ChangeAppointments)
	}
	c.audit.Record(ctx, audit.OperationUpdate, audit.ResourceAppointment, id, err)
	if err != nil {
		c.logger.Error("failed to cancel appointment",
			zap.String("appointment_id", id),
			zap.Error(err),
		)
		return fmt.Errorf("failed to cancel appointment: %w", err)
	}

	c.logger.Info("appointment cancelled", zap.String("appointment_id", id))
	return nil
}

func appointmentKey(a model.Appointment) string {
	return a.ID.String()
}
