package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/metrics"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/service"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
	"go.uber.org/zap"
)

type MedicationLister interface {
	List(ctx context.Context) []model.Medication
}

type AppointmentLister interface {
	List(ctx context.Context) []model.Appointment
}

type MetricReader interface {
	Latest(ctx context.Context) model.HealthMetrics
}

// Intervals sets how often each counter is refreshed
type Intervals struct {
	Medications  time.Duration
	Appointments time.Duration
	HealthScore  time.Duration
}

// DefaultIntervals are used for zero fields
var DefaultIntervals = Intervals{
	Medications:  30 * time.Second,
	Appointments: 60 * time.Second,
	HealthScore:  60 * time.Second,
}

type counter int

const (
	counterMedications counter = iota
	counterAppointments
	counterHealthScore
	counterCount
)

var counterNames = [counterCount]string{"active_medications", "upcoming_appointments", "health_score"}

// Summary is the dashboard headline
type Summary struct {
	ActiveMedications    int                 `json:"active_medications"`
	UpcomingAppointments int                 `json:"upcoming_appointments"`
	HealthScore          int                 `json:"health_score"`
	HealthStatus         string              `json:"health_status"`
	Medications          []model.Medication  `json:"medications"`
	Appointments         []model.Appointment `json:"appointments"`
	Metrics              model.HealthMetrics `json:"metrics"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// Aggregator keeps three independent counters. Each one is refreshed by its
// own poller and its own fetch-then-set sequence; they never share a request.
type Aggregator struct {
	meds    MedicationLister
	appts   AppointmentLister
	health  MetricReader
	metrics *metrics.PortalMetrics
	logger  *zap.Logger
	pollers [counterCount]*Poller

	mu       sync.Mutex
	seq      [counterCount]uint64
	summary  Summary
	ctx      context.Context
	cancel   context.CancelFunc
	inFlight sync.WaitGroup
}

// NewAggregator creates a stopped aggregator
func NewAggregator(meds MedicationLister, appts AppointmentLister, health MetricReader, intervals Intervals, m *metrics.PortalMetrics, logger *zap.Logger) *Aggregator {
	if intervals.Medications <= 0 {
		intervals.Medications = DefaultIntervals.Medications
	}
	if intervals.Appointments <= 0 {
		intervals.Appointments = DefaultIntervals.Appointments
	}
	if intervals.HealthScore <= 0 {
		intervals.HealthScore = DefaultIntervals.HealthScore
	}

	a := &Aggregator{
		meds:    meds,
		appts:   appts,
		health:  health,
		metrics: m,
		logger:  logger,
		summary: Summary{
			HealthStatus: model.HealthStatus(0),
			Medications:  []model.Medication{},
			Appointments: []model.Appointment{},
		},
	}
	a.pollers[counterMedications] = NewPoller(intervals.Medications, func(ctx context.Context) { a.RefreshMedications(ctx) })
	a.pollers[counterAppointments] = NewPoller(intervals.Appointments, func(ctx context.Context) { a.RefreshAppointments(ctx) })
	a.pollers[counterHealthScore] = NewPoller(intervals.HealthScore, func(ctx context.Context) { a.RefreshHealthScore(ctx) })
	return a
}

// Start begins polling every counter
func (a *Aggregator) Start(ctx context.Context) {
	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()
		return
	}
	a.ctx, a.cancel = context.WithCancel(ctx)
	runCtx := a.ctx
	a.mu.Unlock()

	for _, p := range a.pollers {
		p.Start(runCtx)
	}
	a.logger.Debug("dashboard polling started")
}

// Stop tears down every poller and waits for outstanding refreshes
func (a *Aggregator) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, p := range a.pollers {
		p.Stop()
	}
	a.inFlight.Wait()
}

// Summary returns the current counters
func (a *Aggregator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.summary
	s.Medications = append([]model.Medication{}, s.Medications...)
	s.Appointments = append([]model.Appointment{}, s.Appointments...)
	return s
}

// Notify refreshes the counter a mutation touched, in the background
func (a *Aggregator) Notify(change service.Change) {
	a.mu.Lock()
	ctx := a.ctx
	running := a.cancel != nil
	if running {
		a.inFlight.Add(1)
	}
	a.mu.Unlock()
	if !running {
		return
	}

	go func() {
		defer a.inFlight.Done()
		switch change {
		case service.ChangeMedications:
			a.RefreshMedications(ctx)
		case service.ChangeAppointments:
			a.RefreshAppointments(ctx)
		case service.ChangeMetrics:
			a.RefreshHealthScore(ctx)
		}
	}()
}

// RefreshMedications recounts medications that are not completed
func (a *Aggregator) RefreshMedications(ctx context.Context) int {
	seq := a.issue(counterMedications)
	list := a.meds.List(ctx)

	active := 0
	for _, m := range list {
		if m.IsActive() {
			active++
		}
	}

	a.commit(counterMedications, seq, func(s *Summary) {
		s.ActiveMedications = active
		s.Medications = list
	})
	return active
}

// RefreshAppointments recounts upcoming appointments
func (a *Aggregator) RefreshAppointments(ctx context.Context) int {
	seq := a.issue(counterAppointments)
	list := a.appts.List(ctx)

	upcoming := make([]model.Appointment, 0, len(list))
	for _, appt := range list {
		if appt.IsUpcoming() {
			upcoming = append(upcoming, appt)
		}
	}

	a.commit(counterAppointments, seq, func(s *Summary) {
		s.UpcomingAppointments = len(upcoming)
		s.Appointments = upcoming
	})
	return len(upcoming)
}

// RefreshHealthScore reloads the health score
func (a *Aggregator) RefreshHealthScore(ctx context.Context) int {
	seq := a.issue(counterHealthScore)
	latest := a.health.Latest(ctx)

	a.commit(counterHealthScore, seq, func(s *Summary) {
		s.HealthScore = latest.HealthScore
		s.HealthStatus = model.HealthStatus(latest.HealthScore)
		s.Metrics = latest
	})
	return latest.HealthScore
}

func (a *Aggregator) issue(c counter) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq[c]++
	return a.seq[c]
}

// commit applies a fetch result unless a newer fetch of the same counter was issued
func (a *Aggregator) commit(c counter, seq uint64, apply func(*Summary)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if seq != a.seq[c] {
		a.metrics.ObserveStaleResponse(counterNames[c])
		a.logger.Debug("dropping superseded dashboard counter", zap.String("counter", counterNames[c]))
		return
	}
	apply(&a.summary)
	a.summary.UpdatedAt = time.Now()
}
