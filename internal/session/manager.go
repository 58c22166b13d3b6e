package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/metrics"
	"go.uber.org/zap"
)

// DefaultIdleTimeout is how long a session lives without requests
const DefaultIdleTimeout = 30 * time.Minute

// Session lifecycle events
const (
	EventCreated = "created"
	EventResumed = "resumed"
	EventClosed  = "closed"
	EventExpired = "expired"
)

var ErrSessionNotFound = errors.New("session not found")

// Factory builds an unstarted session for id
type Factory func(id string) (*Session, error)

// Manager owns every live session. A session that expired or lives on
// another replica is rebuilt from its stored booking snapshot.
type Manager struct {
	factory Factory
	store   SnapshotStore
	idle    time.Duration
	metrics *metrics.PortalMetrics
	logger  *zap.Logger
	now     func() time.Time

	// outlives requests; dashboards poll under it
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager. store may be nil, which disables resuming.
func NewManager(factory Factory, store SnapshotStore, idle time.Duration, m *metrics.PortalMetrics, logger *zap.Logger) *Manager {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		factory:  factory,
		store:    store,
		idle:     idle,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Create starts a fresh session
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	id := uuid.New().String()
	s, err := m.factory(id)
	if err != nil {
		return nil, fmt.Errorf("failed to build session: %w", err)
	}

	m.add(s)
	m.metrics.ObserveSessionEvent(EventCreated)
	m.logger.Info("session created", zap.String("session_id", id))
	return s, nil
}

// Get returns the live session for id, resuming it from the snapshot store
// when it is not in memory
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}

	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		s.Touch(m.now())
		return s, nil
	}

	if m.store == nil {
		return nil, ErrSessionNotFound
	}
	snap, found, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session snapshot: %w", err)
	}
	if !found {
		return nil, ErrSessionNotFound
	}

	s, err = m.factory(id)
	if err != nil {
		return nil, fmt.Errorf("failed to build session: %w", err)
	}
	if err := s.Booking.Restore(snap); err != nil {
		return nil, fmt.Errorf("failed to restore booking: %w", err)
	}

	// a concurrent Get may have resumed it first
	if existing := m.add(s); existing != s {
		s.Close()
		existing.Touch(m.now())
		return existing, nil
	}
	m.metrics.ObserveSessionEvent(EventResumed)
	m.logger.Info("session resumed", zap.String("session_id", id), zap.String("step", snap.Step))
	return s, nil
}

// add registers and starts s unless a session with the same id exists; it
// returns the registered session
func (m *Manager) add(s *Session) *Session {
	m.mu.Lock()
	if existing, ok := m.sessions[s.ID]; ok {
		m.mu.Unlock()
		return existing
	}
	s.Touch(m.now())
	m.sessions[s.ID] = s
	m.mu.Unlock()

	s.Dashboard.Start(m.ctx)
	return s
}

// SaveBooking persists the session's booking dialogue
func (m *Manager) SaveBooking(ctx context.Context, s *Session) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Save(ctx, s.ID, s.Booking.Snapshot()); err != nil {
		return fmt.Errorf("failed to save booking snapshot: %w", err)
	}
	return nil
}

// Close ends a session and forgets its snapshot
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.Close()
	m.metrics.ObserveSessionEvent(EventClosed)
	m.logger.Info("session closed", zap.String("session_id", id))

	if m.store != nil {
		if err := m.store.Delete(ctx, id); err != nil {
			m.logger.Warn("failed to delete booking snapshot", zap.String("session_id", id), zap.Error(err))
		}
	}
	return nil
}

// Sweep closes sessions idle for longer than the timeout. Their snapshots
// are kept so the visitor can resume.
func (m *Manager) Sweep(now time.Time) int {
	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.LastSeen()) > m.idle {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
		m.metrics.ObserveSessionEvent(EventExpired)
		m.logger.Info("session expired", zap.String("session_id", s.ID))
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is done, then shuts every session down
func (m *Manager) Run(ctx context.Context) {
	interval := m.idle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Shutdown()
			return
		case <-ticker.C:
			if n := m.Sweep(m.now()); n > 0 {
				m.logger.Debug("swept idle sessions", zap.Int("count", n))
			}
		}
	}
}

// Shutdown closes every live session
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	m.cancel()
	for _, s := range sessions {
		s.Close()
	}
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
