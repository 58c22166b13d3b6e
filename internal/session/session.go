package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/booking"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/chat"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/dashboard"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/metrics"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/service"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/speech"
	"go.uber.org/zap"
)

// Playback queue and microphone buffer sizes per session
const (
	playbackQueueSize = 64
	micBufferSize     = 64
)

var errSpeechDisabled = errors.New("speech synthesis is not configured")

// Session is the view state of one visitor
type Session struct {
	ID           string
	Booking      *booking.Controller
	Chat         *chat.Controller
	Medications  *service.MedicationBoard
	Appointments *service.AppointmentCalendar
	Metrics      *service.HealthTracker
	Dashboard    *dashboard.Aggregator
	Speech       *speech.Engine
	Playback     *speech.ClipQueue
	Microphone   *speech.PushSource
	CreatedAt    time.Time

	mu       sync.Mutex
	lastSeen time.Time
	closed   bool
}

// Touch records activity at now
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen returns the time of the last request made with this session
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Close stops the dashboard pollers, cancels speech and releases the microphone.
// Closing twice does nothing.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.Dashboard.Stop()
	s.Chat.Close()
	s.Speech.Cancel()
	s.Playback.Stop()
}

// MedicationBackend serves both the medication board and the dashboard counter
type MedicationBackend interface {
	service.MedicationSource
	dashboard.MedicationLister
}

// Dependencies are the shared resources every session is built from
type Dependencies struct {
	Medications  MedicationBackend
	Appointments service.AppointmentSource
	Metrics      service.MetricSource
	Booking      booking.Sender
	Assistant    chat.Assistant
	// Synthesizer may be nil, in which case nothing is ever spoken
	Synthesizer speech.Synthesizer
	// Archive may be nil
	Archive         chat.Archive
	Audit           *audit.Logger
	PortalMetrics   *metrics.PortalMetrics
	Intervals       dashboard.Intervals
	ChunkLength     int
	BookingLanguage string
	SpeechLanguage  string
	Logger          *zap.Logger
}

// Build wires a new session. The dashboard is not started.
func (d Dependencies) Build(id string) (*Session, error) {
	logger := d.Logger.With(zap.String("session_id", id))

	synth := d.Synthesizer
	if synth == nil {
		synth = silence{}
	}
	playback := speech.NewClipQueue(playbackQueueSize)
	engine := speech.NewEngine(synth, playback, d.ChunkLength, logger.Named("speech"))
	mic := speech.NewPushSource(micBufferSize)

	meds := service.NewMedicationBoard(d.Medications, d.Audit, d.PortalMetrics, logger)
	appts := service.NewAppointmentCalendar(d.Appointments, d.Audit, d.PortalMetrics, logger)
	health := service.NewHealthTracker(d.Metrics, d.Audit, d.PortalMetrics, logger)
	agg := dashboard.NewAggregator(d.Medications, d.Appointments, d.Metrics, d.Intervals, d.PortalMetrics, logger.Named("dashboard"))

	meds.OnChange(agg.Notify)
	appts.OnChange(agg.Notify)
	health.OnChange(agg.Notify)

	chatController := chat.NewController(d.Assistant, engine, speech.NewMicrophone(mic), d.Archive, logger.Named("chat"))
	if d.SpeechLanguage != "" {
		chatController.SetLanguage(d.SpeechLanguage)
	}

	now := time.Now()
	return &Session{
		ID:           id,
		Booking:      booking.NewController(d.Booking, d.BookingLanguage, logger.Named("booking")),
		Chat:         chatController,
		Medications:  meds,
		Appointments: appts,
		Metrics:      health,
		Dashboard:    agg,
		Speech:       engine,
		Playback:     playback,
		Microphone:   mic,
		CreatedAt:    now,
		lastSeen:     now,
	}, nil
}

// silence stands in for a synthesizer when none is configured
type silence struct{}

func (silence) TextToSpeech(context.Context, string, string) ([]byte, error) {
	return nil, errSpeechDisabled
}
