package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/middleware"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/session"
	"go.uber.org/zap"
)

const sessionKey = "portal_session"

// Handlers groups every presentation endpoint
type Handlers struct {
	Sessions    *session.Manager
	Session     *SessionHandler
	Dashboard   *DashboardHandler
	Medication  *MedicationHandler
	Appointment *AppointmentHandler
	Health      *HealthHandler
	Booking     *BookingHandler
	Chat        *ChatHandler
	Media       *MediaHandler
	Status      *StatusHandler
	Logger      *zap.Logger
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Status.GetHealth)

	ui := r.Group("/ui")
	ui.POST("/session", h.Session.PostSession)

	s := ui.Group("", requireSession(h.Sessions, h.Logger))
	s.GET("/session", h.Session.GetSession)
	s.DELETE("/session", h.Session.DeleteSession)
	s.GET("/activity", h.Session.GetActivity)

	s.GET("/dashboard", h.Dashboard.GetDashboard)
	s.GET("/dashboard/summary.pdf", h.Dashboard.GetSummaryPDF)

	s.GET("/medications", h.Medication.GetMedications)
	s.GET("/medications/stats", h.Medication.GetStats)
	s.POST("/medications", h.Medication.PostMedication)
	s.PUT("/medications/:id", h.Medication.PutMedication)
	s.DELETE("/medications/:id", h.Medication.DeleteMedication)
	s.POST("/medications/:id/taken", h.Medication.PostTaken)

	s.GET("/appointments", h.Appointment.GetAppointments)
	s.POST("/appointments/:id/cancel", h.Appointment.PostCancel)

	s.GET("/metrics", h.Health.GetMetrics)
	s.POST("/metrics/:metric", h.Health.PostMetric)

	s.GET("/booking", h.Booking.GetBooking)
	s.POST("/booking/start", h.Booking.PostStart)
	s.POST("/booking/select", h.Booking.PostSelect)
	s.POST("/booking/submit", h.Booking.PostSubmit)

	s.GET("/chat", h.Chat.GetChat)
	s.POST("/chat/send", h.Chat.PostSend)
	s.POST("/chat/voice/start", h.Chat.PostVoiceStart)
	s.POST("/chat/voice/chunk", h.Chat.PostVoiceChunk)
	s.POST("/chat/voice/stop", h.Chat.PostVoiceStop)
	s.POST("/chat/messages/:index/speak", h.Chat.PostSpeak)
	s.POST("/chat/speech/:action", h.Chat.PostSpeech)
	s.POST("/chat/audio", h.Chat.PostAudio)
	s.POST("/chat/language", h.Chat.PostLanguage)
	s.GET("/chat/playback", h.Chat.GetPlayback)

	s.GET("/media/*ref", h.Media.GetMedia)
}

// requireSession resolves the X-Session-ID header to a live session
func requireSession(sessions *session.Manager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(middleware.SessionIDHeader)
		s, err := sessions.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{
					Code:    CodeNotFound,
					Message: "Session not found; create one with POST /ui/session",
				})
				return
			}
			logger.Error("failed to resolve session", zap.String("session_id", id), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
				Code:    CodeInternal,
				Message: "Failed to resolve session",
				Details: stringPtr(err.Error()),
			})
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// currentSession returns the session resolved by requireSession
func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}
