package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/middleware"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/session"
	"go.uber.org/zap"
)

const defaultActivityLimit = 50

// SessionHandler creates, describes and ends visitor sessions
type SessionHandler struct {
	sessions *session.Manager
	audit    *audit.Logger
	logger   *zap.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessions *session.Manager, auditLogger *audit.Logger, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		audit:    auditLogger,
		logger:   logger,
	}
}

// SessionResponse describes a session
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

func sessionResponse(s *session.Session) SessionResponse {
	return SessionResponse{SessionID: s.ID, CreatedAt: s.CreatedAt, LastSeen: s.LastSeen()}
}

// PostSession starts a new session
func (h *SessionHandler) PostSession(c *gin.Context) {
	s, err := h.sessions.Create(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to create session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    CodeInternal,
			Message: "Failed to create session",
			Details: stringPtr(err.Error()),
		})
		return
	}

	c.Header(middleware.SessionIDHeader, s.ID)
	c.JSON(http.StatusCreated, sessionResponse(s))
}

// GetSession describes the current session
func (h *SessionHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, sessionResponse(currentSession(c)))
}

// DeleteSession ends the current session
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	s := currentSession(c)
	if err := h.sessions.Close(c.Request.Context(), s.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetActivity lists the session's recent write intents, newest first
func (h *SessionHandler) GetActivity(c *gin.Context) {
	limit := defaultActivityLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Code:    CodeValidation,
				Message: "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	c.JSON(http.StatusOK, h.audit.GetAuditLogs(currentSession(c).ID, limit))
}
