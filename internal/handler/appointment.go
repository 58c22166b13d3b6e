package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
)

// AppointmentHandler exposes the session's appointment calendar
type AppointmentHandler struct{}

// NewAppointmentHandler creates a new AppointmentHandler
func NewAppointmentHandler() *AppointmentHandler {
	return &AppointmentHandler{}
}

// AppointmentListResponse wraps the calendar
type AppointmentListResponse struct {
	Appointments []model.Appointment `json:"appointments"`
}

// GetAppointments reloads the calendar. With upcoming=true only scheduled
// future appointments are returned.
func (h *AppointmentHandler) GetAppointments(c *gin.Context) {
	calendar := currentSession(c).Appointments
	items := calendar.Load(c.Request.Context())

	if raw := c.Query("upcoming"); raw != "" {
		upcoming, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, err)
			return
		}
		if upcoming {
			items = calendar.Upcoming()
		}
	}

	if items == nil {
		items = []model.Appointment{}
	}
	c.JSON(http.StatusOK, AppointmentListResponse{Appointments: items})
}

// PostCancel cancels an appointment
func (h *AppointmentHandler) PostCancel(c *gin.Context) {
	if err := currentSession(c).Appointments.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, AppointmentListResponse{Appointments: currentSession(c).Appointments.Items()})
}
