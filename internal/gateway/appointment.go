package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
	"go.uber.org/zap"
)

// AppointmentGateway wraps the backend's appointment endpoints
type AppointmentGateway struct {
	client *Client
	logger *zap.Logger
}

// NewAppointmentGateway creates a new appointment gateway
func NewAppointmentGateway(client *Client, logger *zap.Logger) *AppointmentGateway {
	return &AppointmentGateway{client: client, logger: logger}
}

// List returns the patient's appointments, empty when unavailable
func (g *AppointmentGateway) List(ctx context.Context) []model.Appointment {
	body, err := g.client.getJSON(ctx, "appointments.list", "/api/appointments/user_appointments/")
	if err != nil {
		g.logger.Warn("failed to list appointments, showing empty list", zap.Error(err))
		return []model.Appointment{}
	}
	return model.NormalizeAppointments(body)
}

// Cancel cancels one appointment
func (g *AppointmentGateway) Cancel(ctx context.Context, id model.FlexID) error {
	path := "/api/appointments/" + url.PathEscape(id.String()) + "/cancel/"
	if _, err := g.client.sendJSON(ctx, "appointments.cancel", http.MethodPost, path, nil); err != nil {
		return fmt.Errorf("failed to cancel appointment: %w", err)
	}
	return nil
}
