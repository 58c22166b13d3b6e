package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
	"go.uber.org/zap"
)

// BookingOption is one choice offered by the booking dialogue
type BookingOption struct {
	ID   model.FlexID `json:"id"`
	Name string       `json:"name"`
}

// BookingFormField describes one input the booking dialogue asks for
type BookingFormField struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// BookingResponse is one step of the server-driven booking dialogue
type BookingResponse struct {
	Message         string             `json:"message"`
	Options         []BookingOption    `json:"options"`
	FormFields      []BookingFormField `json:"form_fields"`
	NextStep        string             `json:"next_step"`
	Language        string             `json:"language"`
	FollowUpMessage string             `json:"follow_up_message"`

	// Selected holds the selected_* echoes of the response, keyed as sent
	Selected map[string]any `json:"-"`
}

// selectionEchoKeys are the selected_* fields the backend may echo back
var selectionEchoKeys = []string{
	"selected_category", "selected_category_id",
	"selected_subcategory", "selected_subcategory_id",
	"selected_location", "selected_location_id",
	"selected_doctor", "selected_doctor_id",
	"selected_date",
	"selected_time",
}

// DecodeBookingResponse parses a booking step
func DecodeBookingResponse(data []byte) (*BookingResponse, error) {
	var resp BookingResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode booking response: %w", err)
	}

	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode booking response: %w", err)
	}

	for _, key := range selectionEchoKeys {
		value, ok := raw[key]
		if !ok || value == nil {
			continue
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		if resp.Selected == nil {
			resp.Selected = make(map[string]any)
		}
		resp.Selected[key] = value
	}

	return &resp, nil
}

// BookingGateway drives the appointment chatbot endpoint
type BookingGateway struct {
	client *Client
	logger *zap.Logger
}

// NewBookingGateway creates a new booking gateway
func NewBookingGateway(client *Client, logger *zap.Logger) *BookingGateway {
	return &BookingGateway{client: client, logger: logger}
}

// Send posts one dialogue turn. Failures are returned as is; a non-2xx answer
// is an *APIError whose Language reports the tag the server resolved.
func (g *BookingGateway) Send(ctx context.Context, payload map[string]any) (*BookingResponse, error) {
	body, err := g.client.sendJSON(ctx, "booking.step", http.MethodPost, "/api/appointment-chatbot/", payload)
	if err != nil {
		return nil, err
	}

	resp, err := DecodeBookingResponse(body)
	if err != nil {
		g.logger.Error("booking response could not be decoded", zap.Error(err))
		return nil, err
	}
	return resp, nil
}
