package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/booking"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/chat"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/gateway"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/service"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/session"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/speech"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
)

func TestClassify(t *testing.T) {
	verr := &model.ValidationError{}
	verr.Add("name", "is required")

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", fmt.Errorf("add: %w", verr), http.StatusBadRequest, CodeValidation},
		{"unknown option", booking.ErrUnknownOption, http.StatusBadRequest, CodeValidation},
		{"required field", fmt.Errorf("%w: %w", booking.ErrRequiredField, verr), http.StatusBadRequest, CodeValidation},
		{"buffer full", speech.ErrBufferFull, http.StatusBadRequest, CodeValidation},
		{"in flight", booking.ErrRequestInFlight, http.StatusConflict, CodeConflict},
		{"chat busy", chat.ErrBusy, http.StatusConflict, CodeConflict},
		{"completed", service.ErrMedicationCompleted, http.StatusConflict, CodeConflict},
		{"session", session.ErrSessionNotFound, http.StatusNotFound, CodeNotFound},
		{"message", fmt.Errorf("%w: 4", chat.ErrNoSuchMessage), http.StatusNotFound, CodeNotFound},
		{"no affordance", booking.ErrNoAffordance, http.StatusUnprocessableEntity, CodeBackend},
		{"api error", &gateway.APIError{Endpoint: "x", StatusCode: 500, Body: []byte(`{"detail": "boom"}`)}, http.StatusBadGateway, CodeBackend},
		{"contract", fmt.Errorf("x: %w", gateway.ErrContractViolation), http.StatusBadGateway, CodeBackend},
		{"transport", errors.New("dial tcp: connection refused"), http.StatusBadGateway, CodeBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}

	_, body := classify(&gateway.APIError{Endpoint: "x", StatusCode: 500, Body: []byte(`{"detail": "boom"}`)})
	assert.Equal(t, "boom", body.Message)
}

// Every error, however deeply wrapped, maps to an error status with a
// populated envelope, and wrapping never changes the classification
func TestProperty_ClassifyIsStableUnderWrapping(t *testing.T) {
	sentinels := []error{
		booking.ErrUnknownOption,
		booking.ErrRequestInFlight,
		booking.ErrNoAffordance,
		chat.ErrEmptyInput,
		chat.ErrBusy,
		speech.ErrNotRecording,
		service.ErrAppointmentNotFound,
		gateway.ErrContractViolation,
		errors.New("unexpected"),
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("envelope is complete and wrap-invariant", prop.ForAll(
		func(idx int, depth int, context string) bool {
			base := sentinels[idx]
			wantStatus, wantBody := classify(base)

			err := base
			for i := 0; i < depth; i++ {
				err = fmt.Errorf("%s: %w", context, err)
			}
			status, body := classify(err)

			return status >= 400 &&
				body.Code != "" &&
				body.Message != "" &&
				status == wantStatus &&
				body.Code == wantBody.Code
		},
		gen.IntRange(0, len(sentinels)-1),
		gen.IntRange(0, 5),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
