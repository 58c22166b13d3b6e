package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/azure"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/booking"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/chat"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/gateway"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/service"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/session"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/speech"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
)

// Error codes of the response envelope
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeBackend    = "BACKEND_ERROR"
	CodeConflict   = "CONFLICT"
	CodeNotFound   = "NOT_FOUND"
	CodeInternal   = "INTERNAL_ERROR"
)

// ErrorResponse is the error envelope of every endpoint
type ErrorResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details,omitempty"`
}

// stringPtr creates a pointer to a string
func stringPtr(s string) *string {
	return &s
}

// classify maps an error to its HTTP status and envelope
func classify(err error) (int, ErrorResponse) {
	var verr *model.ValidationError
	var apiErr *gateway.APIError

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, ErrorResponse{Code: CodeValidation, Message: "Validation failed", Details: stringPtr(verr.Error())}

	case errors.Is(err, booking.ErrUnknownOption),
		errors.Is(err, booking.ErrNoForm),
		errors.Is(err, chat.ErrEmptyInput),
		errors.Is(err, chat.ErrEmptyRecording),
		errors.Is(err, chat.ErrNotSpeakable),
		errors.Is(err, speech.ErrBufferFull):
		return http.StatusBadRequest, ErrorResponse{Code: CodeValidation, Message: err.Error()}

	case errors.Is(err, booking.ErrRequestInFlight),
		errors.Is(err, chat.ErrBusy),
		errors.Is(err, speech.ErrMicrophoneBusy),
		errors.Is(err, speech.ErrNotRecording),
		errors.Is(err, service.ErrMedicationCompleted),
		errors.Is(err, service.ErrAppointmentCancelled):
		return http.StatusConflict, ErrorResponse{Code: CodeConflict, Message: err.Error()}

	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, service.ErrMedicationNotFound),
		errors.Is(err, service.ErrAppointmentNotFound),
		errors.Is(err, chat.ErrNoSuchMessage),
		errors.Is(err, azure.ErrMediaNotFound):
		return http.StatusNotFound, ErrorResponse{Code: CodeNotFound, Message: err.Error()}

	case errors.Is(err, booking.ErrNoAffordance):
		return http.StatusUnprocessableEntity, ErrorResponse{Code: CodeBackend, Message: "The booking service could not continue this step"}

	case errors.As(err, &apiErr):
		message := apiErr.Message()
		if message == "" {
			message = "The clinical backend rejected the request"
		}
		return http.StatusBadGateway, ErrorResponse{Code: CodeBackend, Message: message, Details: stringPtr(err.Error())}

	case errors.Is(err, gateway.ErrContractViolation):
		return http.StatusBadGateway, ErrorResponse{Code: CodeBackend, Message: "The clinical backend sent an unexpected response"}

	default:
		return http.StatusBadGateway, ErrorResponse{Code: CodeBackend, Message: "The clinical backend could not be reached", Details: stringPtr(err.Error())}
	}
}

// respondError writes the envelope for err and attaches err to the context
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := classify(err)
	c.JSON(status, body)
}

// badRequest reports an unreadable request
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Code:    CodeValidation,
		Message: "Invalid request body",
		Details: stringPtr(err.Error()),
	})
}
