package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/booking"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/session"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
	"go.uber.org/zap"
)

// BookingHandler drives the appointment booking dialogue
type BookingHandler struct {
	sessions *session.Manager
	logger   *zap.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(sessions *session.Manager, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// BookingView renders the dialogue
type BookingView struct {
	Step       string                 `json:"step"`
	Affordance booking.AffordanceView `json:"affordance"`
	Selections booking.Selections     `json:"selections"`
	Language   string                 `json:"language"`
	Messages   []model.Message        `json:"messages"`
	Loading    bool                   `json:"loading"`
}

// BookingTurnResponse is the dialogue after a turn. Error is set when the
// turn failed; the transcript then already carries the apology.
type BookingTurnResponse struct {
	Booking BookingView    `json:"booking"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

// StartBookingRequest opens a dialogue
type StartBookingRequest struct {
	Language string `json:"language"`
}

// SelectOptionRequest picks one presented option
type SelectOptionRequest struct {
	OptionID string `json:"option_id" binding:"required"`
}

// SubmitFormRequest fills in the presented form
type SubmitFormRequest struct {
	Values map[string]string `json:"values"`
}

func bookingView(st booking.State) BookingView {
	messages := st.Transcript
	if messages == nil {
		messages = []model.Message{}
	}
	selections := st.Selections
	if selections == nil {
		selections = booking.Selections{}
	}
	return BookingView{
		Step:       st.Step,
		Affordance: booking.ViewOf(st.Affordance),
		Selections: selections,
		Language:   st.Language,
		Messages:   messages,
		Loading:    st.Loading,
	}
}

// GetBooking returns the current dialogue
func (h *BookingHandler) GetBooking(c *gin.Context) {
	c.JSON(http.StatusOK, bookingView(currentSession(c).Booking.State()))
}

// PostStart opens a new dialogue
func (h *BookingHandler) PostStart(c *gin.Context) {
	var req StartBookingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	h.turn(c, func(ctx context.Context, b *booking.Controller) error {
		return b.Start(ctx, req.Language)
	})
}

// PostSelect picks an option
func (h *BookingHandler) PostSelect(c *gin.Context) {
	var req SelectOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.turn(c, func(ctx context.Context, b *booking.Controller) error {
		return b.SelectOption(ctx, req.OptionID)
	})
}

// PostSubmit sends the form values
func (h *BookingHandler) PostSubmit(c *gin.Context) {
	var req SubmitFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.turn(c, func(ctx context.Context, b *booking.Controller) error {
		return b.SubmitForm(ctx, req.Values)
	})
}

// turn runs one dialogue turn, persists the result and renders it
func (h *BookingHandler) turn(c *gin.Context, fn func(context.Context, *booking.Controller) error) {
	s := currentSession(c)
	ctx := c.Request.Context()

	err := fn(ctx, s.Booking)

	if saveErr := h.sessions.SaveBooking(ctx, s); saveErr != nil {
		h.logger.Warn("failed to persist booking snapshot",
			zap.String("session_id", s.ID),
			zap.Error(saveErr),
		)
	}

	resp := BookingTurnResponse{Booking: bookingView(s.Booking.State())}
	if err != nil {
		_ = c.Error(err)
		status, body := classify(err)
		resp.Error = &body
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
