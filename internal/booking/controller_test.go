package booking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/gateway"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
	"go.uber.org/zap"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, payload map[string]any) (*gateway.BookingResponse, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.BookingResponse), args.Error(1)
}

func categoryStep() *gateway.BookingResponse {
	return &gateway.BookingResponse{
		Message: "What kind of appointment do you need?",
		Options: []gateway.BookingOption{
			{ID: model.NewFlexID("3"), Name: "Cardiology"},
			{ID: model.NewFlexID("4"), Name: "Dermatology"},
		},
		NextStep: "category_selected",
		Language: "en",
	}
}

func detailsStep() *gateway.BookingResponse {
	return &gateway.BookingResponse{
		Message: "Please enter your details",
		FormFields: []gateway.BookingFormField{
			{Name: "patient_name", Label: "Name", Type: "text", Required: true},
			{Name: "phone", Label: "Phone", Type: "tel", Required: true},
			{Name: "notes", Label: "Notes", Type: "text"},
		},
		NextStep: "details_submitted",
	}
}

func startedController(t *testing.T, sender *mockSender) *Controller {
	t.Helper()
	sender.On("Send", mock.Anything, mock.MatchedBy(func(p map[string]any) bool {
		return p["step"] == InitialStep
	})).Return(categoryStep(), nil).Once()

	c := NewController(sender, "en", zap.NewNop())
	require.NoError(t, c.Start(context.Background(), "en"))
	return c
}

func TestController_Start(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything, map[string]any{"step": "initial", "language": "hi"}).
		Return(&gateway.BookingResponse{
			Message:  "Namaste",
			Options:  []gateway.BookingOption{{ID: model.NewFlexID("1"), Name: "General"}},
			NextStep: "category_selected",
			Language: "hi",
		}, nil)

	c := NewController(sender, "", zap.NewNop())
	require.NoError(t, c.Start(context.Background(), "hi"))

	state := c.State()
	assert.Equal(t, "category_selected", state.Step)
	assert.Equal(t, KindOptions, KindOf(state.Affordance))
	assert.Equal(t, "hi", state.Language)
	require.Len(t, state.Transcript, 1)
	assert.Equal(t, model.MessageRoleBot, state.Transcript[0].Role)
	assert.Equal(t, "Namaste", state.Transcript[0].Content)
	assert.False(t, state.Loading)
	sender.AssertExpectations(t)
}

func TestController_StartFailureShowsApology(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	c := NewController(sender, "en", zap.NewNop())
	err := c.Start(context.Background(), "")
	require.Error(t, err)

	state := c.State()
	require.Len(t, state.Transcript, 1)
	assert.Equal(t, StartFailedMessage, state.Transcript[0].Content)
	assert.Equal(t, KindNone, KindOf(state.Affordance))
	assert.Equal(t, InitialStep, state.Step)
}

func TestController_SelectOptionSendsAccumulatedSelections(t *testing.T) {
	sender := new(mockSender)
	c := startedController(t, sender)

	sender.On("Send", mock.Anything, mock.MatchedBy(func(p map[string]any) bool {
		id, ok := p["selection_id"].(model.FlexID)
		return ok && id.String() == "3" &&
			p["step"] == "category_selected" &&
			p["language"] == "en" &&
			p["selected_category"] == "Cardiology"
	})).Return(&gateway.BookingResponse{
		Message:         "Which location?",
		Options:         []gateway.BookingOption{{ID: model.NewFlexID("loc-1"), Name: "Budapest"}},
		NextStep:        "location_selected",
		Selected:        map[string]any{"selected_subcategory": "Heart check", "selected_subcategory_id": json.Number("8")},
		FollowUpMessage: "You can change this later.",
	}, nil).Once()

	require.NoError(t, c.SelectOption(context.Background(), "3"))

	state := c.State()
	assert.Equal(t, "location_selected", state.Step)
	assert.Equal(t, "Cardiology", state.Selections["selected_category"])
	assert.Equal(t, "3", state.Selections["selected_category_id"].(model.FlexID).String())
	assert.Equal(t, "Heart check", state.Selections["selected_subcategory"])

	contents := make([]string, 0, len(state.Transcript))
	for _, m := range state.Transcript {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{
		"What kind of appointment do you need?",
		"Cardiology",
		"Which location?",
		"You can change this later.",
	}, contents)
	sender.AssertExpectations(t)
}

func TestController_SelectOptionFailureKeepsSelection(t *testing.T) {
	sender := new(mockSender)
	c := startedController(t, sender)
	before := c.State()

	sender.On("Send", mock.Anything, mock.Anything).
		Return(nil, &gateway.APIError{Endpoint: "booking.step", StatusCode: http.StatusInternalServerError, Body: []byte(`{"language": "hu"}`)}).Once()

	err := c.SelectOption(context.Background(), "4")
	require.Error(t, err)

	state := c.State()
	assert.Equal(t, before.Step, state.Step)
	assert.Equal(t, before.Affordance, state.Affordance)
	assert.Equal(t, "Dermatology", state.Selections["selected_category"])
	assert.Equal(t, "4", state.Selections["selected_category_id"].(model.FlexID).String())
	assert.Equal(t, "hu", state.Language)
	assert.Equal(t, SelectFailedMessage, state.Transcript[len(state.Transcript)-1].Content)
}

func TestController_SelectUnknownOption(t *testing.T) {
	sender := new(mockSender)
	c := startedController(t, sender)

	err := c.SelectOption(context.Background(), "99")
	assert.ErrorIs(t, err, ErrUnknownOption)
	sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestController_SubmitFormRefusesMissingRequiredField(t *testing.T) {
	sender := new(mockSender)
	c := startedController(t, sender)
	sender.On("Send", mock.Anything, mock.MatchedBy(func(p map[string]any) bool {
		return p["step"] == "category_selected"
	})).Return(detailsStep(), nil).Once()
	require.NoError(t, c.SelectOption(context.Background(), "3"))

	err := c.SubmitForm(context.Background(), map[string]string{"patient_name": "Anna", "phone": "  "})
	require.ErrorIs(t, err, ErrRequiredField)
	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "phone", verr.Fields[0].Field)

	sender.AssertNumberOfCalls(t, "Send", 2)
	assert.Equal(t, KindForm, KindOf(c.State().Affordance))
}

func TestController_SubmitFormReachesConfirmation(t *testing.T) {
	sender := new(mockSender)
	c := startedController(t, sender)
	sender.On("Send", mock.Anything, mock.MatchedBy(func(p map[string]any) bool {
		return p["step"] == "category_selected"
	})).Return(detailsStep(), nil).Once()
	require.NoError(t, c.SelectOption(context.Background(), "3"))

	sender.On("Send", mock.Anything, mock.MatchedBy(func(p map[string]any) bool {
		return p["step"] == "details_submitted" &&
			p["patient_name"] == "Anna" &&
			p["phone"] == "+36 1 234 5678" &&
			p["selected_category"] == "Cardiology"
	})).Return(&gateway.BookingResponse{
		Message:         "Your appointment is booked.",
		Options:         []gateway.BookingOption{{ID: model.NewFlexID("1"), Name: "stray"}},
		NextStep:        ConfirmationStep,
		FollowUpMessage: "We sent you a reminder.",
	}, nil).Once()

	err := c.SubmitForm(context.Background(), map[string]string{"patient_name": "Anna", "phone": "+36 1 234 5678"})
	require.NoError(t, err)

	state := c.State()
	assert.Equal(t, ConfirmationStep, state.Step)
	assert.Equal(t, KindConfirmation, KindOf(state.Affordance))
	assert.Equal(t, "Anna", state.Selections["patient_name"])

	n := len(state.Transcript)
	assert.Equal(t, "Submitting my information: Name: Anna, Phone: +36 1 234 5678, Notes: ", state.Transcript[n-3].Content)
	assert.Equal(t, "Your appointment is booked.", state.Transcript[n-2].Content)
	assert.Equal(t, "We sent you a reminder.", state.Transcript[n-1].Content)
	sender.AssertExpectations(t)
}

func TestController_SubmitWithoutForm(t *testing.T) {
	sender := new(mockSender)
	c := startedController(t, sender)
	assert.ErrorIs(t, c.SubmitForm(context.Background(), map[string]string{}), ErrNoForm)
}

func TestController_EmptyStepKeepsAffordance(t *testing.T) {
	sender := new(mockSender)
	c := startedController(t, sender)
	sender.On("Send", mock.Anything, mock.Anything).
		Return(&gateway.BookingResponse{Message: "No doctors available in that category.", NextStep: "doctor_selected"}, nil).Once()

	err := c.SelectOption(context.Background(), "3")
	assert.ErrorIs(t, err, ErrNoAffordance)

	state := c.State()
	assert.Equal(t, "category_selected", state.Step)
	assert.Equal(t, KindOptions, KindOf(state.Affordance))
	assert.NotContains(t, state.Selections, "selected_category")
	assert.Equal(t, "No doctors available in that category.", state.Transcript[len(state.Transcript)-1].Content)
}

func TestController_SingleRequestInFlight(t *testing.T) {
	sender := new(mockSender)
	c := startedController(t, sender)

	release := make(chan struct{})
	entered := make(chan struct{})
	sender.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(detailsStep(), nil).Once()

	done := make(chan error, 1)
	go func() { done <- c.SelectOption(context.Background(), "3") }()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first request never reached the backend")
	}

	assert.True(t, c.State().Loading)
	assert.ErrorIs(t, c.SelectOption(context.Background(), "4"), ErrRequestInFlight)
	assert.ErrorIs(t, c.Start(context.Background(), "en"), ErrRequestInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, c.State().Loading)
	sender.AssertNumberOfCalls(t, "Send", 2)
}

func TestController_SnapshotRoundTrip(t *testing.T) {
	sender := new(mockSender)
	c := startedController(t, sender)
	sender.On("Send", mock.Anything, mock.Anything).Return(detailsStep(), nil).Once()
	require.NoError(t, c.SelectOption(context.Background(), "3"))

	data, err := json.Marshal(c.Snapshot())
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))

	restored := NewController(new(mockSender), "en", zap.NewNop())
	require.NoError(t, restored.Restore(snap))

	state := restored.State()
	assert.Equal(t, "details_submitted", state.Step)
	assert.Equal(t, KindForm, KindOf(state.Affordance))
	assert.Equal(t, json.Number("3"), state.Selections["selected_category_id"])
	assert.Len(t, state.Transcript, len(c.State().Transcript))

	idJSON, err := json.Marshal(state.Selections["selected_category_id"])
	require.NoError(t, err)
	assert.Equal(t, "3", string(idJSON))
}
