package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/gateway"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
	"go.uber.org/zap"
)

// InitialStep is the step name that opens a booking dialogue
const InitialStep = "initial"

// DefaultLanguage is used until the patient or the backend picks another one
const DefaultLanguage = "en"

// Apologies shown when a turn fails
const (
	StartFailedMessage  = "Sorry, there was an error connecting to the appointment system. Please try again later."
	SelectFailedMessage = "Sorry, there was an error processing your selection. Please try again."
	SubmitFailedMessage = "Sorry, there was an error booking your appointment. Please try again."
)

// Errors returned by the controller before anything is sent
var (
	// ErrRequestInFlight means a previous turn has not finished yet
	ErrRequestInFlight = errors.New("a booking request is already in progress")
	// ErrUnknownOption means the option id is not among the presented options
	ErrUnknownOption = errors.New("option is not offered at this step")
	// ErrNoForm means the current step presents no form
	ErrNoForm = errors.New("no form is offered at this step")
	// ErrRequiredField wraps the *model.ValidationError of a rejected form
	ErrRequiredField = errors.New("required form field is empty")
)

// Sender delivers one dialogue turn to the backend
type Sender interface {
	Send(ctx context.Context, payload map[string]any) (*gateway.BookingResponse, error)
}

// State is an immutable copy of the dialogue
type State struct {
	Step       string
	Affordance Affordance
	Selections Selections
	Language   string
	Transcript []model.Message
	Loading    bool
}

// Controller follows the server-driven booking dialogue. The backend decides
// every step; the controller only renders what it is given and resends the
// accumulated selections.
type Controller struct {
	sender Sender
	logger *zap.Logger

	mu         sync.Mutex
	step       string
	affordance Affordance
	selections Selections
	language   string
	transcript []model.Message
	loading    bool
}

// NewController creates a booking controller for one patient session
func NewController(sender Sender, language string, logger *zap.Logger) *Controller {
	if language == "" {
		language = DefaultLanguage
	}
	return &Controller{
		sender:     sender,
		logger:     logger,
		step:       InitialStep,
		selections: Selections{},
		language:   language,
	}
}

// State returns a copy of the current dialogue
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	return State{
		Step:       c.step,
		Affordance: ViewOf(c.affordance).Affordance(),
		Selections: c.selections.Clone(),
		Language:   c.language,
		Transcript: append([]model.Message(nil), c.transcript...),
		Loading:    c.loading,
	}
}

// Start opens a new dialogue. The transcript is reset to the backend's greeting.
func (c *Controller) Start(ctx context.Context, language string) error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrRequestInFlight
	}
	c.loading = true
	if language != "" {
		c.language = language
	}
	payload := map[string]any{
		"step":     InitialStep,
		"language": c.language,
	}
	c.mu.Unlock()

	resp, err := c.sender.Send(ctx, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false

	if err != nil {
		c.adoptErrorLanguage(err)
		c.transcript = []model.Message{model.BotMessage(StartFailedMessage)}
		c.logger.Error("failed to start booking dialogue", zap.Error(err))
		return fmt.Errorf("failed to start booking: %w", err)
	}

	c.transcript = []model.Message{model.BotMessage(resp.Message)}
	c.step = InitialStep
	c.affordance = nil
	c.selections = Selections{}
	return c.applyLocked(resp, Selections{}, "start")
}

// SelectOption picks one of the presented options. The option stays in the
// selections even when the turn fails; step and affordance only move on a
// successful response.
func (c *Controller) SelectOption(ctx context.Context, optionID string) error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrRequestInFlight
	}
	options, ok := c.affordance.(Options)
	if !ok {
		c.mu.Unlock()
		return ErrUnknownOption
	}
	option, ok := options.Find(optionID)
	if !ok {
		c.mu.Unlock()
		return ErrUnknownOption
	}

	c.transcript = append(c.transcript, model.UserMessage(option.Name))

	key := SelectionKey(c.step)
	merged := c.selections.Clone()
	merged[key] = option.Name
	merged[key+"_id"] = option.ID

	payload := make(map[string]any, len(merged)+3)
	payload["step"] = c.step
	payload["selection_id"] = option.ID
	payload["language"] = c.language
	for k, v := range merged {
		payload[k] = v
	}

	c.loading = true
	c.mu.Unlock()

	resp, err := c.sender.Send(ctx, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false

	if err != nil {
		c.adoptErrorLanguage(err)
		c.selections = merged
		c.transcript = append(c.transcript, model.BotMessage(SelectFailedMessage))
		c.logger.Error("booking selection failed",
			zap.String("step", c.step),
			zap.String("option_id", optionID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to submit selection: %w", err)
	}

	c.transcript = append(c.transcript, model.BotMessage(resp.Message))
	return c.applyLocked(resp, merged, "select")
}

// SubmitForm sends the values of the presented form. Required fields must be
// filled in; otherwise nothing is sent.
func (c *Controller) SubmitForm(ctx context.Context, values map[string]string) error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrRequestInFlight
	}
	form, ok := c.affordance.(Form)
	if !ok {
		c.mu.Unlock()
		return ErrNoForm
	}

	verr := &model.ValidationError{}
	for _, field := range form.Fields {
		if field.Required && strings.TrimSpace(values[field.Name]) == "" {
			verr.Add(field.Name, "is required")
		}
	}
	if verr.HasErrors() {
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrRequiredField, verr)
	}

	summary := make([]string, 0, len(form.Fields))
	for _, field := range form.Fields {
		summary = append(summary, fmt.Sprintf("%s: %s", field.Label, values[field.Name]))
	}
	c.transcript = append(c.transcript, model.UserMessage("Submitting my information: "+strings.Join(summary, ", ")))

	merged := c.selections.Clone()
	for k, v := range values {
		merged[k] = v
	}

	payload := make(map[string]any, len(merged)+2)
	for k, v := range merged {
		payload[k] = v
	}
	payload["step"] = c.step
	payload["language"] = c.language

	c.loading = true
	c.mu.Unlock()

	resp, err := c.sender.Send(ctx, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false

	if err != nil {
		c.adoptErrorLanguage(err)
		c.transcript = append(c.transcript, model.BotMessage(SubmitFailedMessage))
		c.logger.Error("booking form submission failed",
			zap.String("step", c.step),
			zap.Error(err),
		)
		return fmt.Errorf("failed to submit booking form: %w", err)
	}

	c.transcript = append(c.transcript, model.BotMessage(resp.Message))
	return c.applyLocked(resp, merged, "submit")
}

// applyLocked commits a successful response. The caller holds c.mu and has
// already appended the response message.
func (c *Controller) applyLocked(resp *gateway.BookingResponse, merged Selections, phase string) error {
	if resp.Language != "" {
		c.language = resp.Language
	}

	if len(resp.Options) > 0 && len(resp.FormFields) > 0 && resp.NextStep != ConfirmationStep {
		c.logger.Warn("booking step offered both options and form fields, showing options",
			zap.String("next_step", resp.NextStep),
		)
	}

	affordance, selections, err := Transition(merged, resp)
	if err != nil {
		c.logger.Warn("booking step offered nothing to act on, keeping previous step",
			zap.String("phase", phase),
			zap.String("step", c.step),
			zap.String("next_step", resp.NextStep),
		)
		return err
	}

	c.affordance = affordance
	c.selections = selections
	if resp.NextStep != "" {
		c.step = resp.NextStep
	}
	if resp.FollowUpMessage != "" {
		c.transcript = append(c.transcript, model.BotMessage(resp.FollowUpMessage))
	}

	c.logger.Info("booking step advanced",
		zap.String("phase", phase),
		zap.String("step", c.step),
		zap.String("affordance", string(affordance.Kind())),
		zap.String("language", c.language),
	)
	return nil
}

func (c *Controller) adoptErrorLanguage(err error) {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		if lang := apiErr.Language(); lang != "" {
			c.language = lang
		}
	}
}
