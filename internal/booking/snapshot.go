package booking

import (
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
)

// Snapshot is the persistable form of a dialogue
type Snapshot struct {
	Step       string          `json:"step"`
	Affordance AffordanceView  `json:"affordance"`
	Selections Selections      `json:"selections"`
	Language   string          `json:"language"`
	Transcript []model.Message `json:"transcript"`
}

// Snapshot captures the dialogue so a reconnecting visitor can resume it
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Step:       c.step,
		Affordance: ViewOf(c.affordance),
		Selections: c.selections.Clone(),
		Language:   c.language,
		Transcript: append([]model.Message(nil), c.transcript...),
	}
}

// Restore replaces the dialogue with a snapshot. It fails while a request is outstanding.
func (c *Controller) Restore(s Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading {
		return ErrRequestInFlight
	}

	c.step = s.Step
	if c.step == "" {
		c.step = InitialStep
	}
	c.affordance = s.Affordance.Affordance()
	c.selections = s.Selections.Clone()
	if s.Language != "" {
		c.language = s.Language
	}
	c.transcript = append([]model.Message(nil), s.Transcript...)
	return nil
}
