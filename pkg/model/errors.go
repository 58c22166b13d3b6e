package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldError describes one field that failed client-side validation
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when input is rejected before any request is sent
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// Add records a failed field
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field failed
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// MedicationInput is the add/edit form for a medication reminder
type MedicationInput struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
	NextDose     string `json:"next_dose"`
	RefillDate   string `json:"refill_date"`
	Remaining    string `json:"remaining"`
	Status       string `json:"status"`
}

// Validate checks the required fields of the form
func (in MedicationInput) Validate() error {
	verr := &ValidationError{}

	required := []struct {
		field string
		value string
	}{
		{"name", in.Name},
		{"instructions", in.Instructions},
		{"next_dose", in.NextDose},
		{"refill_date", in.RefillDate},
		{"remaining", in.Remaining},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			verr.Add(r.field, "is required")
		}
	}

	if v := strings.TrimSpace(in.RefillDate); v != "" {
		if _, err := time.Parse("2006-01-02", v); err != nil {
			verr.Add("refill_date", "must be a date in YYYY-MM-DD format")
		}
	}
	if v := strings.TrimSpace(in.Remaining); v != "" {
		if n, err := strconv.Atoi(v); err != nil || n < 0 {
			verr.Add("remaining", "must be a non-negative whole number")
		}
	}
	if v := strings.TrimSpace(in.Status); v != "" {
		switch MedicationStatus(v) {
		case MedicationStatusUpcoming, MedicationStatusTaken, MedicationStatusCompleted:
		default:
			verr.Add("status", fmt.Sprintf("unknown status %q", v))
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// ToPayload converts a validated form into the backend request body
func (in MedicationInput) ToPayload() map[string]any {
	remaining, _ := strconv.Atoi(strings.TrimSpace(in.Remaining))
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = string(MedicationStatusUpcoming)
	}
	return map[string]any{
		"name":         strings.TrimSpace(in.Name),
		"instructions": strings.TrimSpace(in.Instructions),
		"next_dose":    strings.TrimSpace(in.NextDose),
		"refill_date":  strings.TrimSpace(in.RefillDate),
		"remaining":    remaining,
		"status":       status,
	}
}
