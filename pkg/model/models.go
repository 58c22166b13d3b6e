package model

import (
	"time"

	"github.com/oapi-codegen/runtime/types"
)

// MedicationStatus represents where a medication is in its dosing lifecycle
type MedicationStatus string

const (
	MedicationStatusUpcoming  MedicationStatus = "upcoming"
	MedicationStatusTaken     MedicationStatus = "taken"
	MedicationStatusCompleted MedicationStatus = "completed"
)

// Medication represents a medication reminder as rendered to the patient
type Medication struct {
	ID           FlexID           `json:"id"`
	Name         string           `json:"name"`
	Instructions string           `json:"instructions"`
	NextDose     string           `json:"next_dose"`
	RefillDate   *types.Date      `json:"refill_date,omitempty"`
	Remaining    int              `json:"remaining"`
	Status       MedicationStatus `json:"status"`
}

// ApplyTaken records one dose: remaining drops by one (never below zero) and
// the medication completes once nothing is left.
func (m *Medication) ApplyTaken() {
	if m.Remaining > 0 {
		m.Remaining--
	}
	if m.Remaining == 0 {
		m.Status = MedicationStatusCompleted
	}
}

// IsActive reports whether the medication still counts towards the active total
func (m Medication) IsActive() bool {
	return m.Status != MedicationStatusCompleted
}

// MedicationStats is the backend's adherence summary
type MedicationStats struct {
	Total      int `json:"total"`
	Upcoming   int `json:"upcoming"`
	Taken      int `json:"taken"`
	Missed     int `json:"missed"`
	RefillSoon int `json:"refill_soon"`
}

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusUpcoming  AppointmentStatus = "upcoming"
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Appointment represents a booked visit
type Appointment struct {
	ID          FlexID            `json:"id"`
	Date        *types.Date       `json:"date,omitempty"`
	Time        string            `json:"time"`
	Doctor      string            `json:"doctor"`
	Specialty   string            `json:"specialty"`
	Category    string            `json:"category"`
	Subcategory string            `json:"subcategory"`
	Location    string            `json:"location"`
	Status      AppointmentStatus `json:"status"`
}

// IsUpcoming reports whether the appointment still lies ahead of the patient
func (a Appointment) IsUpcoming() bool {
	return a.Status == AppointmentStatusUpcoming || a.Status == AppointmentStatusScheduled
}

// HealthMetrics is the per-user snapshot of latest vitals
type HealthMetrics struct {
	ID               FlexID   `json:"id"`
	SystolicBP       *float64 `json:"systolic_bp,omitempty"`
	DiastolicBP      *float64 `json:"diastolic_bp,omitempty"`
	BloodGlucose     *float64 `json:"blood_glucose,omitempty"`
	Weight           *float64 `json:"weight,omitempty"`
	Height           *float64 `json:"height,omitempty"`
	DailySteps       *float64 `json:"daily_steps,omitempty"`
	HeartRate        *float64 `json:"heart_rate,omitempty"`
	SleepHours       *float64 `json:"sleep_hours,omitempty"`
	OxygenSaturation *float64 `json:"oxygen_saturation,omitempty"`
	HealthScore      int      `json:"health_score"`
}

// HealthStatus maps a 0-100 health score to the label shown next to it
func HealthStatus(score int) string {
	switch {
	case score >= 90:
		return "Excellent"
	case score >= 80:
		return "Very Good"
	case score >= 70:
		return "Good"
	case score >= 60:
		return "Fair"
	default:
		return "Needs Improvement"
	}
}

// MessageRole represents the author of a transcript message
type MessageRole string

const (
	MessageRoleUser MessageRole = "user"
	MessageRoleBot  MessageRole = "bot"
)

// Message represents one turn in a chat or booking transcript
type Message struct {
	Role      MessageRole `json:"type"`
	Content   string      `json:"content"`
	MediaRef  string      `json:"media_ref,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// UserMessage creates a user turn stamped with the current time
func UserMessage(content string) Message {
	return Message{Role: MessageRoleUser, Content: content, CreatedAt: time.Now()}
}

// BotMessage creates a bot turn stamped with the current time
func BotMessage(content string) Message {
	return Message{Role: MessageRoleBot, Content: content, CreatedAt: time.Now()}
}
