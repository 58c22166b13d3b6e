package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// OperationType represents the type of operation the patient asked for
type OperationType string

const (
	OperationCreate OperationType = "CREATE"
	OperationUpdate OperationType = "UPDATE"
	OperationDelete OperationType = "DELETE"
)

// ResourceType represents the kind of record the operation targets
type ResourceType string

const (
	ResourceMedication     ResourceType = "medication"
	ResourceMedicationDose ResourceType = "medication_dose"
	ResourceAppointment    ResourceType = "appointment"
	ResourceHealthMetrics  ResourceType = "health_metrics"
	ResourceBooking        ResourceType = "appointment_booking"
)

// Outcome of an audited operation
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuditLog represents an audit log entry
type AuditLog struct {
	SessionID      string                 `json:"session_id"`
	OperationType  OperationType          `json:"operation"`
	ResourceType   ResourceType           `json:"resource_type"`
	ResourceID     string                 `json:"resource_id,omitempty"`
	Outcome        string                 `json:"outcome"`
	Error          string                 `json:"error,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	AdditionalData map[string]interface{} `json:"additional_data,omitempty"`
}

type sessionKey struct{}

// WithSessionID tags ctx with the patient session the request belongs to
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionID returns the session tagged on ctx, if any
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// Logger writes the audit trail of patient write intents to the structured
// log and keeps the most recent entries in memory
type Logger struct {
	logger   *zap.Logger
	capacity int

	mu      sync.Mutex
	entries []AuditLog
	next    int
	full    bool
}

// NewLogger creates a new audit logger retaining up to capacity entries
func NewLogger(logger *zap.Logger, capacity int) *Logger {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Logger{
		logger:   logger.Named("audit"),
		capacity: capacity,
		entries:  make([]AuditLog, capacity),
	}
}

// Log records an audit log entry. A nil Logger discards it.
func (l *Logger) Log(ctx context.Context, entry AuditLog) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.SessionID == "" {
		entry.SessionID = SessionID(ctx)
	}
	if entry.Outcome == "" {
		entry.Outcome = OutcomeSuccess
	}

	fields := []zap.Field{
		zap.String("session_id", entry.SessionID),
		zap.String("operation", string(entry.OperationType)),
		zap.String("resource_type", string(entry.ResourceType)),
		zap.String("resource_id", entry.ResourceID),
		zap.String("outcome", entry.Outcome),
		zap.Time("timestamp", entry.Timestamp),
	}
	if entry.Error != "" {
		fields = append(fields, zap.String("error", entry.Error))
	}
	if len(entry.AdditionalData) > 0 {
		fields = append(fields, zap.Any("additional_data", entry.AdditionalData))
	}
	l.logger.Info("Audit log entry", fields...)

	l.mu.Lock()
	l.entries[l.next] = entry
	l.next = (l.next + 1) % l.capacity
	if l.next == 0 {
		l.full = true
	}
	l.mu.Unlock()
}

// Record logs the outcome of one operation; err nil means success
func (l *Logger) Record(ctx context.Context, op OperationType, resource ResourceType, resourceID string, err error) {
	entry := AuditLog{
		OperationType: op,
		ResourceType:  resource,
		ResourceID:    resourceID,
		Outcome:       OutcomeSuccess,
	}
	if err != nil {
		entry.Outcome = OutcomeFailure
		entry.Error = err.Error()
	}
	l.Log(ctx, entry)
}

// GetAuditLogs returns the newest entries of a session, newest first
func (l *Logger) GetAuditLogs(sessionID string, limit int) []AuditLog {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.next
	if l.full {
		count = l.capacity
	}

	logs := []AuditLog{}
	for i := 0; i < count && (limit <= 0 || len(logs) < limit); i++ {
		idx := (l.next - 1 - i + l.capacity) % l.capacity
		if l.entries[idx].SessionID == sessionID {
			logs = append(logs, l.entries[idx])
		}
	}
	return logs
}
