package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/oapi-codegen/runtime/types"
)

// The backend's payloads are loosely typed: remaining counts arrive as "15
// tablets", ids as numbers or strings, optional fields go missing. Everything
// below turns such records into fully-defined values.

// NormalizeMedications decodes a medication list. Anything other than a JSON
// array yields an empty, non-nil slice.
func NormalizeMedications(data []byte) []Medication {
	records := decodeRecords(data)
	medications := make([]Medication, 0, len(records))
	for _, rec := range records {
		medications = append(medications, NormalizeMedication(rec))
	}
	return medications
}

// NormalizeMedication fills every field of a single medication record with a
// defined value
func NormalizeMedication(rec map[string]any) Medication {
	remaining := intValue(rec["remaining"])
	if remaining < 0 {
		remaining = 0
	}

	status := MedicationStatus(strings.ToLower(stringValue(rec["status"])))
	switch status {
	case MedicationStatusUpcoming, MedicationStatusTaken, MedicationStatusCompleted:
	default:
		status = MedicationStatusUpcoming
	}

	return Medication{
		ID:           idValue(rec["id"]),
		Name:         stringValue(rec["name"]),
		Instructions: stringValue(rec["instructions"]),
		NextDose:     stringValue(rec["next_dose"]),
		RefillDate:   dateValue(rec["refill_date"]),
		Remaining:    remaining,
		Status:       status,
	}
}

// DecodeMedication decodes a single medication object, e.g. the body returned
// by an add or update call
func DecodeMedication(data []byte) (Medication, bool) {
	rec, ok := decodeRecord(data)
	if !ok {
		return Medication{}, false
	}
	return NormalizeMedication(rec), true
}

// NormalizeStats decodes the medication stats object; missing counters are zero
func NormalizeStats(data []byte) MedicationStats {
	rec, _ := decodeRecord(data)
	return MedicationStats{
		Total:      nonNegative(intValue(rec["total"])),
		Upcoming:   nonNegative(intValue(rec["upcoming"])),
		Taken:      nonNegative(intValue(rec["taken"])),
		Missed:     nonNegative(intValue(rec["missed"])),
		RefillSoon: nonNegative(intValue(rec["refill_soon"])),
	}
}

// NormalizeAppointments decodes an appointment list. Anything other than a
// JSON array yields an empty, non-nil slice.
func NormalizeAppointments(data []byte) []Appointment {
	records := decodeRecords(data)
	appointments := make([]Appointment, 0, len(records))
	for _, rec := range records {
		appointments = append(appointments, NormalizeAppointment(rec))
	}
	return appointments
}

// NormalizeAppointment fills every field of a single appointment record
func NormalizeAppointment(rec map[string]any) Appointment {
	status := AppointmentStatus(strings.ToLower(stringValue(rec["status"])))
	switch status {
	case AppointmentStatusUpcoming, AppointmentStatusScheduled, AppointmentStatusCompleted, AppointmentStatusCancelled:
	case "canceled":
		status = AppointmentStatusCancelled
	default:
		status = AppointmentStatusUpcoming
	}

	return Appointment{
		ID:          idValue(rec["id"]),
		Date:        dateValue(rec["date"]),
		Time:        stringValue(rec["time"]),
		Doctor:      nameValue(rec["doctor"]),
		Specialty:   nameValue(rec["specialty"]),
		Category:    nameValue(rec["category"]),
		Subcategory: nameValue(rec["subcategory"]),
		Location:    nameValue(rec["location"]),
		Status:      status,
	}
}

// NormalizeHealthMetrics decodes the latest-metrics object. The health score is
// clamped to 0-100.
func NormalizeHealthMetrics(data []byte) HealthMetrics {
	rec, _ := decodeRecord(data)

	score := int(math.Round(floatValue(rec["health_score"])))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return HealthMetrics{
		ID:               idValue(rec["id"]),
		SystolicBP:       floatPtr(rec[MetricSystolicBP]),
		DiastolicBP:      floatPtr(rec[MetricDiastolicBP]),
		BloodGlucose:     floatPtr(rec[MetricBloodGlucose]),
		Weight:           floatPtr(rec[MetricWeight]),
		Height:           floatPtr(rec[MetricHeight]),
		DailySteps:       floatPtr(rec[MetricDailySteps]),
		HeartRate:        floatPtr(rec[MetricHeartRate]),
		SleepHours:       floatPtr(rec[MetricSleepHours]),
		OxygenSaturation: floatPtr(rec[MetricOxygenSaturation]),
		HealthScore:      score,
	}
}

func decodeRecords(data []byte) []map[string]any {
	var items []any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		return nil
	}
	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(map[string]any); ok {
			records = append(records, rec)
		}
	}
	return records
}

func decodeRecord(data []byte) (map[string]any, bool) {
	var rec map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil || rec == nil {
		return map[string]any{}, false
	}
	return rec, true
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// nameValue accepts either a plain string or an object carrying a name
func nameValue(v any) string {
	if obj, ok := v.(map[string]any); ok {
		return stringValue(obj["name"])
	}
	return stringValue(v)
}

func intValue(v any) int {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return int(n)
		}
		if f, err := val.Float64(); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int(f)
		}
	case string:
		return leadingInt(val)
	case float64:
		return int(val)
	}
	return 0
}

// leadingInt parses the integer prefix of strings such as "15 tablets"
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) {
		r := rune(s[end])
		if unicode.IsDigit(r) || (end == 0 && r == '-') {
			end++
			continue
		}
		break
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func floatValue(v any) float64 {
	if p := floatPtr(v); p != nil {
		return *p
	}
	return 0
}

func floatPtr(v any) *float64 {
	var f float64
	switch val := v.(type) {
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil
		}
		f = parsed
	case float64:
		f = val
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func idValue(v any) FlexID {
	switch val := v.(type) {
	case json.Number:
		return FlexID{raw: json.RawMessage(val.String())}
	case string:
		if val == "" {
			return FlexID{}
		}
		raw, _ := json.Marshal(val)
		return FlexID{raw: raw}
	default:
		return FlexID{}
	}
}

func dateValue(v any) *types.Date {
	s := stringValue(v)
	if len(s) < len("2006-01-02") {
		return nil
	}
	t, err := time.Parse("2006-01-02", s[:10])
	if err != nil {
		return nil
	}
	return &types.Date{Time: t}
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
