package model

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyTaken(t *testing.T) {
	last := Medication{Remaining: 1, Status: MedicationStatusUpcoming}
	last.ApplyTaken()
	assert.Equal(t, 0, last.Remaining)
	assert.Equal(t, MedicationStatusCompleted, last.Status)
	assert.False(t, last.IsActive())

	plenty := Medication{Remaining: 5, Status: MedicationStatusUpcoming}
	plenty.ApplyTaken()
	assert.Equal(t, 4, plenty.Remaining)
	assert.Equal(t, MedicationStatusUpcoming, plenty.Status)
	assert.True(t, plenty.IsActive())

	empty := Medication{Remaining: 0, Status: MedicationStatusUpcoming}
	empty.ApplyTaken()
	assert.Equal(t, 0, empty.Remaining)
	assert.Equal(t, MedicationStatusCompleted, empty.Status)
}

func TestProperty_ApplyTakenDecrementsUntilCompleted(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("taking a dose decrements remaining and completes at zero", prop.ForAll(
		func(remaining int) bool {
			m := Medication{Remaining: remaining, Status: MedicationStatusUpcoming}
			m.ApplyTaken()
			if m.Remaining != remaining-1 {
				return false
			}
			if m.Remaining == 0 {
				return m.Status == MedicationStatusCompleted
			}
			return m.Status == MedicationStatusUpcoming
		},
		gen.IntRange(1, 10000),
	))

	properties.TestingRun(t)
}

func TestHealthStatus(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "Excellent"},
		{90, "Excellent"},
		{89, "Very Good"},
		{80, "Very Good"},
		{75, "Good"},
		{60, "Fair"},
		{59, "Needs Improvement"},
		{0, "Needs Improvement"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HealthStatus(tt.score), "score %d", tt.score)
	}
}

func TestBuildMetricPatch(t *testing.T) {
	t.Run("rounds whole-number metrics", func(t *testing.T) {
		patch, err := BuildMetricPatch(MetricHeartRate, map[string]string{MetricHeartRate: "72.6"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{MetricHeartRate: 73}, patch)
	})

	t.Run("keeps weight and height as entered", func(t *testing.T) {
		patch, err := BuildMetricPatch(MetricWeight, map[string]string{MetricWeight: "71.4"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{MetricWeight: 71.4}, patch)
	})

	t.Run("blood pressure needs both values", func(t *testing.T) {
		_, err := BuildMetricPatch(MetricBloodPressure, map[string]string{MetricSystolicBP: "120"})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		require.Len(t, verr.Fields, 1)
		assert.Equal(t, MetricDiastolicBP, verr.Fields[0].Field)

		patch, err := BuildMetricPatch(MetricBloodPressure, map[string]string{
			MetricSystolicBP:  "121.5",
			MetricDiastolicBP: "79",
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{MetricSystolicBP: 121.5, MetricDiastolicBP: 79.0}, patch)

		patch, err = BuildMetricPatch(MetricAll, map[string]string{MetricSystolicBP: "121.5"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{MetricSystolicBP: 122}, patch)
	})

	t.Run("rejects out of range values", func(t *testing.T) {
		_, err := BuildMetricPatch(MetricOxygenSaturation, map[string]string{MetricOxygenSaturation: "65"})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, MetricOxygenSaturation, verr.Fields[0].Field)
	})

	t.Run("rejects non numeric input", func(t *testing.T) {
		_, err := BuildMetricPatch(MetricDailySteps, map[string]string{MetricDailySteps: "lots"})
		assert.Error(t, err)
	})

	t.Run("all omits blank values", func(t *testing.T) {
		patch, err := BuildMetricPatch(MetricAll, map[string]string{
			MetricSleepHours: "7",
			MetricHeight:     "180.5",
			MetricHeartRate:  "  ",
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{MetricSleepHours: 7, MetricHeight: 180.5}, patch)
	})

	t.Run("blank single metric is rejected", func(t *testing.T) {
		_, err := BuildMetricPatch(MetricBloodGlucose, map[string]string{})
		assert.Error(t, err)
	})

	t.Run("unknown metric", func(t *testing.T) {
		_, err := BuildMetricPatch("cholesterol", map[string]string{"cholesterol": "5"})
		assert.Error(t, err)
		assert.False(t, IsEditableMetric("cholesterol"))
	})
}

func TestMedicationInput_Validate(t *testing.T) {
	valid := MedicationInput{
		Name:         "Lisinopril",
		Instructions: "Take one tablet with water",
		NextDose:     "08:00",
		RefillDate:   "2025-07-01",
		Remaining:    "30",
	}
	require.NoError(t, valid.Validate())

	payload := valid.ToPayload()
	assert.Equal(t, 30, payload["remaining"])
	assert.Equal(t, "upcoming", payload["status"])

	err := MedicationInput{Name: "  ", Remaining: "-1", RefillDate: "next week"}.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	fields := map[string]bool{}
	for _, f := range verr.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["name"])
	assert.True(t, fields["instructions"])
	assert.True(t, fields["next_dose"])
	assert.True(t, fields["refill_date"])
	assert.True(t, fields["remaining"])
	assert.Contains(t, verr.Error(), "validation failed")
}
