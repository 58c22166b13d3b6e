package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Health metric keys as the backend names them
const (
	MetricSystolicBP       = "systolic_bp"
	MetricDiastolicBP      = "diastolic_bp"
	MetricBloodGlucose     = "blood_glucose"
	MetricWeight           = "weight"
	MetricHeight           = "height"
	MetricDailySteps       = "daily_steps"
	MetricHeartRate        = "heart_rate"
	MetricSleepHours       = "sleep_hours"
	MetricOxygenSaturation = "oxygen_saturation"

	// MetricBloodPressure edits systolic and diastolic together
	MetricBloodPressure = "blood_pressure"
	// MetricAll edits every metric at once
	MetricAll = "all"
)

type metricRange struct {
	min, max float64
	// exact values are sent as entered; everything else is rounded
	exact bool
}

var metricRanges = map[string]metricRange{
	MetricSystolicBP:       {min: 50, max: 200},
	MetricDiastolicBP:      {min: 30, max: 150},
	MetricBloodGlucose:     {min: 50, max: 300},
	MetricWeight:           {min: 30, max: 200, exact: true},
	MetricHeight:           {min: 100, max: 250, exact: true},
	MetricDailySteps:       {min: 0, max: 50000},
	MetricHeartRate:        {min: 40, max: 200},
	MetricSleepHours:       {min: 0, max: 24},
	MetricOxygenSaturation: {min: 70, max: 100},
}

// metricOrder fixes the iteration order used for "all" edits
var metricOrder = []string{
	MetricSystolicBP,
	MetricDiastolicBP,
	MetricBloodGlucose,
	MetricWeight,
	MetricHeight,
	MetricDailySteps,
	MetricHeartRate,
	MetricSleepHours,
	MetricOxygenSaturation,
}

// IsEditableMetric reports whether metric names something BuildMetricPatch accepts
func IsEditableMetric(metric string) bool {
	if metric == MetricAll || metric == MetricBloodPressure {
		return true
	}
	_, ok := metricRanges[metric]
	return ok
}

// BuildMetricPatch builds the partial-update payload for one metric edit.
// Blank values are left out; values are range checked and rounded to whole
// numbers except height and weight. A blood pressure edit sends both readings
// as entered.
func BuildMetricPatch(metric string, values map[string]string) (map[string]any, error) {
	if !IsEditableMetric(metric) {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}

	var keys []string
	switch metric {
	case MetricAll:
		keys = metricOrder
	case MetricBloodPressure:
		keys = []string{MetricSystolicBP, MetricDiastolicBP}
	default:
		keys = []string{metric}
	}

	patch := make(map[string]any, len(keys))
	verr := &ValidationError{}

	for _, key := range keys {
		raw := strings.TrimSpace(values[key])
		if raw == "" {
			if metric == MetricBloodPressure {
				verr.Add(key, "is required")
			}
			continue
		}

		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			verr.Add(key, "must be a number")
			continue
		}

		bounds := metricRanges[key]
		if value < bounds.min || value > bounds.max {
			verr.Add(key, fmt.Sprintf("must be between %g and %g", bounds.min, bounds.max))
			continue
		}

		if bounds.exact || metric == MetricBloodPressure {
			patch[key] = value
		} else {
			patch[key] = int(math.Round(value))
		}
	}

	if verr.HasErrors() {
		return nil, verr
	}
	if len(patch) == 0 {
		return nil, &ValidationError{Fields: []FieldError{{Field: metric, Message: "no value provided"}}}
	}
	return patch, nil
}
