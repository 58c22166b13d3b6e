package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/gateway"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/gateway/gatewaytest"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
	"go.uber.org/zap"
)

func TestMedicationGateway_TodayNormalizes(t *testing.T) {
	backend := gatewaytest.NewBackend(t)
	backend.JSON(http.MethodGet, "/api/medications/today/", http.StatusOK,
		`[{"id": 1, "name": "Aspirin", "remaining": "15 tablets"}, {"id": 2, "name": "Metformin"}]`)

	gw := gateway.NewMedicationGateway(backend.NewClient(t), zap.NewNop())
	meds := gw.Today(context.Background())

	require.Len(t, meds, 2)
	assert.Equal(t, 15, meds[0].Remaining)
	assert.Equal(t, 0, meds[1].Remaining)
	assert.Equal(t, model.MedicationStatusUpcoming, meds[1].Status)
}

func TestMedicationGateway_ReadsDegrade(t *testing.T) {
	backend := gatewaytest.NewBackend(t)
	backend.JSON(http.MethodGet, "/api/medications/", http.StatusInternalServerError, `{"error": "db down"}`)
	backend.JSON(http.MethodGet, "/api/medications/today/", http.StatusBadGateway, `{}`)
	backend.JSON(http.MethodGet, "/api/medications/stats/", http.StatusServiceUnavailable, `{}`)

	gw := gateway.NewMedicationGateway(backend.NewClient(t), zap.NewNop())
	ctx := context.Background()

	list := gw.List(ctx)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	today := gw.Today(ctx)
	assert.NotNil(t, today)
	assert.Empty(t, today)

	assert.Equal(t, model.MedicationStats{}, gw.Stats(ctx))

	// no retries
	assert.Equal(t, 1, backend.Count(http.MethodGet, "/api/medications/today/"))
}

func TestMedicationGateway_StrictContractDegradesMalformedList(t *testing.T) {
	backend := gatewaytest.NewBackend(t)
	backend.JSON(http.MethodGet, "/api/medications/", http.StatusOK, `{"results": [{"id": 1}]}`)

	gw := gateway.NewMedicationGateway(backend.NewClient(t), zap.NewNop())
	meds := gw.List(context.Background())
	assert.NotNil(t, meds)
	assert.Empty(t, meds)
}

func TestMedicationGateway_WritesPropagate(t *testing.T) {
	backend := gatewaytest.NewBackend(t)
	backend.JSON(http.MethodPost, "/api/medications/7/mark_as_taken/", http.StatusBadRequest, `{"detail": "already taken"}`)
	backend.JSON(http.MethodDelete, "/api/medications/7/", http.StatusNotFound, `{"detail": "missing"}`)

	gw := gateway.NewMedicationGateway(backend.NewClient(t), zap.NewNop())
	ctx := context.Background()

	err := gw.MarkAsTaken(ctx, model.NewFlexID("7"), "")
	require.Error(t, err)
	var apiErr *gateway.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "already taken", apiErr.Message())

	err = gw.Delete(ctx, model.NewFlexID("7"))
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestMedicationGateway_AddSendsPayload(t *testing.T) {
	backend := gatewaytest.NewBackend(t)
	backend.JSON(http.MethodPost, "/api/medications/", http.StatusCreated,
		`{"id": 11, "name": "Lisinopril", "remaining": 30, "status": "upcoming"}`)
	backend.JSON(http.MethodPost, "/api/medications/11/mark_as_taken/", http.StatusOK, `{"status": "ok"}`)

	gw := gateway.NewMedicationGateway(backend.NewClient(t), zap.NewNop())
	ctx := context.Background()

	med, err := gw.Add(ctx, model.MedicationInput{
		Name:         "Lisinopril",
		Instructions: "Once daily",
		NextDose:     "08:00",
		RefillDate:   "2025-07-01",
		Remaining:    "30",
	})
	require.NoError(t, err)
	assert.Equal(t, "11", med.ID.String())

	req, ok := backend.Last(http.MethodPost, "/api/medications/")
	require.True(t, ok)
	var sent map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &sent))
	assert.Equal(t, "Lisinopril", sent["name"])
	assert.Equal(t, float64(30), sent["remaining"])

	require.NoError(t, gw.MarkAsTaken(ctx, med.ID, "with breakfast"))
	req, ok = backend.Last(http.MethodPost, "/api/medications/11/mark_as_taken/")
	require.True(t, ok)
	assert.JSONEq(t, `{"notes": "with breakfast"}`, string(req.Body))
}

func TestMetricAndAppointmentGateways(t *testing.T) {
	backend := gatewaytest.NewBackend(t)
	backend.JSON(http.MethodGet, "/api/health-metrics/latest/", http.StatusOK, `{"id": 5, "heart_rate": 70, "health_score": 84}`)
	backend.JSON(http.MethodPatch, "/api/health-metrics/5/", http.StatusOK, `{"id": 5, "heart_rate": 72, "health_score": 85}`)
	backend.JSON(http.MethodGet, "/api/appointments/user_appointments/", http.StatusOK,
		`[{"id": 42, "date": "2025-06-10", "time": "10:00", "doctor": "Dr. Szabo", "status": "upcoming"}]`)
	backend.JSON(http.MethodPost, "/api/appointments/42/cancel/", http.StatusInternalServerError, `{"error": "nope"}`)

	client := backend.NewClient(t)
	metrics := gateway.NewMetricGateway(client, zap.NewNop())
	appts := gateway.NewAppointmentGateway(client, zap.NewNop())
	ctx := context.Background()

	latest := metrics.Latest(ctx)
	assert.Equal(t, 84, latest.HealthScore)

	updated, err := metrics.Patch(ctx, latest.ID, map[string]any{"heart_rate": 72})
	require.NoError(t, err)
	assert.Equal(t, 85, updated.HealthScore)

	list := appts.List(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, "Dr. Szabo", list[0].Doctor)

	assert.Error(t, appts.Cancel(ctx, list[0].ID))
}

func TestBookingGateway_Send(t *testing.T) {
	backend := gatewaytest.NewBackend(t)
	backend.JSON(http.MethodPost, "/api/appointment-chatbot/", http.StatusOK, `{
		"message": "Choose a doctor",
		"options": [{"id": 9, "name": "Dr. Toth"}],
		"next_step": "doctor_selected",
		"language": "hu",
		"selected_location": "Budapest",
		"selected_location_id": 4,
		"selected_date": ""
	}`)

	gw := gateway.NewBookingGateway(backend.NewClient(t), zap.NewNop())
	resp, err := gw.Send(context.Background(), map[string]any{"step": "location_selected", "language": "en"})
	require.NoError(t, err)

	assert.Equal(t, "doctor_selected", resp.NextStep)
	assert.Equal(t, "hu", resp.Language)
	require.Len(t, resp.Options, 1)
	assert.Equal(t, "9", resp.Options[0].ID.String())
	assert.Equal(t, "Budapest", resp.Selected["selected_location"])
	assert.Equal(t, json.Number("4"), resp.Selected["selected_location_id"])
	assert.NotContains(t, resp.Selected, "selected_date")
}

func TestBookingGateway_ErrorCarriesLanguage(t *testing.T) {
	backend := gatewaytest.NewBackend(t)
	backend.JSON(http.MethodPost, "/api/appointment-chatbot/", http.StatusBadRequest, `{"error": "slot taken", "language": "hi"}`)

	gw := gateway.NewBookingGateway(backend.NewClient(t), zap.NewNop())
	_, err := gw.Send(context.Background(), map[string]any{"step": "form"})

	var apiErr *gateway.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "hi", apiErr.Language())
}

func TestChatGateway_QueryIsMultipart(t *testing.T) {
	backend := gatewaytest.NewBackend(t)
	backend.JSON(http.MethodPost, "/chatbot/query/", http.StatusOK, `{"ai_response": "Keep the wound clean."}`)

	gw := gateway.NewChatGateway(backend.NewClient(t))
	resp, err := gw.Query(context.Background(), "What is this rash?", &gateway.Attachment{
		Filename:    "rash.jpg",
		ContentType: "image/jpeg",
		Data:        []byte("jpegdata"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Keep the wound clean.", resp.AIResponse)
	assert.Empty(t, resp.AudioURL)

	req, ok := backend.Last(http.MethodPost, "/chatbot/query/")
	require.True(t, ok)
	assert.Contains(t, req.ContentType, "multipart/form-data")
	assert.Equal(t, "What is this rash?", req.Form["text"])
	assert.Equal(t, []byte("jpegdata"), req.Files["image"])
}

func TestChatGateway_Voice(t *testing.T) {
	backend := gatewaytest.NewBackend(t)
	backend.JSON(http.MethodPost, "/conversation/voice/", http.StatusOK, `{"user_message": "I have a headache", "ai_response": "Drink water."}`)

	gw := gateway.NewChatGateway(backend.NewClient(t))
	resp, err := gw.Voice(context.Background(), gateway.Attachment{
		Filename:    "clip.webm",
		ContentType: "audio/webm",
		Data:        []byte("opus"),
	}, "en")
	require.NoError(t, err)
	assert.Equal(t, "I have a headache", resp.UserMessage)

	req, _ := backend.Last(http.MethodPost, "/conversation/voice/")
	assert.Equal(t, "en", req.Form["language"])
	assert.Equal(t, []byte("opus"), req.Files["audio"])
}

func TestClient_TransportFailure(t *testing.T) {
	backend := gatewaytest.NewBackend(t)
	backend.Handle(http.MethodGet, "/api/health-metrics/latest/", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		gatewaytest.JSON(http.StatusOK, `{"health_score": 90}`)(w, r)
	})

	client := gateway.NewClient(gateway.Config{BaseURL: backend.Server.URL, Timeout: 50 * time.Millisecond}, nil, zap.NewNop())
	metrics := gateway.NewMetricGateway(client, zap.NewNop())

	assert.Equal(t, model.HealthMetrics{}, metrics.Latest(context.Background()))
	assert.Equal(t, 1, backend.Count(http.MethodGet, "/api/health-metrics/latest/"))
}
