package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/azure"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/booking"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/config"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/contract"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/gateway"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/metrics"
)

const requestsMetric = "patient_portal_gateway_requests_total"

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	client := gateway.NewClient(gateway.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
	}, metrics.NewPortalMetrics(registry), logger)

	// Responses are always checked against the contract here
	validator, err := contract.NewValidator(logger)
	if err != nil {
		logger.Fatal("Failed to load backend contract", zap.Error(err))
	}
	client.SetValidator(validator)

	ctx := context.Background()
	logger.Info("=== Checking clinical backend ===", zap.String("backend", cfg.Backend.BaseURL))

	checkReads(ctx, client, logger)

	if err := checkBooking(ctx, client, logger); err != nil {
		logger.Error("Booking start failed", zap.Error(err))
	} else {
		logger.Info("✅ Booking start passed")
	}

	if cfg.Speech.SubscriptionKey != "" {
		logger.Info("=== Checking Azure Speech Service ===")
		if err := checkSpeech(ctx, cfg, logger); err != nil {
			logger.Error("Speech check failed", zap.Error(err))
		} else {
			logger.Info("✅ Speech check passed")
		}
	}

	if cfg.Storage.AccountName != "" {
		logger.Info("=== Checking Azure Blob Storage ===")
		if err := checkStorage(ctx, cfg, logger); err != nil {
			logger.Error("Blob storage check failed", zap.Error(err))
		} else {
			logger.Info("✅ Blob storage check passed")
		}
	}

	failed := report(registry, logger)
	logger.Info("=== All checks completed ===", zap.Int("failed_endpoints", failed))
	if failed > 0 {
		os.Exit(1)
	}
}

// checkReads calls every read gateway. The gateways degrade to empty values
// on failure, so outcomes are read back from the request counters.
func checkReads(ctx context.Context, client *gateway.Client, logger *zap.Logger) {
	meds := gateway.NewMedicationGateway(client, logger)
	appts := gateway.NewAppointmentGateway(client, logger)
	health := gateway.NewMetricGateway(client, logger)

	logger.Info("Medications", zap.Int("count", len(meds.List(ctx))))
	logger.Info("Today's medications", zap.Int("count", len(meds.Today(ctx))))

	stats := meds.Stats(ctx)
	logger.Info("Medication stats",
		zap.Int("total", stats.Total),
		zap.Int("taken", stats.Taken),
		zap.Int("refill_soon", stats.RefillSoon),
	)

	logger.Info("Appointments", zap.Int("count", len(appts.List(ctx))))

	latest := health.Latest(ctx)
	logger.Info("Latest health metrics",
		zap.String("id", latest.ID.String()),
		zap.Int("health_score", latest.HealthScore),
	)
}

func checkBooking(ctx context.Context, client *gateway.Client, logger *zap.Logger) error {
	resp, err := gateway.NewBookingGateway(client, logger).Send(ctx, map[string]any{
		"step":     booking.InitialStep,
		"language": booking.DefaultLanguage,
	})
	if err != nil {
		return err
	}
	logger.Info("Booking greeting received",
		zap.String("message", resp.Message),
		zap.String("next_step", resp.NextStep),
		zap.Int("options", len(resp.Options)),
		zap.Int("form_fields", len(resp.FormFields)),
	)
	return nil
}

func checkSpeech(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	client, err := azure.NewSpeechServiceClient(cfg.Speech.SubscriptionKey, cfg.Speech.Region, logger)
	if err != nil {
		return fmt.Errorf("failed to create Speech client: %w", err)
	}

	audio, err := client.TextToSpeech(ctx, "Your next appointment is tomorrow at ten.", cfg.Speech.Language)
	if err != nil {
		return fmt.Errorf("text-to-speech failed: %w", err)
	}

	out := "/tmp/backend-check-speech.mp3"
	if err := os.WriteFile(out, audio, 0644); err != nil {
		logger.Warn("Failed to save audio file", zap.Error(err))
	} else {
		logger.Info("Audio saved", zap.String("file", out), zap.Int("audio_size_bytes", len(audio)))
	}
	return nil
}

func checkStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	client, err := azure.NewBlobStorageClient(cfg.Storage.AccountName, cfg.Storage.AccountKey, cfg.Storage.AttachmentContainer, logger)
	if err != nil {
		return fmt.Errorf("failed to create Blob Storage client: %w", err)
	}

	payload := []byte("backend-check")
	name := fmt.Sprintf("backend-check-%d.txt", time.Now().Unix())
	ref, err := client.Archive(ctx, "checks", name, "text/plain", payload)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	data, contentType, err := client.Fetch(ctx, ref)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	if string(data) != string(payload) {
		return fmt.Errorf("downloaded %d bytes, want %d", len(data), len(payload))
	}
	logger.Info("Blob round trip completed", zap.String("ref", ref), zap.String("content_type", contentType))
	return nil
}

// report logs the outcome of every endpoint and returns how many failed
func report(registry *prometheus.Registry, logger *zap.Logger) int {
	families, err := registry.Gather()
	if err != nil {
		logger.Error("Failed to gather request counters", zap.Error(err))
		return 1
	}

	failed := 0
	for _, family := range families {
		if family.GetName() != requestsMetric {
			continue
		}
		for _, m := range family.GetMetric() {
			var endpoint, outcome string
			for _, label := range m.GetLabel() {
				switch label.GetName() {
				case "endpoint":
					endpoint = label.GetValue()
				case "outcome":
					outcome = label.GetValue()
				}
			}
			fields := []zap.Field{
				zap.String("endpoint", endpoint),
				zap.String("outcome", outcome),
				zap.Float64("count", m.GetCounter().GetValue()),
			}
			if outcome == "ok" {
				logger.Info("✅ endpoint", fields...)
			} else {
				failed++
				logger.Error("endpoint failed", fields...)
			}
		}
	}
	return failed
}
