package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
	"go.uber.org/zap"
)

const medicationsPath = "/api/medications/"

// MedicationGateway wraps the backend's medication endpoints. Reads degrade to
// empty values; writes return their error.
type MedicationGateway struct {
	client *Client
	logger *zap.Logger
}

// NewMedicationGateway creates a new medication gateway
func NewMedicationGateway(client *Client, logger *zap.Logger) *MedicationGateway {
	return &MedicationGateway{client: client, logger: logger}
}

func medicationPath(id model.FlexID, suffix string) string {
	return medicationsPath + url.PathEscape(id.String()) + "/" + suffix
}

// List returns every medication of the patient
func (g *MedicationGateway) List(ctx context.Context) []model.Medication {
	body, err := g.client.getJSON(ctx, "medications.list", medicationsPath)
	if err != nil {
		g.logger.Warn("failed to list medications, showing empty list", zap.Error(err))
		return []model.Medication{}
	}
	return model.NormalizeMedications(body)
}

// Today returns the medications due today
func (g *MedicationGateway) Today(ctx context.Context) []model.Medication {
	body, err := g.client.getJSON(ctx, "medications.today", medicationsPath+"today/")
	if err != nil {
		g.logger.Warn("failed to list today's medications, showing empty list", zap.Error(err))
		return []model.Medication{}
	}
	return model.NormalizeMedications(body)
}

// Stats returns the adherence summary, zeroed when unavailable
func (g *MedicationGateway) Stats(ctx context.Context) model.MedicationStats {
	body, err := g.client.getJSON(ctx, "medications.stats", medicationsPath+"stats/")
	if err != nil {
		g.logger.Warn("failed to fetch medication stats, showing zeros", zap.Error(err))
		return model.MedicationStats{}
	}
	return model.NormalizeStats(body)
}

// MarkAsTaken records one dose of the medication
func (g *MedicationGateway) MarkAsTaken(ctx context.Context, id model.FlexID, notes string) error {
	_, err := g.client.sendJSON(ctx, "medications.mark_as_taken", http.MethodPost,
		medicationPath(id, "mark_as_taken/"), map[string]any{"notes": notes})
	if err != nil {
		return fmt.Errorf("failed to mark medication as taken: %w", err)
	}
	return nil
}

// Add creates a medication. The returned record is zero when the backend
// answers without a body.
func (g *MedicationGateway) Add(ctx context.Context, input model.MedicationInput) (model.Medication, error) {
	body, err := g.client.sendJSON(ctx, "medications.add", http.MethodPost, medicationsPath, input.ToPayload())
	if err != nil {
		return model.Medication{}, fmt.Errorf("failed to add medication: %w", err)
	}
	med, _ := model.DecodeMedication(body)
	return med, nil
}

// Update replaces a medication's editable fields
func (g *MedicationGateway) Update(ctx context.Context, id model.FlexID, input model.MedicationInput) (model.Medication, error) {
	body, err := g.client.sendJSON(ctx, "medications.update", http.MethodPut, medicationPath(id, ""), input.ToPayload())
	if err != nil {
		return model.Medication{}, fmt.Errorf("failed to update medication: %w", err)
	}
	med, _ := model.DecodeMedication(body)
	return med, nil
}

// Delete removes a medication
func (g *MedicationGateway) Delete(ctx context.Context, id model.FlexID) error {
	if _, err := g.client.sendJSON(ctx, "medications.delete", http.MethodDelete, medicationPath(id, ""), nil); err != nil {
		return fmt.Errorf("failed to delete medication: %w", err)
	}
	return nil
}
