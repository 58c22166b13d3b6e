package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
	"go.uber.org/zap"
)

// MedicationHandler exposes the session's medication board
type MedicationHandler struct {
	logger *zap.Logger
}

// NewMedicationHandler creates a new MedicationHandler
func NewMedicationHandler(logger *zap.Logger) *MedicationHandler {
	return &MedicationHandler{logger: logger}
}

// MedicationListResponse wraps the board
type MedicationListResponse struct {
	Medications []model.Medication `json:"medications"`
}

// GetMedications reloads and returns the board
func (h *MedicationHandler) GetMedications(c *gin.Context) {
	meds := currentSession(c).Medications.Load(c.Request.Context())
	if meds == nil {
		meds = []model.Medication{}
	}
	c.JSON(http.StatusOK, MedicationListResponse{Medications: meds})
}

// GetStats returns the adherence counters
func (h *MedicationHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, currentSession(c).Medications.Stats(c.Request.Context()))
}

// PostMedication adds a medication
func (h *MedicationHandler) PostMedication(c *gin.Context) {
	var req model.MedicationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		badRequest(c, err)
		return
	}

	med, err := currentSession(c).Medications.Add(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, med)
}

// PutMedication replaces the editable fields of a medication
func (h *MedicationHandler) PutMedication(c *gin.Context) {
	var req model.MedicationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		badRequest(c, err)
		return
	}

	med, err := currentSession(c).Medications.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, med)
}

// DeleteMedication removes a medication
func (h *MedicationHandler) DeleteMedication(c *gin.Context) {
	if err := currentSession(c).Medications.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PostTaken records one dose of a medication
func (h *MedicationHandler) PostTaken(c *gin.Context) {
	med, err := currentSession(c).Medications.MarkAsTaken(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, med)
}
