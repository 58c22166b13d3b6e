package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/pdf"
	"go.uber.org/zap"
)

// DashboardHandler renders the dashboard headline
type DashboardHandler struct {
	pdf    *pdf.PDFGenerator
	now    func() time.Time
	logger *zap.Logger
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(generator *pdf.PDFGenerator, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		pdf:    generator,
		now:    time.Now,
		logger: logger,
	}
}

// GetDashboard returns the latest committed counters
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, currentSession(c).Dashboard.Summary())
}

// GetSummaryPDF renders the dashboard and today's medications as a printable page
func (h *DashboardHandler) GetSummaryPDF(c *gin.Context) {
	s := currentSession(c)
	now := h.now()

	data := &pdf.SummaryData{
		Summary:     s.Dashboard.Summary(),
		Today:       s.Medications.Load(c.Request.Context()),
		GeneratedAt: now,
	}

	out, err := h.pdf.Generate(data)
	if err != nil {
		h.logger.Error("failed to generate summary pdf",
			zap.Error(err),
			zap.String("session_id", s.ID),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    CodeInternal,
			Message: "Failed to generate summary",
			Details: stringPtr(err.Error()),
		})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="health-summary-%s.pdf"`, now.Format("2006-01-02")))
	c.Data(http.StatusOK, "application/pdf", out)
}
