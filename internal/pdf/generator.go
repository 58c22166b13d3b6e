package pdf

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/dashboard"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
	"go.uber.org/zap"
)

// PDFGenerator renders the printable dashboard summary
type PDFGenerator struct {
	logger *zap.Logger
}

// NewPDFGenerator creates a new PDFGenerator
func NewPDFGenerator(logger *zap.Logger) *PDFGenerator {
	return &PDFGenerator{
		logger: logger,
	}
}

// SummaryData is everything printed on the sheet
type SummaryData struct {
	Summary     dashboard.Summary
	Today       []model.Medication
	GeneratedAt time.Time
}

type sheet struct {
	*gofpdf.Fpdf
	tr func(string) string
}

// Generate creates a one-page A4 summary
func (g *PDFGenerator) Generate(data *SummaryData) ([]byte, error) {
	generatedAt := data.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()
	s := sheet{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	g.addTitle(s, generatedAt)
	g.addCounters(s, data.Summary)
	g.addTodaysMedications(s, data.Today)
	g.addAppointments(s, data.Summary.Appointments)
	g.addMetrics(s, data.Summary.Metrics)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		g.logger.Error("failed to generate PDF", zap.Error(err))
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	g.logger.Info("dashboard summary generated", zap.Int("size_bytes", buf.Len()))
	return buf.Bytes(), nil
}

func (g *PDFGenerator) addTitle(s sheet, generatedAt time.Time) {
	s.SetFont("Arial", "B", 20)
	s.CellFormat(0, 10, "Health Summary", "", 1, "C", false, 0, "")
	s.Ln(3)

	s.SetFont("Arial", "", 11)
	s.CellFormat(0, 7, fmt.Sprintf("Generated: %s", generatedAt.Format("2006-01-02 15:04")), "", 1, "C", false, 0, "")
	s.Ln(8)
}

func (g *PDFGenerator) addSectionHeader(s sheet, title string) {
	s.SetFont("Arial", "B", 14)
	s.SetFillColor(230, 230, 230)
	s.CellFormat(0, 10, s.tr(title), "", 1, "L", true, 0, "")
	s.Ln(3)
	s.SetFont("Arial", "", 10)
}

func (g *PDFGenerator) addCounters(s sheet, summary dashboard.Summary) {
	g.addSectionHeader(s, "Overview")

	counters := [][2]string{
		{"Active medications", strconv.Itoa(summary.ActiveMedications)},
		{"Upcoming appointments", strconv.Itoa(summary.UpcomingAppointments)},
		{"Health score", fmt.Sprintf("%d (%s)", summary.HealthScore, summary.HealthStatus)},
	}
	width := 170.0 / float64(len(counters))
	s.SetFont("Arial", "B", 16)
	for _, c := range counters {
		s.CellFormat(width, 10, c[1], "1", 0, "C", false, 0, "")
	}
	s.Ln(-1)
	s.SetFont("Arial", "", 9)
	for _, c := range counters {
		s.CellFormat(width, 6, c[0], "1", 0, "C", false, 0, "")
	}
	s.Ln(-1)
	s.Ln(8)
}

func (g *PDFGenerator) addTodaysMedications(s sheet, meds []model.Medication) {
	g.addSectionHeader(s, "Today's Medications")

	if len(meds) == 0 {
		s.CellFormat(0, 8, "No medications scheduled for today.", "", 1, "L", false, 0, "")
		s.Ln(5)
		return
	}

	for _, med := range meds {
		s.SetFont("Arial", "B", 10)
		s.CellFormat(0, 6, s.tr(fmt.Sprintf("%s [%s]", med.Name, med.Status)), "", 1, "L", false, 0, "")
		s.SetFont("Arial", "", 10)
		if med.Instructions != "" {
			s.CellFormat(0, 5, s.tr("  "+med.Instructions), "", 1, "L", false, 0, "")
		}
		if med.NextDose != "" {
			s.CellFormat(0, 5, s.tr("  Next dose: "+med.NextDose), "", 1, "L", false, 0, "")
		}
		s.CellFormat(0, 5, fmt.Sprintf("  Remaining: %d", med.Remaining), "", 1, "L", false, 0, "")
		if med.RefillDate != nil {
			s.CellFormat(0, 5, "  Refill: "+formatDate(med.RefillDate), "", 1, "L", false, 0, "")
		}
		s.Ln(2)
	}
	s.Ln(3)
}

func (g *PDFGenerator) addAppointments(s sheet, appts []model.Appointment) {
	g.addSectionHeader(s, "Upcoming Appointments")

	if len(appts) == 0 {
		s.CellFormat(0, 8, "No upcoming appointments.", "", 1, "L", false, 0, "")
		s.Ln(5)
		return
	}

	s.SetFont("Arial", "B", 10)
	s.CellFormat(30, 7, "Date", "1", 0, "C", false, 0, "")
	s.CellFormat(20, 7, "Time", "1", 0, "C", false, 0, "")
	s.CellFormat(50, 7, "Doctor", "1", 0, "C", false, 0, "")
	s.CellFormat(70, 7, "Location", "1", 1, "C", false, 0, "")

	s.SetFont("Arial", "", 10)
	for _, appt := range appts {
		s.CellFormat(30, 6, formatDate(appt.Date), "1", 0, "C", false, 0, "")
		s.CellFormat(20, 6, appt.Time, "1", 0, "C", false, 0, "")
		s.CellFormat(50, 6, s.tr(appt.Doctor), "1", 0, "L", false, 0, "")
		s.CellFormat(70, 6, s.tr(appt.Location), "1", 1, "L", false, 0, "")
	}
	s.Ln(8)
}

func (g *PDFGenerator) addMetrics(s sheet, m model.HealthMetrics) {
	g.addSectionHeader(s, "Latest Health Metrics")

	rows := []struct {
		label string
		value string
	}{
		{"Blood pressure", bloodPressure(m)},
		{"Blood glucose", formatValue(m.BloodGlucose, "%.0f mg/dL")},
		{"Weight", formatValue(m.Weight, "%.1f kg")},
		{"Height", formatValue(m.Height, "%.1f cm")},
		{"Daily steps", formatValue(m.DailySteps, "%.0f")},
		{"Heart rate", formatValue(m.HeartRate, "%.0f bpm")},
		{"Sleep", formatValue(m.SleepHours, "%.1f h")},
		{"Oxygen saturation", formatValue(m.OxygenSaturation, "%.0f%%")},
	}

	for _, row := range rows {
		s.CellFormat(60, 6, row.label, "1", 0, "L", false, 0, "")
		s.CellFormat(60, 6, row.value, "1", 1, "L", false, 0, "")
	}
}

func bloodPressure(m model.HealthMetrics) string {
	if m.SystolicBP == nil || m.DiastolicBP == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f/%.0f mmHg", *m.SystolicBP, *m.DiastolicBP)
}

func formatValue(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func formatDate(d *types.Date) string {
	if d == nil {
		return "-"
	}
	return d.Format(types.DateFormat)
}
