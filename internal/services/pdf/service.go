package pdf

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/redactiq/internal/models"
)

// Service renders detection summaries as PDF reports
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new PDF report service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// RenderSummary produces a report of a scan: per-tier counts followed by the
// review table. Detected terms are masked so the report itself is not a leak.
func (s *Service) RenderSummary(fileName string, result *models.ScanResult) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("scan result is required")
	}

	s.logger.Debug().
		Str("file", fileName).
		Int("items", len(result.Items)).
		Msg("Rendering detection summary PDF")

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle("Detection summary", false)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, tr("Detection summary: "+fileName), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Pages: %d   Generated: %s", result.PageCount, time.Now().Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	counts := []struct {
		label string
		value int
	}{
		{"High risk", result.Summary.High},
		{"Medium risk", result.Summary.Medium},
		{"Low risk", result.Summary.Low},
		{"Total", result.Summary.Total},
	}
	pdf.SetFont("Arial", "B", 10)
	for _, c := range counts {
		pdf.CellFormat(40, 6, c.label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, strconv.Itoa(c.value), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	if result.Message != "" {
		pdf.SetFont("Arial", "I", 10)
		pdf.CellFormat(0, 6, tr(result.Message), "", 1, "L", false, 0, "")
	}

	if len(result.Items) > 0 {
		s.renderItems(pdf, tr, result.Items)
	}

	if len(result.PageErrors) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, "Pages with detector errors", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 8)
		for _, pe := range result.PageErrors {
			pdf.MultiCell(0, 4, tr(fmt.Sprintf("Page %d (%s): %s", pe.Page, pe.Detector, pe.Error)), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate PDF output")
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	s.logger.Debug().Int("pdf_size", buf.Len()).Msg("Summary PDF generated successfully")
	return buf.Bytes(), nil
}

func (s *Service) renderItems(pdf *fpdf.Fpdf, tr func(string) string, items []models.ReviewItem) {
	widths := []float64{18, 14, 60, 78, 20}
	headers := []string{"Risk", "Page", "Reason", "Term", "Selected"}

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 6, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, item := range items {
		page := strconv.Itoa(item.Page)
		if !item.Eligible {
			page = "?"
		}
		selected := "no"
		if item.Selected {
			selected = "yes"
		}
		row := []string{string(item.Risk), page, truncate(item.Reason, 40), maskTerm(item.Text), selected}
		for i, cell := range row {
			pdf.CellFormat(widths[i], 5, tr(cell), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

// maskTerm keeps the first and last character of a term and hides the rest
func maskTerm(term string) string {
	runes := []rune(term)
	if len(runes) <= 2 {
		return string(bytes.Repeat([]byte("*"), len(runes)))
	}
	masked := make([]rune, len(runes))
	for i, r := range runes {
		switch {
		case i == 0 || i == len(runes)-1:
			masked[i] = r
		case r == ' ' || r == '@' || r == '-' || r == '.':
			masked[i] = r
		default:
			masked[i] = '*'
		}
	}
	return truncate(string(masked), 48)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max-3]) + "..."
}
