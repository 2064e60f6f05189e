package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth = 277.0 // A4 landscape minus 10mm margins
	pdfRowHeight = 6.0
	pdfEllipsis  = "..."
)

// PDFExporter renders datasets into a landscape table. Column headers repeat on every page and
// cells that do not fit their column are truncated.
type PDFExporter struct {
	// Widths optionally weights columns; missing or non-positive entries count as 1.
	Widths []float64
}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter(widths ...float64) *PDFExporter {
	return &PDFExporter{Widths: widths}
}

func (e *PDFExporter) ContentType() string { return "application/pdf" }

func (e *PDFExporter) Extension() string { return "pdf" }

// Render writes the document to w.
func (e *PDFExporter) Render(w io.Writer, data Dataset) error {
	if err := data.validate(); err != nil {
		return err
	}
	widths := e.columnWidths(len(data.Headers))

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.SetHeaderFunc(func() {
		if data.Title != "" && pdf.PageNo() == 1 {
			pdf.SetFont("Arial", "B", 13)
			pdf.CellFormat(0, 9, data.Title, "", 1, "L", false, 0, "")
			pdf.Ln(2)
		}
		pdf.SetFont("Arial", "B", 8)
		pdf.SetFillColor(230, 230, 230)
		for i, header := range data.Headers {
			pdf.CellFormat(widths[i], pdfRowHeight+1, fit(pdf, header, widths[i]), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 7)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Arial", "I", 7)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	for _, row := range data.Rows {
		for i, value := range row {
			pdf.CellFormat(widths[i], pdfRowHeight, fit(pdf, value, widths[i]), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func (e *PDFExporter) columnWidths(n int) []float64 {
	weights := make([]float64, n)
	total := 0.0
	for i := range weights {
		weights[i] = 1
		if i < len(e.Widths) && e.Widths[i] > 0 {
			weights[i] = e.Widths[i]
		}
		total += weights[i]
	}
	for i := range weights {
		weights[i] = pdfPageWidth * weights[i] / total
	}
	return weights
}

// fit shortens value so it renders inside width, keeping a small cell padding.
func fit(pdf *gofpdf.Fpdf, value string, width float64) string {
	value = strings.Join(strings.Fields(value), " ")
	limit := width - 2
	if pdf.GetStringWidth(value) <= limit {
		return value
	}
	runes := []rune(value)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+pdfEllipsis) > limit {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + pdfEllipsis
}
