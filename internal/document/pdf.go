package document

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/phpdave11/gofpdf"
)

const (
	pageMargin = 15.0
	lineHeight = 6.0
)

// column widths in mm, summing to the printable A4 width
var columns = []struct {
	title string
	width float64
	align string
}{
	{"Date", 25, "L"},
	{"Description", 85, "L"},
	{"Qty", 20, "R"},
	{"Rate", 25, "R"},
	{"Amount", 25, "R"},
}

// PDFRenderer lays out an invoice on A4 pages.
type PDFRenderer struct {
	Currency string
}

func NewPDFRenderer(currency string) *PDFRenderer {
	return &PDFRenderer{Currency: currency}
}

func (r *PDFRenderer) Render(ctx context.Context, inv *Invoice) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle("Invoice "+inv.Number, true)
	pdf.SetCreationDate(inv.Date)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr("Invoice "+inv.Number), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, lineHeight, "Date: "+inv.Date.Format("2006-01-02"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, lineHeight, "Status: "+strings.ToUpper(inv.Status), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	r.party(pdf, tr, "From", inv.From)
	r.party(pdf, tr, "Bill to", inv.To)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range columns {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, c.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, line := range inv.Lines {
		qty := line.Quantity.StringFixed(2)
		if line.Unit != "" {
			qty += " " + line.Unit
		}
		cells := []string{
			line.Date.Format("2006-01-02"),
			truncate(tr(line.Description), 55),
			qty,
			r.money(line.UnitPrice.StringFixed(2)),
			r.money(line.Amount.StringFixed(2)),
		}
		for i, c := range columns {
			pdf.CellFormat(c.width, lineHeight, cells[i], "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFont("Helvetica", "B", 10)
	labelWidth := 0.0
	for _, c := range columns[:len(columns)-1] {
		labelWidth += c.width
	}
	pdf.CellFormat(labelWidth, 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(columns[len(columns)-1].width, 8, r.money(inv.Total.StringFixed(2)), "1", 1, "R", false, 0, "")

	if inv.Notes != "" {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(0, 5, tr(inv.Notes), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) party(pdf *gofpdf.Fpdf, tr func(string) string, label string, p Party) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, lineHeight, label, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, s := range []string{p.Name, p.Email, p.Address} {
		if s != "" {
			pdf.MultiCell(0, 5, tr(s), "", "L", false)
		}
	}
}

func (r *PDFRenderer) money(s string) string {
	if r.Currency == "" {
		return s
	}
	return r.Currency + " " + s
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
