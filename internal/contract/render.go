package contract

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/go-pdf/fpdf"
)

//go:embed templates/contract.html
var templateFS embed.FS

var htmlTemplate = template.Must(template.New("contract.html").Funcs(template.FuncMap{
	"sections": func(v View) []Section { return sections(v, "₹") },
	"inc":      func(i int) int { return i + 1 },
}).ParseFS(templateFS, "templates/contract.html"))

// HTML renders the agreement page.
func HTML(v View) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("render contract html: %w", err)
	}
	return buf.Bytes(), nil
}

// PDF renders the agreement as an A4 document. The core fonts only cover
// cp1252, so the rupee sign and check marks are spelled out.
func PDF(v View) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Employment Contract", true)
	pdf.SetAuthor(v.CompanyName, true)
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-14)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(102, 102, 102)
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("Generated on %s | %s Employment Agreement", v.Today, v.CompanyName)), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 8, tr(v.CompanyName), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range []string{v.CompanyAddress, "Contact: " + v.CompanyContact, "Effective Date: " + v.EffectiveDate} {
		pdf.CellFormat(0, 5, tr(line), "", 1, "C", false, 0, "")
	}
	x, y := pdf.GetXY()
	pdf.Line(x, y+2, 210-18, y+2)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, "Employment Agreement", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, tr(`This Employment Agreement ("Agreement") is made between:`), "", "L", false)
	labelled := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(pdf.GetStringWidth(label)+1, 5, tr(label), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(value), "", "L", false)
	}
	labelled("Employer:", v.CompanyName)
	labelled("And", "")
	labelled("Employee:", v.EmployeeName)
	labelled("Address:", v.EmployeeAddress)
	labelled("Employee ID:", v.EmployeeID)
	pdf.Ln(3)

	for i, s := range sections(v, "Rs. ") {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("%d. %s", i+1, s.Title)), "", "L", false)
		pdf.SetFont("Helvetica", "", 10)
		for _, p := range s.Paragraphs {
			pdf.MultiCell(0, 5, tr(p), "", "L", false)
		}
		for _, b := range s.Bullets {
			pdf.SetX(pdf.GetX() + 4)
			pdf.MultiCell(0, 5, tr("- "+b), "", "L", false)
		}
		pdf.Ln(2)
	}

	pdf.Ln(4)
	if v.AcceptanceDate != "" {
		pdf.MultiCell(0, 5, tr("[x] Accepted on: "+v.AcceptanceDate), "", "L", false)
		pdf.MultiCell(0, 5, tr("Employee Name: "+v.EmployeeName), "", "L", false)
	} else {
		for _, line := range []string{
			"[ ] I Accept the Terms & Conditions",
			"(Signature is optional if checkbox + timestamp is used)",
			"Employee Name: " + v.EmployeeName,
			"Date: " + v.Today,
			"Signature (if required): ___________________________",
		} {
			pdf.MultiCell(0, 5, tr(line), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render contract pdf: %w", err)
	}
	return buf.Bytes(), nil
}
