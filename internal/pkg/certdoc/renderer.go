// Package certdoc renders certificate payloads into downloadable PDF documents
// and stores them.
package certdoc

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/yigit/coursecred/internal/app/models"
)

// Renderer turns a certificate payload into document bytes.
type Renderer interface {
	Render(ctx context.Context, payload models.CertificatePayload) ([]byte, error)
}

// PDFRenderer renders an A4 landscape certificate.
type PDFRenderer struct {
	// Issuer is printed under the signature line.
	Issuer string
	// VerifyURL, when set, is printed with the certificate identifier appended.
	VerifyURL string
}

// NewPDFRenderer creates a PDFRenderer.
func NewPDFRenderer(issuer, verifyURL string) *PDFRenderer {
	return &PDFRenderer{Issuer: issuer, VerifyURL: verifyURL}
}

// Render implements Renderer.
func (r *PDFRenderer) Render(ctx context.Context, payload models.CertificatePayload) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Certificate of Completion", true)
	pdf.SetAuthor(r.Issuer, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	// Core fonts are cp1252; translate names so accented characters survive.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetDrawColor(0, 0, 77)
	pdf.SetLineWidth(1.5)
	pdf.Rect(10, 10, 277, 190, "D")
	pdf.SetLineWidth(0.4)
	pdf.Rect(14, 14, 269, 182, "D")

	pdf.SetTextColor(0, 0, 77)
	pdf.SetY(38)
	pdf.SetFont("Helvetica", "B", 34)
	pdf.CellFormat(0, 16, "Certificate of Completion", "", 1, "C", false, 0, "")

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 15)
	pdf.CellFormat(0, 10, "This certifies that", "", 1, "C", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Times", "BI", 30)
	pdf.CellFormat(0, 16, tr(payload.UserName), "", 1, "C", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 15)
	pdf.CellFormat(0, 10, "has successfully completed the course", "", 1, "C", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(0, 14, tr(payload.CourseTitle), "", 1, "C", false, 0, "")

	if payload.InstructorName != "" {
		pdf.SetFont("Helvetica", "I", 13)
		pdf.CellFormat(0, 8, tr("taught by "+payload.InstructorName), "", 1, "C", false, 0, "")
	}

	pdf.SetY(150)
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 7, "Completed on "+payload.CompletionDate.Format("January 2, 2006"), "", 1, "C", false, 0, "")

	pdf.SetY(172)
	pdf.SetFont("Courier", "", 11)
	pdf.CellFormat(0, 6, "Certificate ID: "+payload.CertificateID, "", 1, "C", false, 0, "")
	if r.VerifyURL != "" {
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 5, "Verify at "+r.VerifyURL+payload.CertificateID, "", 1, "C", false, 0, "")
	}
	if r.Issuer != "" {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, tr(r.Issuer), "", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render certificate %s: %w", payload.CertificateID, err)
	}
	return buf.Bytes(), nil
}
