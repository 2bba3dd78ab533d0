// Package receipt renders booking receipts as PDF files.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"

	"github.com/lifeline-health/donor-api/internal/model"
)

var ErrNotFound = errors.New("receipt not found")

// Data is everything printed on a receipt.
type Data struct {
	Appointment *model.Appointment
	Donor       model.Contact
	DonorEmail  string
	BloodBank   model.Contact
}

type Renderer interface {
	// Render writes the receipt and returns its locator.
	Render(ctx context.Context, data Data) (string, error)
	// Path returns the file backing an appointment's receipt.
	Path(appointmentID uuid.UUID) (string, error)
}

type pdfRenderer struct {
	dir string
}

func NewPDFRenderer(dir string) (Renderer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create receipts dir: %w", err)
	}
	return &pdfRenderer{dir: dir}, nil
}

// Locator is the public URL a receipt is served under.
func Locator(appointmentID uuid.UUID) string {
	return fmt.Sprintf("/api/v1/appointments/%s/receipt", appointmentID)
}

func (r *pdfRenderer) file(id uuid.UUID) string {
	return filepath.Join(r.dir, id.String()+".pdf")
}

func (r *pdfRenderer) Render(ctx context.Context, data Data) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	appt := data.Appointment

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Donation appointment receipt", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, "Donation Appointment Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	rows := [][2]string{
		{"Receipt no.", appt.ID.String()},
		{"Issued", time.Now().UTC().Format("02 Jan 2006 15:04 MST")},
		{"Donor", data.Donor.Name},
		{"Donor email", data.DonorEmail},
		{"Donor phone", data.Donor.Phone},
		{"Blood group", data.Donor.BloodGroup},
		{"Blood bank", data.BloodBank.Name},
		{"Blood bank phone", data.BloodBank.Phone},
		{"Donation type", string(appt.Type)},
		{"Appointment date", appt.Date.Format("02 Jan 2006 15:04")},
		{"Status", string(appt.Status)},
	}

	pdf.SetFont("Helvetica", "", 12)
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(55, 8, row[0], "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 8, row[1], "1", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Please carry this receipt and a photo ID to your appointment. "+
		"Thank you for choosing to donate.", "", "L", false)

	if err := pdf.OutputFileAndClose(r.file(appt.ID)); err != nil {
		return "", fmt.Errorf("failed to write receipt: %w", err)
	}
	return Locator(appt.ID), nil
}

func (r *pdfRenderer) Path(appointmentID uuid.UUID) (string, error) {
	path := r.file(appointmentID)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to stat receipt: %w", err)
	}
	return path, nil
}
