package documents

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"gym-manager/internal/models"

	"github.com/go-pdf/fpdf"
)

// Letter pages are 612x792 points.
const pageWidth = 612.0

// Card holds everything printed on a member card.
type Card struct {
	Member    models.Member
	Gym       models.GymDetails
	PhotoPath string
}

// Receipt holds everything printed on a fee receipt.
type Receipt struct {
	Member   models.Member
	Month    string
	Fee      models.FeeRecord
	Gym      models.GymDetails
	LogoPath string
	IssuedAt time.Time
}

// ReceiptNumber identifies a member's receipt for a month.
func ReceiptNumber(memberID, month string) string {
	out := []byte(memberID + "-")
	for i := 0; i < len(month); i++ {
		if month[i] != '-' {
			out = append(out, month[i])
		}
	}
	return string(out)
}

func newPage() *fpdf.Fpdf {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	return pdf
}

// placeImage draws an image file if it can be decoded. Unreadable images are
// skipped so the rest of the document still renders.
func placeImage(pdf *fpdf.Fpdf, path string, x, y, w, h float64) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	pdf.ImageOptions(path, x, y, w, h, false, fpdf.ImageOptions{ReadDpi: true}, 0, "")
	if !pdf.Ok() {
		pdf.ClearError()
	}
}

// WriteCard renders a member card PDF with the member's QR code.
func WriteCard(w io.Writer, c Card) error {
	pdf := newPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetFillColor(230, 230, 230)
	pdf.Rect(50, 150, 300, 200, "FD")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Text(70, 180, tr("GYM MEMBER CARD"))

	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(70, 198, tr(c.Gym.Name))

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		"ID: " + c.Member.ID,
		"Name: " + c.Member.Name,
		"Phone: " + c.Member.Phone,
		"Joined: " + c.Member.JoinedDate,
	}
	for i, line := range lines {
		pdf.Text(160, 230+float64(i)*20, tr(line))
	}

	placeImage(pdf, c.PhotoPath, 70, 215, 80, 100)

	png, err := QRCode(c.Member.ID, QRSize)
	if err != nil {
		return err
	}
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("qr", 270, 270, 70, 70, false, opts, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render card: %w", err)
	}
	return nil
}

// WriteReceipt renders a payment receipt PDF.
func WriteReceipt(w io.Writer, r Receipt) error {
	pdf := newPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 24)
	pdf.Text(50, 50, tr(r.Gym.Name))
	placeImage(pdf, r.LogoPath, pageWidth-100, 30, 50, 50)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Text(50, 100, "PAYMENT RECEIPT")
	pdf.Text(50, 130, "Date: "+r.IssuedAt.Format("2006-01-02"))
	pdf.Text(50, 150, "Receipt #: "+ReceiptNumber(r.Member.ID, r.Month))

	lines := []string{
		"Member Name: " + r.Member.Name,
		"Member ID: " + r.Member.ID,
		"Month Paid: " + r.Month,
		fmt.Sprintf("Amount Paid: %s%.2f", r.Gym.Currency, r.Fee.Amount),
	}
	for i, line := range lines {
		pdf.Text(50, 200+float64(i)*20, tr(line))
	}
	if r.Fee.Notes != "" {
		pdf.Text(50, 280, tr("Notes: "+r.Fee.Notes))
	}

	pdf.SetFont("Helvetica", "I", 10)
	pdf.Text(50, 320, "Thank you for your payment!")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}
	return nil
}
