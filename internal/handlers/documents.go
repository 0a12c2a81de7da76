package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"gym-manager/internal/documents"
	"gym-manager/internal/gym"

	"go.uber.org/zap"
)

// MemberCard sends a printable member card with the member's QR code.
func (h *Handlers) MemberCard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var card documents.Card
	err := h.gym.View(r.Context(), owner(r), func(d *gym.Document) error {
		m, err := d.Member(id)
		if err != nil {
			return err
		}
		card = documents.Card{Member: m, Gym: d.GymDetails, PhotoPath: h.uploadPath(m.Photo)}
		return nil
	})
	if err != nil {
		h.flash(w, r, flashError, "Member not found!")
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	var buf bytes.Buffer
	if err := documents.WriteCard(&buf, card); err != nil {
		h.serverError(w, r, "/member/"+id, "card generation failed", err)
		return
	}
	sendFile(w, "application/pdf", fmt.Sprintf("card_%s.pdf", id), buf.Bytes())
}

// MemberQR sends the member's QR code as a PNG image.
func (h *Handlers) MemberQR(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.gym.Member(r.Context(), owner(r), id); err != nil {
		http.NotFound(w, r)
		return
	}
	png, err := documents.QRCode(id, documents.QRSize)
	if err != nil {
		h.logger.Error("qr generation failed", zap.String("member_id", id), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	_, _ = w.Write(png)
}

// Receipt sends a PDF receipt for a member's payment.
func (h *Handlers) Receipt(w http.ResponseWriter, r *http.Request) {
	id, month := r.PathValue("id"), r.PathValue("month")
	var receipt documents.Receipt
	err := h.gym.View(r.Context(), owner(r), func(d *gym.Document) error {
		m, err := d.Member(id)
		if err != nil {
			return err
		}
		f, err := d.Fee(id, month)
		if err != nil {
			return err
		}
		receipt = documents.Receipt{
			Member:   m,
			Month:    month,
			Fee:      f,
			Gym:      d.GymDetails,
			LogoPath: h.uploadPath(d.GymDetails.Logo),
			IssuedAt: h.gym.Now(),
		}
		return nil
	})
	if err != nil {
		h.flash(w, r, flashError, "Fee record not found!")
		http.Redirect(w, r, "/member/"+id, http.StatusFound)
		return
	}

	var buf bytes.Buffer
	if err := documents.WriteReceipt(&buf, receipt); err != nil {
		h.serverError(w, r, "/member/"+id, "receipt generation failed", err)
		return
	}
	sendFile(w, "application/pdf", fmt.Sprintf("receipt_%s_%s.pdf", id, month), buf.Bytes())
}

// DownloadExcel exports the current month's payment status as a spreadsheet.
func (h *Handlers) DownloadExcel(w http.ResponseWriter, r *http.Request) {
	month := gym.MonthOf(h.gym.Now())
	status, err := h.gym.PaymentStatus(r.Context(), owner(r), month)
	if err != nil {
		h.serverError(w, r, "/dashboard", "payment status failed", err)
		return
	}
	var buf bytes.Buffer
	if err := documents.WriteMembersSheet(&buf, status); err != nil {
		h.serverError(w, r, "/dashboard", "excel export failed", err)
		return
	}
	sendFile(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		fmt.Sprintf("gym_members_%s.xlsx", month), buf.Bytes())
}

func sendFile(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}
