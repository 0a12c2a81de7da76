package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"gym-manager/internal/gym"
	"gym-manager/internal/models"

	"go.uber.org/zap"
)

// Weekdays are offered in the class form.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// ScheduleViewModel is the data passed to the schedule template.
type ScheduleViewModel struct {
	Classes []models.Class
	Members []models.Member
	Days    []string
}

// Schedule lists classes with a booking form.
func (h *Handlers) Schedule(w http.ResponseWriter, r *http.Request) {
	vm := ScheduleViewModel{Days: Weekdays}
	err := h.gym.View(r.Context(), owner(r), func(d *gym.Document) error {
		vm.Classes = d.AllClasses()
		vm.Members = d.AllMembers()
		return nil
	})
	if err != nil {
		h.logger.Error("schedule failed", zap.String("owner", owner(r)), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "schedule.html", "Schedule", vm)
}

// AddClass schedules a class.
func (h *Handlers) AddClass(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.flash(w, r, flashError, "Invalid form submission")
		http.Redirect(w, r, "/schedule", http.StatusSeeOther)
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	capacity, err := strconv.Atoi(strings.TrimSpace(r.FormValue("capacity")))
	if name == "" || err != nil || capacity <= 0 {
		h.flash(w, r, flashError, "Class name and a positive capacity are required.")
		http.Redirect(w, r, "/schedule", http.StatusSeeOther)
		return
	}
	_, err = h.gym.AddClass(r.Context(), owner(r), name,
		r.FormValue("day"),
		r.FormValue("time"),
		strings.TrimSpace(r.FormValue("instructor")),
		capacity,
	)
	if err != nil {
		h.serverError(w, r, "/schedule", "add class failed", err)
		return
	}
	h.flash(w, r, flashSuccess, "Class added successfully!")
	http.Redirect(w, r, "/schedule", http.StatusSeeOther)
}

// BookClass books a member into a class.
func (h *Handlers) BookClass(w http.ResponseWriter, r *http.Request) {
	classID := r.PathValue("id")
	memberID := r.FormValue("member_id")

	var err error
	if _, lookupErr := h.gym.Member(r.Context(), owner(r), memberID); lookupErr != nil {
		err = lookupErr
	} else {
		err = h.gym.BookClass(r.Context(), owner(r), memberID, classID)
	}
	switch {
	case errors.Is(err, gym.ErrClassFull):
		h.flash(w, r, flashError, "Booking failed: the class is full.")
	case err != nil:
		h.logger.Warn("booking failed", zap.String("class_id", classID), zap.String("member_id", memberID), zap.Error(err))
		h.flash(w, r, flashError, "Booking failed (Full or invalid)")
	default:
		h.flash(w, r, flashSuccess, "Booking confirmed!")
	}
	http.Redirect(w, r, "/schedule", http.StatusSeeOther)
}
