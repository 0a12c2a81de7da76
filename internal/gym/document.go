package gym

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gym-manager/internal/models"
)

const (
	// DateLayout is the calendar date format stored in documents.
	DateLayout = "2006-01-02"
	// TimestampLayout is used for paid dates and check-ins.
	TimestampLayout = "2006-01-02 15:04:05"
	// MonthLayout identifies a billing month.
	MonthLayout = "2006-01"

	// TrialDays is the length of a trial membership.
	TrialDays = 3

	defaultGymName  = "Gym Manager"
	defaultCurrency = "$"
)

var (
	ErrMemberNotFound  = errors.New("member not found")
	ErrFeeNotFound     = errors.New("fee record not found")
	ErrExpenseNotFound = errors.New("expense not found")
	ErrClassNotFound   = errors.New("class not found")
	ErrClassFull       = errors.New("class is full")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidMonth    = errors.New("invalid month")
)

// Document is the whole data set of one gym. It is loaded, mutated in memory
// and written back as a unit.
type Document struct {
	Members       map[string]*models.Member               `json:"members"`
	Fees          map[string]map[string]*models.FeeRecord `json:"fees"`
	Expenses      map[string]*models.Expense              `json:"expenses"`
	Attendance    map[string][]string                     `json:"attendance"`
	Classes       map[string]*models.Class                `json:"classes"`
	NextMemberID  int                                     `json:"next_member_id"`
	NextExpenseID int                                     `json:"next_expense_id"`
	NextClassID   int                                     `json:"next_class_id"`
	GymDetails    models.GymDetails                       `json:"gym_details"`
}

// NewDocument returns an empty document with default gym details.
func NewDocument() *Document {
	d := &Document{}
	d.normalize()
	return d
}

// normalize fills in anything an older or partial document lacks.
func (d *Document) normalize() {
	if d.Members == nil {
		d.Members = make(map[string]*models.Member)
	}
	if d.Fees == nil {
		d.Fees = make(map[string]map[string]*models.FeeRecord)
	}
	if d.Expenses == nil {
		d.Expenses = make(map[string]*models.Expense)
	}
	if d.Attendance == nil {
		d.Attendance = make(map[string][]string)
	}
	if d.Classes == nil {
		d.Classes = make(map[string]*models.Class)
	}
	if d.GymDetails.Name == "" {
		d.GymDetails.Name = defaultGymName
	}
	if d.GymDetails.Currency == "" {
		d.GymDetails.Currency = defaultCurrency
	}

	if floor := maxNumericKey(d.Members, "") + 1; d.NextMemberID < floor {
		d.NextMemberID = floor
	}
	if floor := maxNumericKey(d.Expenses, "EXP") + 1; d.NextExpenseID < floor {
		d.NextExpenseID = floor
	}
	if floor := maxNumericKey(d.Classes, "") + 1; d.NextClassID < floor {
		d.NextClassID = floor
	}
}

func maxNumericKey[V any](m map[string]V, prefix string) int {
	highest := 0
	for k := range m {
		n, err := strconv.Atoi(strings.TrimPrefix(k, prefix))
		if err == nil && n > highest {
			highest = n
		}
	}
	return highest
}

func parseMonth(month string) (time.Time, error) {
	t, err := time.Parse(MonthLayout, month)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q: %w", month, ErrInvalidMonth)
	}
	return t, nil
}

// MonthOf returns the billing month containing t.
func MonthOf(t time.Time) string {
	return t.Format(MonthLayout)
}

// NewMember holds the fields accepted when registering a member.
type NewMember struct {
	Name           string
	Phone          string
	Email          string
	Photo          string
	MembershipType string
	JoinedDate     string
	IsTrial        bool
}

// AddMember registers a member and returns the new ID. Trials end TrialDays
// after the joined date, which defaults to today.
func (d *Document) AddMember(in NewMember, now time.Time) (string, error) {
	joined := in.JoinedDate
	if joined == "" {
		joined = now.Format(DateLayout)
	}
	joinedAt, err := time.Parse(DateLayout, joined)
	if err != nil {
		return "", fmt.Errorf("joined date %q: %w", joined, ErrInvalidDate)
	}

	membership := in.MembershipType
	if membership == "" {
		membership = "Gym"
	}

	id := strconv.Itoa(d.NextMemberID)
	m := &models.Member{
		ID:             id,
		Name:           in.Name,
		Phone:          in.Phone,
		Email:          in.Email,
		Photo:          in.Photo,
		JoinedDate:     joined,
		Active:         true,
		MembershipType: membership,
		IsTrial:        in.IsTrial,
	}
	if in.IsTrial {
		m.TrialEndDate = joinedAt.AddDate(0, 0, TrialDays).Format(DateLayout)
	}
	d.Members[id] = m
	d.NextMemberID++
	return id, nil
}

// Member returns a copy of the member with the given ID.
func (d *Document) Member(id string) (models.Member, error) {
	m, ok := d.Members[id]
	if !ok {
		return models.Member{}, fmt.Errorf("member %s: %w", id, ErrMemberNotFound)
	}
	return *m, nil
}

// AllMembers returns every member ordered by ID.
func (d *Document) AllMembers() []models.Member {
	out := make([]models.Member, 0, len(d.Members))
	for _, m := range d.Members {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out
}

func lessID(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

// MemberUpdate carries editable member fields. Empty Email, JoinedDate and
// Photo leave the stored value unchanged.
type MemberUpdate struct {
	Name           string
	Phone          string
	MembershipType string
	Email          string
	JoinedDate     string
	Photo          string
}

// UpdateMember overwrites member fields in place.
func (d *Document) UpdateMember(id string, u MemberUpdate) error {
	m, ok := d.Members[id]
	if !ok {
		return fmt.Errorf("member %s: %w", id, ErrMemberNotFound)
	}
	if u.JoinedDate != "" {
		if _, err := time.Parse(DateLayout, u.JoinedDate); err != nil {
			return fmt.Errorf("joined date %q: %w", u.JoinedDate, ErrInvalidDate)
		}
		m.JoinedDate = u.JoinedDate
	}
	m.Name = u.Name
	m.Phone = u.Phone
	m.MembershipType = u.MembershipType
	if u.Email != "" {
		m.Email = u.Email
	}
	if u.Photo != "" {
		m.Photo = u.Photo
	}
	return nil
}

// DeleteMember removes a member with their fees, attendance and bookings.
func (d *Document) DeleteMember(id string) error {
	if _, ok := d.Members[id]; !ok {
		return fmt.Errorf("member %s: %w", id, ErrMemberNotFound)
	}
	delete(d.Members, id)
	delete(d.Fees, id)
	delete(d.Attendance, id)
	for _, c := range d.Classes {
		c.Attendees = removeString(c.Attendees, id)
	}
	return nil
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// PayFee records a member's fee for month, replacing any existing record.
// An empty paidDate means now.
func (d *Document) PayFee(memberID, month string, amount float64, paidDate, notes string, now time.Time) error {
	if _, ok := d.Members[memberID]; !ok {
		return fmt.Errorf("member %s: %w", memberID, ErrMemberNotFound)
	}
	if _, err := parseMonth(month); err != nil {
		return err
	}
	if paidDate == "" {
		paidDate = now.Format(TimestampLayout)
	}
	if d.Fees[memberID] == nil {
		d.Fees[memberID] = make(map[string]*models.FeeRecord)
	}
	d.Fees[memberID][month] = &models.FeeRecord{Amount: amount, PaidDate: paidDate, Notes: notes}
	return nil
}

// IsFeePaid reports whether any record exists for the member and month.
func (d *Document) IsFeePaid(memberID, month string) bool {
	_, ok := d.Fees[memberID][month]
	return ok
}

// Fee returns the record for a member and month.
func (d *Document) Fee(memberID, month string) (models.FeeRecord, error) {
	f, ok := d.Fees[memberID][month]
	if !ok {
		return models.FeeRecord{}, fmt.Errorf("fee %s/%s: %w", memberID, month, ErrFeeNotFound)
	}
	return *f, nil
}

// UpdateFee changes the amount and paid date of an existing record. A nil
// notes pointer keeps the current notes.
func (d *Document) UpdateFee(memberID, month string, amount float64, paidDate string, notes *string) error {
	f, ok := d.Fees[memberID][month]
	if !ok {
		return fmt.Errorf("fee %s/%s: %w", memberID, month, ErrFeeNotFound)
	}
	f.Amount = amount
	f.PaidDate = paidDate
	if notes != nil {
		f.Notes = *notes
	}
	return nil
}

// DeleteFee removes the record for a member and month.
func (d *Document) DeleteFee(memberID, month string) error {
	if _, ok := d.Fees[memberID][month]; !ok {
		return fmt.Errorf("fee %s/%s: %w", memberID, month, ErrFeeNotFound)
	}
	delete(d.Fees[memberID], month)
	return nil
}

// FeeHistory lists a member's payments, latest month first.
func (d *Document) FeeHistory(memberID string) []models.FeeHistoryEntry {
	fees := d.Fees[memberID]
	out := make([]models.FeeHistoryEntry, 0, len(fees))
	for month, f := range fees {
		out = append(out, models.FeeHistoryEntry{Month: month, FeeRecord: *f})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month > out[j].Month })
	return out
}

// PaymentStatus splits all members into paid and unpaid for month.
func (d *Document) PaymentStatus(month string) models.PaymentStatus {
	status := models.PaymentStatus{
		Month:  month,
		Paid:   []models.PaidMember{},
		Unpaid: []models.Member{},
	}
	for _, m := range d.AllMembers() {
		if f, ok := d.Fees[m.ID][month]; ok {
			status.Paid = append(status.Paid, models.PaidMember{Member: m, LastPaid: f.PaidDate, Amount: f.Amount})
			continue
		}
		status.Unpaid = append(status.Unpaid, m)
	}
	return status
}

// Revenue sums the fees recorded for month.
func (d *Document) Revenue(month string) float64 {
	var total float64
	for id := range d.Members {
		if f, ok := d.Fees[id][month]; ok {
			total += f.Amount
		}
	}
	return total
}

// AddExpense records an expense and returns its ID.
func (d *Document) AddExpense(category string, amount float64, date, description string) (string, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return "", fmt.Errorf("expense date %q: %w", date, ErrInvalidDate)
	}
	id := fmt.Sprintf("EXP%04d", d.NextExpenseID)
	d.Expenses[id] = &models.Expense{
		ID:          id,
		Category:    category,
		Amount:      amount,
		Date:        date,
		Description: description,
	}
	d.NextExpenseID++
	return id, nil
}

// ExpensesFor returns expenses for month, or all when month is empty, newest first.
func (d *Document) ExpensesFor(month string) []models.Expense {
	out := make([]models.Expense, 0, len(d.Expenses))
	for _, e := range d.Expenses {
		if month == "" || strings.HasPrefix(e.Date, month) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// DeleteExpense removes an expense.
func (d *Document) DeleteExpense(id string) error {
	if _, ok := d.Expenses[id]; !ok {
		return fmt.Errorf("expense %s: %w", id, ErrExpenseNotFound)
	}
	delete(d.Expenses, id)
	return nil
}

// ProfitLoss compares fee revenue with expenses for month.
func (d *Document) ProfitLoss(month string) models.ProfitLoss {
	pl := models.ProfitLoss{Month: month, Revenue: d.Revenue(month)}
	for _, e := range d.ExpensesFor(month) {
		pl.Expenses += e.Amount
	}
	pl.NetProfit = pl.Revenue - pl.Expenses
	if pl.Revenue > 0 {
		pl.HasRevenue = true
		pl.ProfitMargin = round(pl.NetProfit/pl.Revenue*100, 2)
	}
	return pl
}

// LogAttendance appends a check-in for the member.
func (d *Document) LogAttendance(memberID string, now time.Time) error {
	if _, ok := d.Members[memberID]; !ok {
		return fmt.Errorf("member %s: %w", memberID, ErrMemberNotFound)
	}
	d.Attendance[memberID] = append(d.Attendance[memberID], now.Format(TimestampLayout))
	return nil
}

// AttendanceFor returns a member's check-ins, newest first.
func (d *Document) AttendanceFor(memberID string) []string {
	log := d.Attendance[memberID]
	out := make([]string, len(log))
	for i, ts := range log {
		out[len(log)-1-i] = ts
	}
	return out
}

// TotalCheckIns counts check-ins across all members.
func (d *Document) TotalCheckIns() int {
	total := 0
	for _, log := range d.Attendance {
		total += len(log)
	}
	return total
}

// AddClass schedules a class and returns its ID.
func (d *Document) AddClass(name, day, at, instructor string, capacity int) string {
	id := strconv.Itoa(d.NextClassID)
	d.Classes[id] = &models.Class{
		ID:         id,
		Name:       name,
		Day:        day,
		Time:       at,
		Instructor: instructor,
		Capacity:   capacity,
		Attendees:  []string{},
	}
	d.NextClassID++
	return id
}

// AllClasses returns every class ordered by ID.
func (d *Document) AllClasses() []models.Class {
	out := make([]models.Class, 0, len(d.Classes))
	for _, c := range d.Classes {
		cp := *c
		cp.Attendees = append([]string(nil), c.Attendees...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out
}

// BookClass adds a member to a class. Booking an already booked member
// succeeds without changes.
func (d *Document) BookClass(memberID, classID string) error {
	c, ok := d.Classes[classID]
	if !ok {
		return fmt.Errorf("class %s: %w", classID, ErrClassNotFound)
	}
	for _, a := range c.Attendees {
		if a == memberID {
			return nil
		}
	}
	if len(c.Attendees) >= c.Capacity {
		return fmt.Errorf("class %s: %w", classID, ErrClassFull)
	}
	c.Attendees = append(c.Attendees, memberID)
	return nil
}

// UpdateDetails replaces the gym profile. An empty logo keeps the current one.
func (d *Document) UpdateDetails(name, logo, currency string) {
	if name != "" {
		d.GymDetails.Name = name
	}
	if logo != "" {
		d.GymDetails.Logo = logo
	}
	if currency != "" {
		d.GymDetails.Currency = currency
	}
}
