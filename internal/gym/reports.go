package gym

import (
	"math"
	"time"

	"gym-manager/internal/models"
)

// CheckInResult is the outcome of scanning a member card.
type CheckInResult string

const (
	AccessGranted      CheckInResult = "ACCESS GRANTED"
	AccessTrial        CheckInResult = "TRIAL"
	AccessTrialExpired CheckInResult = "ACCESS DENIED - TRIAL EXPIRED"
	AccessFeePending   CheckInResult = "ACCESS DENIED - FEE PENDING"
)

// Granted reports whether the member may enter.
func (r CheckInResult) Granted() bool {
	return r == AccessGranted || r == AccessTrial
}

// CheckIn decides whether a member may enter today. Only members who paid
// for the current month get their visit logged.
func (d *Document) CheckIn(memberID string, now time.Time) (CheckInResult, error) {
	result, err := d.Access(memberID, now)
	if err != nil || result != AccessGranted {
		return result, err
	}
	if err := d.LogAttendance(memberID, now); err != nil {
		return "", err
	}
	return AccessGranted, nil
}

// Access decides a check-in without recording it.
func (d *Document) Access(memberID string, now time.Time) (CheckInResult, error) {
	m, err := d.Member(memberID)
	if err != nil {
		return "", err
	}
	if d.IsFeePaid(memberID, MonthOf(now)) {
		return AccessGranted, nil
	}
	if m.IsTrial && m.TrialEndDate != "" {
		if m.TrialEndDate >= now.Format(DateLayout) {
			return AccessTrial, nil
		}
		return AccessTrialExpired, nil
	}
	return AccessFeePending, nil
}

// DashboardStats are the headline numbers for a month.
type DashboardStats struct {
	Month          string
	Revenue        float64
	LastRevenue    float64
	RevenueChange  float64
	TotalMembers   int
	ExpiringTrials int
	Status         models.PaymentStatus
}

// Dashboard computes headline numbers for month relative to the previous month.
func (d *Document) Dashboard(month string, now time.Time) (DashboardStats, error) {
	start, err := parseMonth(month)
	if err != nil {
		return DashboardStats{}, err
	}
	prev := MonthOf(start.AddDate(0, -1, 0))

	stats := DashboardStats{
		Month:        month,
		Status:       d.PaymentStatus(month),
		Revenue:      d.Revenue(month),
		LastRevenue:  d.Revenue(prev),
		TotalMembers: len(d.Members),
	}
	if stats.LastRevenue > 0 {
		stats.RevenueChange = round((stats.Revenue-stats.LastRevenue)/stats.LastRevenue*100, 1)
	}

	today := dateOnly(now)
	for _, m := range d.Members {
		if !m.IsTrial || m.TrialEndDate == "" {
			continue
		}
		end, err := time.ParseInLocation(DateLayout, m.TrialEndDate, now.Location())
		if err != nil {
			continue
		}
		days := int(math.Round(end.Sub(today).Hours() / 24))
		if days >= 0 && days <= TrialDays {
			stats.ExpiringTrials++
		}
	}
	return stats, nil
}

// TrendPoint is one month of revenue.
type TrendPoint struct {
	Month   string
	Label   string
	Revenue float64
}

// RevenueTrend returns revenue for the n months ending with the month of
// now, oldest first.
func (d *Document) RevenueTrend(n int, now time.Time) []TrendPoint {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	out := make([]TrendPoint, 0, n)
	for i := n - 1; i >= 0; i-- {
		t := first.AddDate(0, -i, 0)
		out = append(out, TrendPoint{
			Month:   MonthOf(t),
			Label:   t.Format("Jan 2006"),
			Revenue: d.Revenue(MonthOf(t)),
		})
	}
	return out
}

// ReportStats summarise the gym for the reports page.
type ReportStats struct {
	Month         string
	TotalMembers  int
	PaidCount     int
	UnpaidCount   int
	TotalCheckIns int
	ProfitLoss    models.ProfitLoss
	Trend         []TrendPoint
}

// Report builds the reports page numbers for the month of now.
func (d *Document) Report(now time.Time) ReportStats {
	month := MonthOf(now)
	status := d.PaymentStatus(month)
	return ReportStats{
		Month:         month,
		TotalMembers:  len(d.Members),
		PaidCount:     len(status.Paid),
		UnpaidCount:   len(status.Unpaid),
		TotalCheckIns: d.TotalCheckIns(),
		ProfitLoss:    d.ProfitLoss(month),
		Trend:         d.RevenueTrend(6, now),
	}
}

// MonthOption is an entry in a month picker.
type MonthOption struct {
	Value string
	Label string
}

// MonthOptions lists 12 past months, the current month and 24 future
// months, newest first.
func MonthOptions(now time.Time) []MonthOption {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	out := make([]MonthOption, 0, 37)
	for i := 24; i >= -12; i-- {
		t := first.AddDate(0, i, 0)
		out = append(out, MonthOption{Value: MonthOf(t), Label: t.Format("January 2006")})
	}
	return out
}

// RecentMonthOptions lists the n months ending with the month of now,
// newest first.
func RecentMonthOptions(now time.Time, n int) []MonthOption {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	out := make([]MonthOption, 0, n)
	for i := 0; i < n; i++ {
		t := first.AddDate(0, -i, 0)
		out = append(out, MonthOption{Value: MonthOf(t), Label: t.Format("January 2006")})
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
