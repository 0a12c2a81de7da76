package gym

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckIn(t *testing.T) {
	d := NewDocument()
	paid := addMember(t, d, "Paid")
	require.NoError(t, d.PayFee(paid, "2024-01", 50, "", "", testNow))

	trial, err := d.AddMember(NewMember{Name: "Trial", IsTrial: true, JoinedDate: "2024-01-14"}, testNow)
	require.NoError(t, err)
	expired, err := d.AddMember(NewMember{Name: "Expired", IsTrial: true, JoinedDate: "2024-01-01"}, testNow)
	require.NoError(t, err)
	unpaid := addMember(t, d, "Unpaid")

	tests := []struct {
		member string
		want   CheckInResult
	}{
		{paid, AccessGranted},
		{trial, AccessTrial},
		{expired, AccessTrialExpired},
		{unpaid, AccessFeePending},
	}
	for _, tt := range tests {
		got, err := d.CheckIn(tt.member, testNow)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "member %s", tt.member)
	}

	assert.Len(t, d.AttendanceFor(paid), 1, "granted check-ins are logged")
	got, err := d.Access(paid, testNow)
	require.NoError(t, err)
	assert.Equal(t, AccessGranted, got)
	assert.Len(t, d.AttendanceFor(paid), 1, "deciding access records nothing")
	assert.Empty(t, d.AttendanceFor(trial), "trial check-ins are not logged")
	assert.True(t, AccessTrial.Granted())
	assert.False(t, AccessFeePending.Granted())

	_, err = d.Access("99", testNow)
	assert.ErrorIs(t, err, ErrMemberNotFound)
	_, err = d.CheckIn("99", testNow)
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestCheckInTrialLastDay(t *testing.T) {
	d := NewDocument()
	id, err := d.AddMember(NewMember{Name: "Trial", IsTrial: true, JoinedDate: "2024-01-12"}, testNow)
	require.NoError(t, err)

	got, err := d.CheckIn(id, testNow)
	require.NoError(t, err)
	assert.Equal(t, AccessTrial, got, "trial is valid through its end date")
}

func TestDashboard(t *testing.T) {
	d := NewDocument()
	a := addMember(t, d, "A")
	b := addMember(t, d, "B")
	require.NoError(t, d.PayFee(a, "2023-12", 100, "", "", testNow))
	require.NoError(t, d.PayFee(a, "2024-01", 100, "", "", testNow))
	require.NoError(t, d.PayFee(b, "2024-01", 50, "", "", testNow))

	_, err := d.AddMember(NewMember{Name: "Soon", IsTrial: true, JoinedDate: "2024-01-14"}, testNow)
	require.NoError(t, err)
	_, err = d.AddMember(NewMember{Name: "Gone", IsTrial: true, JoinedDate: "2024-01-01"}, testNow)
	require.NoError(t, err)

	stats, err := d.Dashboard("2024-01", testNow)
	require.NoError(t, err)
	assert.Equal(t, 150.0, stats.Revenue)
	assert.Equal(t, 100.0, stats.LastRevenue)
	assert.Equal(t, 50.0, stats.RevenueChange)
	assert.Equal(t, 4, stats.TotalMembers)
	assert.Equal(t, 1, stats.ExpiringTrials)
	assert.Len(t, stats.Status.Paid, 2)

	_, err = d.Dashboard("2024/01", testNow)
	assert.ErrorIs(t, err, ErrInvalidMonth)
}

func TestDashboardNoPreviousRevenue(t *testing.T) {
	d := NewDocument()
	a := addMember(t, d, "A")
	require.NoError(t, d.PayFee(a, "2024-01", 100, "", "", testNow))

	stats, err := d.Dashboard("2024-01", testNow)
	require.NoError(t, err)
	assert.Equal(t, 0.0, stats.RevenueChange)
}

func TestRevenueTrend(t *testing.T) {
	d := NewDocument()
	a := addMember(t, d, "A")
	require.NoError(t, d.PayFee(a, "2023-09", 30, "", "", testNow))
	require.NoError(t, d.PayFee(a, "2024-01", 60, "", "", testNow))

	trend := d.RevenueTrend(6, testNow)
	require.Len(t, trend, 6)
	assert.Equal(t, "2023-08", trend[0].Month)
	assert.Equal(t, "2024-01", trend[5].Month)
	assert.Equal(t, 30.0, trend[1].Revenue)
	assert.Equal(t, 60.0, trend[5].Revenue)
	assert.Equal(t, "Jan 2024", trend[5].Label)
}

func TestReport(t *testing.T) {
	d := NewDocument()
	a := addMember(t, d, "A")
	addMember(t, d, "B")
	require.NoError(t, d.PayFee(a, "2024-01", 60, "", "", testNow))
	require.NoError(t, d.LogAttendance(a, testNow))

	r := d.Report(testNow)
	assert.Equal(t, "2024-01", r.Month)
	assert.Equal(t, 2, r.TotalMembers)
	assert.Equal(t, 1, r.PaidCount)
	assert.Equal(t, 1, r.UnpaidCount)
	assert.Equal(t, 1, r.TotalCheckIns)
	assert.Equal(t, 60.0, r.ProfitLoss.Revenue)
	assert.Len(t, r.Trend, 6)
}

func TestMonthOptions(t *testing.T) {
	opts := MonthOptions(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.Len(t, opts, 37)
	assert.Equal(t, "2026-01", opts[0].Value)
	assert.Equal(t, "2024-01", opts[24].Value)
	assert.Equal(t, "January 2024", opts[24].Label)
	assert.Equal(t, "2023-01", opts[36].Value)
}

func TestRecentMonthOptions(t *testing.T) {
	opts := RecentMonthOptions(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), 12)
	require.Len(t, opts, 12)
	assert.Equal(t, "2024-03", opts[0].Value)
	assert.Equal(t, "2024-02", opts[1].Value, "month arithmetic starts from the first of the month")
	assert.Equal(t, "2023-04", opts[11].Value)
}
