package gym

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func addMember(t *testing.T, d *Document, name string) string {
	t.Helper()
	id, err := d.AddMember(NewMember{Name: name, Phone: "555"}, testNow)
	require.NoError(t, err)
	return id
}

func TestNewDocumentDefaults(t *testing.T) {
	d := NewDocument()
	assert.Empty(t, d.Members)
	assert.Equal(t, 1, d.NextMemberID)
	assert.Equal(t, "Gym Manager", d.GymDetails.Name)
	assert.Equal(t, "$", d.GymDetails.Currency)
	assert.Empty(t, d.GymDetails.Logo)
}

func TestAddMemberAssignsSequentialIDs(t *testing.T) {
	d := NewDocument()
	a := addMember(t, d, "Alice")
	b := addMember(t, d, "Bob")
	assert.Equal(t, "1", a)
	assert.Equal(t, "2", b)

	require.NoError(t, d.DeleteMember(b))
	c := addMember(t, d, "Carol")
	assert.Equal(t, "3", c, "deleted IDs are never reused")
}

func TestAddMemberTrial(t *testing.T) {
	d := NewDocument()
	id, err := d.AddMember(NewMember{Name: "Tina", IsTrial: true, JoinedDate: "2024-01-30"}, testNow)
	require.NoError(t, err)

	m, err := d.Member(id)
	require.NoError(t, err)
	assert.True(t, m.IsTrial)
	assert.Equal(t, "2024-02-02", m.TrialEndDate)
	assert.Equal(t, "Gym", m.MembershipType)
	assert.True(t, m.Active)

	id, err = d.AddMember(NewMember{Name: "Default"}, testNow)
	require.NoError(t, err)
	m, _ = d.Member(id)
	assert.Equal(t, "2024-01-15", m.JoinedDate)
	assert.Empty(t, m.TrialEndDate)

	_, err = d.AddMember(NewMember{Name: "Bad", JoinedDate: "15/01/2024"}, testNow)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestPayFeeAndIsFeePaid(t *testing.T) {
	d := NewDocument()
	alice := addMember(t, d, "Alice")

	require.NoError(t, d.PayFee(alice, "2024-01", 50, "", "", testNow))
	assert.True(t, d.IsFeePaid(alice, "2024-01"))
	assert.False(t, d.IsFeePaid(alice, "2024-02"))

	f, err := d.Fee(alice, "2024-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15 10:30:00", f.PaidDate)

	status := d.PaymentStatus("2024-01")
	require.Len(t, status.Paid, 1)
	assert.Equal(t, "Alice", status.Paid[0].Name)
	assert.Equal(t, 50.0, status.Paid[0].Amount)

	require.NoError(t, d.DeleteFee(alice, "2024-01"))
	assert.False(t, d.IsFeePaid(alice, "2024-01"))
	assert.ErrorIs(t, d.DeleteFee(alice, "2024-01"), ErrFeeNotFound)
}

func TestPayFeeZeroAmountCountsAsPaid(t *testing.T) {
	d := NewDocument()
	id := addMember(t, d, "Free")
	require.NoError(t, d.PayFee(id, "2024-01", 0, "", "", testNow))
	assert.True(t, d.IsFeePaid(id, "2024-01"))
}

func TestPayFeeOverwrites(t *testing.T) {
	d := NewDocument()
	id := addMember(t, d, "Alice")
	require.NoError(t, d.PayFee(id, "2024-01", 50, "2024-01-01 09:00:00", "first", testNow))
	require.NoError(t, d.PayFee(id, "2024-01", 70, "2024-01-02 09:00:00", "second", testNow))

	history := d.FeeHistory(id)
	require.Len(t, history, 1)
	assert.Equal(t, 70.0, history[0].Amount)
	assert.Equal(t, "second", history[0].Notes)
}

func TestPayFeeErrors(t *testing.T) {
	d := NewDocument()
	assert.ErrorIs(t, d.PayFee("99", "2024-01", 10, "", "", testNow), ErrMemberNotFound)

	id := addMember(t, d, "Alice")
	assert.ErrorIs(t, d.PayFee(id, "January", 10, "", "", testNow), ErrInvalidMonth)
}

func TestUpdateFee(t *testing.T) {
	d := NewDocument()
	id := addMember(t, d, "Alice")
	require.NoError(t, d.PayFee(id, "2024-01", 50, "", "cash", testNow))

	require.NoError(t, d.UpdateFee(id, "2024-01", 60, "2024-01-20", nil))
	f, _ := d.Fee(id, "2024-01")
	assert.Equal(t, 60.0, f.Amount)
	assert.Equal(t, "2024-01-20", f.PaidDate)
	assert.Equal(t, "cash", f.Notes)

	notes := "card"
	require.NoError(t, d.UpdateFee(id, "2024-01", 60, "2024-01-20", &notes))
	f, _ = d.Fee(id, "2024-01")
	assert.Equal(t, "card", f.Notes)

	assert.ErrorIs(t, d.UpdateFee(id, "2024-02", 1, "", nil), ErrFeeNotFound)
}

func TestFeeHistorySortedByMonthDescending(t *testing.T) {
	d := NewDocument()
	id := addMember(t, d, "Alice")
	for _, month := range []string{"2023-11", "2024-02", "2024-01"} {
		require.NoError(t, d.PayFee(id, month, 10, "", "", testNow))
	}
	history := d.FeeHistory(id)
	require.Len(t, history, 3)
	assert.Equal(t, "2024-02", history[0].Month)
	assert.Equal(t, "2024-01", history[1].Month)
	assert.Equal(t, "2023-11", history[2].Month)
}

func TestPaymentStatusPartitionsAllMembers(t *testing.T) {
	d := NewDocument()
	ids := []string{addMember(t, d, "A"), addMember(t, d, "B"), addMember(t, d, "C")}
	require.NoError(t, d.PayFee(ids[1], "2024-01", 40, "", "", testNow))

	for _, month := range []string{"2024-01", "2024-02"} {
		status := d.PaymentStatus(month)
		seen := map[string]bool{}
		for _, p := range status.Paid {
			seen[p.ID] = true
		}
		for _, u := range status.Unpaid {
			assert.False(t, seen[u.ID], "member %s is both paid and unpaid", u.ID)
			seen[u.ID] = true
		}
		assert.Len(t, seen, len(ids), "month %s", month)
	}
}

func TestUpdateMember(t *testing.T) {
	d := NewDocument()
	id, err := d.AddMember(NewMember{Name: "Alice", Email: "a@x.com", Photo: "a.png"}, testNow)
	require.NoError(t, err)

	require.NoError(t, d.UpdateMember(id, MemberUpdate{Name: "Alicia", Phone: "777", MembershipType: "Cardio"}))
	m, _ := d.Member(id)
	assert.Equal(t, "Alicia", m.Name)
	assert.Equal(t, "777", m.Phone)
	assert.Equal(t, "Cardio", m.MembershipType)
	assert.Equal(t, "a@x.com", m.Email)
	assert.Equal(t, "a.png", m.Photo)
	assert.Equal(t, "2024-01-15", m.JoinedDate)

	assert.ErrorIs(t, d.UpdateMember("42", MemberUpdate{Name: "x"}), ErrMemberNotFound)
	assert.ErrorIs(t, d.UpdateMember(id, MemberUpdate{Name: "x", JoinedDate: "bad"}), ErrInvalidDate)
}

func TestDeleteMemberRemovesFees(t *testing.T) {
	d := NewDocument()
	id := addMember(t, d, "Alice")
	require.NoError(t, d.PayFee(id, "2024-01", 50, "", "", testNow))
	require.NoError(t, d.LogAttendance(id, testNow))
	classID := d.AddClass("Yoga", "Monday", "17:00", "Sam", 5)
	require.NoError(t, d.BookClass(id, classID))

	require.NoError(t, d.DeleteMember(id))
	_, err := d.Member(id)
	assert.ErrorIs(t, err, ErrMemberNotFound)
	assert.Empty(t, d.FeeHistory(id))
	assert.Empty(t, d.AttendanceFor(id))
	assert.Empty(t, d.Classes[classID].Attendees)

	assert.ErrorIs(t, d.DeleteMember(id), ErrMemberNotFound)
}

func TestExpenses(t *testing.T) {
	d := NewDocument()
	first, err := d.AddExpense("Rent", 500, "2024-01-01", "January rent")
	require.NoError(t, err)
	assert.Equal(t, "EXP0001", first)
	second, err := d.AddExpense("Utilities", 80, "2024-01-10", "")
	require.NoError(t, err)
	_, err = d.AddExpense("Rent", 500, "2024-02-01", "")
	require.NoError(t, err)

	jan := d.ExpensesFor("2024-01")
	require.Len(t, jan, 2)
	assert.Equal(t, second, jan[0].ID, "newest first")
	assert.Len(t, d.ExpensesFor(""), 3)

	_, err = d.AddExpense("Rent", 1, "not-a-date", "")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestExpenseIDsNeverCollideAfterDelete(t *testing.T) {
	d := NewDocument()
	a, _ := d.AddExpense("A", 1, "2024-01-01", "")
	b, _ := d.AddExpense("B", 1, "2024-01-01", "")
	require.NoError(t, d.DeleteExpense(a))

	c, err := d.AddExpense("C", 1, "2024-01-01", "")
	require.NoError(t, err)
	assert.NotEqual(t, b, c)
	assert.Equal(t, "EXP0003", c)
	assert.Len(t, d.Expenses, 2)

	assert.ErrorIs(t, d.DeleteExpense(a), ErrExpenseNotFound)
}

func TestProfitLoss(t *testing.T) {
	d := NewDocument()
	id := addMember(t, d, "Alice")
	require.NoError(t, d.PayFee(id, "2024-01", 200, "", "", testNow))
	_, err := d.AddExpense("Rent", 150, "2024-01-05", "")
	require.NoError(t, err)

	pl := d.ProfitLoss("2024-01")
	assert.Equal(t, 200.0, pl.Revenue)
	assert.Equal(t, 150.0, pl.Expenses)
	assert.Equal(t, 50.0, pl.NetProfit)
	assert.Equal(t, 25.0, pl.ProfitMargin)
	assert.True(t, pl.HasRevenue)
}

func TestProfitLossZeroRevenue(t *testing.T) {
	d := NewDocument()
	_, err := d.AddExpense("Rent", 150, "2024-01-05", "")
	require.NoError(t, err)

	pl := d.ProfitLoss("2024-01")
	assert.Equal(t, 0.0, pl.ProfitMargin)
	assert.Equal(t, -150.0, pl.NetProfit)
	assert.False(t, pl.HasRevenue)
}

func TestProfitMarginRounded(t *testing.T) {
	d := NewDocument()
	id := addMember(t, d, "Alice")
	require.NoError(t, d.PayFee(id, "2024-01", 300, "", "", testNow))
	_, err := d.AddExpense("Rent", 100, "2024-01-05", "")
	require.NoError(t, err)

	assert.Equal(t, 66.67, d.ProfitLoss("2024-01").ProfitMargin)
}

func TestAttendance(t *testing.T) {
	d := NewDocument()
	id := addMember(t, d, "Alice")
	require.NoError(t, d.LogAttendance(id, testNow))
	require.NoError(t, d.LogAttendance(id, testNow.Add(time.Minute)))

	log := d.AttendanceFor(id)
	require.Len(t, log, 2, "repeat check-ins are all recorded")
	assert.Equal(t, "2024-01-15 10:31:00", log[0])
	assert.Equal(t, 2, d.TotalCheckIns())

	assert.ErrorIs(t, d.LogAttendance("99", testNow), ErrMemberNotFound)
}

func TestBookClassCapacity(t *testing.T) {
	d := NewDocument()
	a := addMember(t, d, "A")
	b := addMember(t, d, "B")
	classID := d.AddClass("Spin", "Tuesday", "18:00", "Lee", 1)

	require.NoError(t, d.BookClass(a, classID))
	assert.ErrorIs(t, d.BookClass(b, classID), ErrClassFull)
	require.NoError(t, d.BookClass(a, classID), "rebooking is idempotent")
	assert.Equal(t, []string{a}, d.Classes[classID].Attendees)

	assert.ErrorIs(t, d.BookClass(a, "99"), ErrClassNotFound)
}

func TestClassIDsAreSequential(t *testing.T) {
	d := NewDocument()
	assert.Equal(t, "1", d.AddClass("A", "Mon", "1", "x", 1))
	assert.Equal(t, "2", d.AddClass("B", "Mon", "1", "x", 1))
	classes := d.AllClasses()
	require.Len(t, classes, 2)
	assert.Equal(t, 1, classes[0].Spots())
}

func TestUpdateDetails(t *testing.T) {
	d := NewDocument()
	d.UpdateDetails("Iron Temple", "logo_1.png", "Rs")
	assert.Equal(t, "Iron Temple", d.GymDetails.Name)
	assert.Equal(t, "logo_1.png", d.GymDetails.Logo)
	assert.Equal(t, "Rs", d.GymDetails.Currency)

	d.UpdateDetails("Iron Temple", "", "Rs")
	assert.Equal(t, "logo_1.png", d.GymDetails.Logo)
}

func TestLegacyDocumentDerivesCounters(t *testing.T) {
	legacy := `{
		"members": {"1": {"id": "1", "name": "A"}, "7": {"id": "7", "name": "B"}},
		"fees": {},
		"expenses": {"EXP0002": {"id": "EXP0002", "category": "Rent", "amount": 1, "date": "2024-01-01"}},
		"classes": {"3": {"id": "3", "name": "Yoga", "capacity": 2, "attendees": []}},
		"gym_details": {"name": "Old Gym", "logo": null, "currency": "$"}
	}`
	d := &Document{}
	require.NoError(t, json.Unmarshal([]byte(legacy), d))
	d.normalize()

	assert.Equal(t, 8, d.NextMemberID)
	assert.Equal(t, 3, d.NextExpenseID)
	assert.Equal(t, 4, d.NextClassID)
	assert.NotNil(t, d.Attendance)
	assert.Equal(t, "Old Gym", d.GymDetails.Name)
}
