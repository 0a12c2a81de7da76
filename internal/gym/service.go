package gym

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gym-manager/internal/models"
	"gym-manager/internal/storage"

	"go.uber.org/zap"
)

// maxSaveAttempts bounds retries when another process wrote the document
// between our load and save.
const maxSaveAttempts = 3

// DocumentStore persists one serialized document per owner.
// Implemented by *storage.DB and *storage.FileStore.
type DocumentStore interface {
	LoadGymDocument(ctx context.Context, owner string) ([]byte, int64, error)
	SaveGymDocument(ctx context.Context, owner string, body []byte, version int64) (int64, error)
	DeleteGymDocument(ctx context.Context, owner string) error
}

// Service gives access to each owner's gym document. Updates for the same
// owner run one at a time.
type Service struct {
	store  DocumentStore
	logger *zap.Logger
	locks  *ownerLocks
	now    func() time.Time
}

// NewService returns a Service backed by store.
func NewService(store DocumentStore, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		locks:  newOwnerLocks(),
		now:    time.Now,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Now returns the service's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) load(ctx context.Context, owner string) (*Document, int64, error) {
	body, version, err := s.store.LoadGymDocument(ctx, owner)
	if errors.Is(err, storage.ErrNotFound) {
		return NewDocument(), 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load gym document: %w", err)
	}

	doc := &Document{}
	if err := json.Unmarshal(body, doc); err != nil {
		s.logger.Warn("malformed gym document, starting fresh",
			zap.String("owner", owner),
			zap.Error(err),
		)
		return NewDocument(), version, nil
	}
	doc.normalize()
	return doc, version, nil
}

// View loads the owner's document and passes it to fn. Changes made by fn
// are discarded.
func (s *Service) View(ctx context.Context, owner string, fn func(*Document) error) error {
	doc, _, err := s.load(ctx, owner)
	if err != nil {
		return err
	}
	return fn(doc)
}

// Update loads the owner's document, applies fn and saves the result. When fn
// returns an error nothing is written.
func (s *Service) Update(ctx context.Context, owner string, fn func(*Document) error) error {
	unlock := s.locks.lock(owner)
	defer unlock()

	for attempt := 1; ; attempt++ {
		doc, version, err := s.load(ctx, owner)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		body, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("encode gym document: %w", err)
		}
		_, err = s.store.SaveGymDocument(ctx, owner, body, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrVersionConflict) || attempt == maxSaveAttempts {
			return fmt.Errorf("save gym document: %w", err)
		}
		s.logger.Debug("gym document changed during update, retrying",
			zap.String("owner", owner),
			zap.Int("attempt", attempt),
		)
	}
}

// Reset discards all of the owner's gym data.
func (s *Service) Reset(ctx context.Context, owner string) error {
	unlock := s.locks.lock(owner)
	defer unlock()
	return s.store.DeleteGymDocument(ctx, owner)
}

// AddMember registers a member.
func (s *Service) AddMember(ctx context.Context, owner string, in NewMember) (string, error) {
	var id string
	err := s.Update(ctx, owner, func(d *Document) error {
		var err error
		id, err = d.AddMember(in, s.now())
		return err
	})
	return id, err
}

// AddMemberWithPayment registers a member and, when amount is positive,
// records their first fee for month. A paying member is never a trial.
func (s *Service) AddMemberWithPayment(ctx context.Context, owner string, in NewMember, month string, amount float64) (string, error) {
	if amount > 0 {
		in.IsTrial = false
	}
	var id string
	err := s.Update(ctx, owner, func(d *Document) error {
		now := s.now()
		var err error
		if id, err = d.AddMember(in, now); err != nil {
			return err
		}
		if amount > 0 {
			if month == "" {
				month = MonthOf(now)
			}
			return d.PayFee(id, month, amount, "", "Initial payment", now)
		}
		return nil
	})
	return id, err
}

// Member returns one member.
func (s *Service) Member(ctx context.Context, owner, id string) (models.Member, error) {
	var m models.Member
	err := s.View(ctx, owner, func(d *Document) error {
		var err error
		m, err = d.Member(id)
		return err
	})
	return m, err
}

// Members returns all members ordered by ID.
func (s *Service) Members(ctx context.Context, owner string) ([]models.Member, error) {
	var out []models.Member
	err := s.View(ctx, owner, func(d *Document) error {
		out = d.AllMembers()
		return nil
	})
	return out, err
}

// UpdateMember edits a member.
func (s *Service) UpdateMember(ctx context.Context, owner, id string, u MemberUpdate) error {
	return s.Update(ctx, owner, func(d *Document) error { return d.UpdateMember(id, u) })
}

// DeleteMember removes a member and their records.
func (s *Service) DeleteMember(ctx context.Context, owner, id string) error {
	return s.Update(ctx, owner, func(d *Document) error { return d.DeleteMember(id) })
}

// PayFee records a monthly fee.
func (s *Service) PayFee(ctx context.Context, owner, memberID, month string, amount float64, paidDate, notes string) error {
	return s.Update(ctx, owner, func(d *Document) error {
		return d.PayFee(memberID, month, amount, paidDate, notes, s.now())
	})
}

// IsFeePaid reports whether the member paid for month.
func (s *Service) IsFeePaid(ctx context.Context, owner, memberID, month string) (bool, error) {
	var paid bool
	err := s.View(ctx, owner, func(d *Document) error {
		paid = d.IsFeePaid(memberID, month)
		return nil
	})
	return paid, err
}

// Fee returns one fee record.
func (s *Service) Fee(ctx context.Context, owner, memberID, month string) (models.FeeRecord, error) {
	var f models.FeeRecord
	err := s.View(ctx, owner, func(d *Document) error {
		var err error
		f, err = d.Fee(memberID, month)
		return err
	})
	return f, err
}

// UpdateFee edits an existing fee record.
func (s *Service) UpdateFee(ctx context.Context, owner, memberID, month string, amount float64, paidDate string, notes *string) error {
	return s.Update(ctx, owner, func(d *Document) error {
		return d.UpdateFee(memberID, month, amount, paidDate, notes)
	})
}

// DeleteFee removes a fee record.
func (s *Service) DeleteFee(ctx context.Context, owner, memberID, month string) error {
	return s.Update(ctx, owner, func(d *Document) error { return d.DeleteFee(memberID, month) })
}

// FeeHistory lists a member's fees, latest month first.
func (s *Service) FeeHistory(ctx context.Context, owner, memberID string) ([]models.FeeHistoryEntry, error) {
	var out []models.FeeHistoryEntry
	err := s.View(ctx, owner, func(d *Document) error {
		out = d.FeeHistory(memberID)
		return nil
	})
	return out, err
}

// PaymentStatus partitions members by fee status for month. An empty month
// means the current one.
func (s *Service) PaymentStatus(ctx context.Context, owner, month string) (models.PaymentStatus, error) {
	if month == "" {
		month = MonthOf(s.now())
	}
	var status models.PaymentStatus
	err := s.View(ctx, owner, func(d *Document) error {
		status = d.PaymentStatus(month)
		return nil
	})
	return status, err
}

// ProfitLoss returns the month's profit and loss.
func (s *Service) ProfitLoss(ctx context.Context, owner, month string) (models.ProfitLoss, error) {
	var pl models.ProfitLoss
	err := s.View(ctx, owner, func(d *Document) error {
		pl = d.ProfitLoss(month)
		return nil
	})
	return pl, err
}

// AddExpense records an expense.
func (s *Service) AddExpense(ctx context.Context, owner, category string, amount float64, date, description string) (string, error) {
	var id string
	err := s.Update(ctx, owner, func(d *Document) error {
		var err error
		id, err = d.AddExpense(category, amount, date, description)
		return err
	})
	return id, err
}

// Expenses lists expenses for month, or all when month is empty.
func (s *Service) Expenses(ctx context.Context, owner, month string) ([]models.Expense, error) {
	var out []models.Expense
	err := s.View(ctx, owner, func(d *Document) error {
		out = d.ExpensesFor(month)
		return nil
	})
	return out, err
}

// DeleteExpense removes an expense.
func (s *Service) DeleteExpense(ctx context.Context, owner, id string) error {
	return s.Update(ctx, owner, func(d *Document) error { return d.DeleteExpense(id) })
}

// LogAttendance records a visit.
func (s *Service) LogAttendance(ctx context.Context, owner, memberID string) error {
	return s.Update(ctx, owner, func(d *Document) error { return d.LogAttendance(memberID, s.now()) })
}

// Attendance returns a member's visits, newest first.
func (s *Service) Attendance(ctx context.Context, owner, memberID string) ([]string, error) {
	var out []string
	err := s.View(ctx, owner, func(d *Document) error {
		out = d.AttendanceFor(memberID)
		return nil
	})
	return out, err
}

// CheckIn decides whether the member may enter and logs paid visits.
func (s *Service) CheckIn(ctx context.Context, owner, memberID string) (CheckInResult, error) {
	var result CheckInResult
	err := s.Update(ctx, owner, func(d *Document) error {
		var err error
		result, err = d.CheckIn(memberID, s.now())
		return err
	})
	return result, err
}

// AddClass schedules a class.
func (s *Service) AddClass(ctx context.Context, owner, name, day, at, instructor string, capacity int) (string, error) {
	var id string
	err := s.Update(ctx, owner, func(d *Document) error {
		id = d.AddClass(name, day, at, instructor, capacity)
		return nil
	})
	return id, err
}

// Classes lists scheduled classes.
func (s *Service) Classes(ctx context.Context, owner string) ([]models.Class, error) {
	var out []models.Class
	err := s.View(ctx, owner, func(d *Document) error {
		out = d.AllClasses()
		return nil
	})
	return out, err
}

// BookClass books a member into a class.
func (s *Service) BookClass(ctx context.Context, owner, memberID, classID string) error {
	return s.Update(ctx, owner, func(d *Document) error { return d.BookClass(memberID, classID) })
}

// Details returns the gym profile.
func (s *Service) Details(ctx context.Context, owner string) (models.GymDetails, error) {
	var details models.GymDetails
	err := s.View(ctx, owner, func(d *Document) error {
		details = d.GymDetails
		return nil
	})
	return details, err
}

// UpdateDetails changes the gym profile.
func (s *Service) UpdateDetails(ctx context.Context, owner, name, logo, currency string) error {
	return s.Update(ctx, owner, func(d *Document) error {
		d.UpdateDetails(name, logo, currency)
		return nil
	})
}

// Dashboard computes the dashboard numbers for month.
func (s *Service) Dashboard(ctx context.Context, owner, month string) (DashboardStats, error) {
	if month == "" {
		month = MonthOf(s.now())
	}
	var stats DashboardStats
	err := s.View(ctx, owner, func(d *Document) error {
		var err error
		stats, err = d.Dashboard(month, s.now())
		return err
	})
	return stats, err
}

// Report computes the reports page numbers.
func (s *Service) Report(ctx context.Context, owner string) (ReportStats, error) {
	var stats ReportStats
	err := s.View(ctx, owner, func(d *Document) error {
		stats = d.Report(s.now())
		return nil
	})
	return stats, err
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

type ownerLocks struct {
	mu    sync.Mutex
	locks map[string]*ownerLock
}

func newOwnerLocks() *ownerLocks {
	return &ownerLocks{locks: make(map[string]*ownerLock)}
}

// lock blocks until the owner's lock is held and returns its release func.
// Entries are dropped once nobody holds or waits for them.
func (l *ownerLocks) lock(owner string) func() {
	l.mu.Lock()
	ol, ok := l.locks[owner]
	if !ok {
		ol = &ownerLock{}
		l.locks[owner] = ol
	}
	ol.refs++
	l.mu.Unlock()

	ol.mu.Lock()
	return func() {
		ol.mu.Unlock()
		l.mu.Lock()
		ol.refs--
		if ol.refs == 0 {
			delete(l.locks, owner)
		}
		l.mu.Unlock()
	}
}
