package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gym-manager/internal/models"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// DateLayout is the calendar date format used for subscription expiry.
const DateLayout = "2006-01-02"

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicate is returned when a unique column already holds the value.
	ErrDuplicate = errors.New("storage: duplicate")
	// ErrVersionConflict is returned when a document changed since it was loaded.
	ErrVersionConflict = errors.New("storage: version conflict")
)

// DB wraps a sql.DB connection.
type DB struct {
	conn *sql.DB
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// An in-memory database only lives as long as its connection.
	if path == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, err
	}

	return db, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			expires_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			date DATETIME NOT NULL,
			amount REAL NOT NULL,
			method TEXT NOT NULL,
			status TEXT NOT NULL,
			reference TEXT NOT NULL DEFAULT '',
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS gym_documents (
			owner TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			version INTEGER NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return err
		}
	}

	// Subscription columns were added after the users table shipped.
	// We ignore the errors here because the columns might already exist
	_, _ = db.conn.Exec(`ALTER TABLE users ADD COLUMN referral_code TEXT NOT NULL DEFAULT ''`)
	_, _ = db.conn.Exec(`ALTER TABLE users ADD COLUMN plan TEXT NOT NULL DEFAULT 'standard'`)
	_, _ = db.conn.Exec(`ALTER TABLE users ADD COLUMN subscription_expiry TEXT`)
	_, _ = db.conn.Exec(`ALTER TABLE users ADD COLUMN subscription_status TEXT NOT NULL DEFAULT ''`)
	_, _ = db.conn.Exec(`ALTER TABLE users ADD COLUMN payment_proof TEXT NOT NULL DEFAULT ''`)
	_, _ = db.conn.Exec(`ALTER TABLE users ADD COLUMN role TEXT NOT NULL DEFAULT 'member'`)

	// Add last_activity column to sessions for rolling sessions
	_, _ = db.conn.Exec(`ALTER TABLE sessions ADD COLUMN last_activity DATETIME DEFAULT CURRENT_TIMESTAMP`)

	// A payment reference pays for one activation. Older databases may
	// already hold repeats, in which case ActivateSubscription's lookup is
	// the only guard.
	_, _ = db.conn.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_reference ON payments(reference) WHERE reference <> ''`)

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

const userColumns = `id, username, password_hash, created_at, referral_code, plan,
	subscription_expiry, subscription_status, payment_proof, role`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var expiry sql.NullString
	var plan, status, role string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.ReferralCode,
		&plan, &expiry, &status, &u.PaymentProof, &role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Plan = models.Plan(plan)
	u.SubscriptionStatus = models.SubscriptionStatus(status)
	u.Role = models.Role(role)
	if expiry.Valid && expiry.String != "" {
		t, err := time.Parse(DateLayout, expiry.String)
		if err != nil {
			return nil, fmt.Errorf("parse subscription expiry %q: %w", expiry.String, err)
		}
		u.SubscriptionExpiry = &t
	}
	return &u, nil
}

func expiryValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(DateLayout)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateUser inserts a new account. Empty plan and role default to
// standard and member.
func (db *DB) CreateUser(u *models.User) (*models.User, error) {
	if u.Plan == "" {
		u.Plan = models.PlanStandard
	}
	if u.Role == "" {
		u.Role = models.RoleMember
	}
	result, err := db.conn.Exec(
		`INSERT INTO users (username, password_hash, referral_code, plan, subscription_expiry,
			subscription_status, payment_proof, role) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.PasswordHash, u.ReferralCode, string(u.Plan), expiryValue(u.SubscriptionExpiry),
		string(u.SubscriptionStatus), u.PaymentProof, string(u.Role),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %s: %w", u.Username, ErrDuplicate)
		}
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return db.GetUserByID(id)
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(id int64) (*models.User, error) {
	return scanUser(db.conn.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

// GetUserByUsername retrieves a user by username.
func (db *DB) GetUserByUsername(username string) (*models.User, error) {
	return scanUser(db.conn.QueryRow("SELECT "+userColumns+" FROM users WHERE username = ?", username))
}

// ListUsersByStatus returns accounts with the given subscription status, oldest first.
func (db *DB) ListUsersByStatus(status models.SubscriptionStatus) ([]models.User, error) {
	return db.queryUsers("SELECT "+userColumns+" FROM users WHERE subscription_status = ? ORDER BY id", string(status))
}

// ListUsersExpiringBetween returns standard-plan accounts whose expiry falls
// within [from, to], inclusive.
func (db *DB) ListUsersExpiringBetween(from, to time.Time) ([]models.User, error) {
	return db.queryUsers(
		"SELECT "+userColumns+` FROM users
		WHERE plan = ? AND subscription_expiry IS NOT NULL
		AND subscription_expiry >= ? AND subscription_expiry <= ?
		ORDER BY subscription_expiry`,
		string(models.PlanStandard), from.Format(DateLayout), to.Format(DateLayout),
	)
}

func (db *DB) queryUsers(query string, args ...any) ([]models.User, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// SetPaymentProof stores the proof path and moves the account to the given status.
func (db *DB) SetPaymentProof(userID int64, proof string, status models.SubscriptionStatus) error {
	return db.execOne(
		"UPDATE users SET payment_proof = ?, subscription_status = ? WHERE id = ?",
		proof, string(status), userID,
	)
}

// SetRole changes the authorization role of an account.
func (db *DB) SetRole(userID int64, role models.Role) error {
	return db.execOne("UPDATE users SET role = ? WHERE id = ?", string(role), userID)
}

// SetRoleByUsername changes the role of the named account if it exists.
// It reports whether a row was updated.
func (db *DB) SetRoleByUsername(username string, role models.Role) (bool, error) {
	res, err := db.conn.Exec("UPDATE users SET role = ? WHERE username = ?", string(role), username)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ActivateSubscription sets the expiry and status of an account and records
// the payment that paid for it, in one transaction. A payment whose reference
// is already recorded is refused with ErrDuplicate and changes nothing.
func (db *DB) ActivateSubscription(userID int64, expiry time.Time, status models.SubscriptionStatus, p *models.Payment) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if p != nil && p.Reference != "" {
		var n int
		if err := tx.QueryRow("SELECT COUNT(*) FROM payments WHERE reference = ?", p.Reference).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("payment %s: %w", p.Reference, ErrDuplicate)
		}
	}

	res, err := tx.Exec(
		"UPDATE users SET subscription_expiry = ?, subscription_status = ? WHERE id = ?",
		expiry.Format(DateLayout), string(status), userID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if p != nil {
		p.UserID = userID
		if err := insertPayment(tx, p); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertPayment(ex execer, p *models.Payment) error {
	if p.Date.IsZero() {
		p.Date = time.Now()
	}
	result, err := ex.Exec(
		"INSERT INTO payments (user_id, date, amount, method, status, reference) VALUES (?, ?, ?, ?, ?, ?)",
		p.UserID, p.Date, p.Amount, p.Method, p.Status, p.Reference,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("payment %s: %w", p.Reference, ErrDuplicate)
	}
	if err != nil {
		return err
	}
	p.ID, err = result.LastInsertId()
	return err
}

// AddPayment appends a payment to an account's history.
func (db *DB) AddPayment(p *models.Payment) error {
	return insertPayment(db.conn, p)
}

// ListPayments returns an account's payments, newest first.
func (db *DB) ListPayments(userID int64) ([]models.Payment, error) {
	rows, err := db.conn.Query(
		"SELECT id, user_id, date, amount, method, status, reference FROM payments WHERE user_id = ? ORDER BY date DESC, id DESC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.UserID, &p.Date, &p.Amount, &p.Method, &p.Status, &p.Reference); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (db *DB) execOne(query string, args ...any) error {
	res, err := db.conn.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSession creates a new session for a user.
func (db *DB) CreateSession(token string, userID int64, expiresAt time.Time) error {
	now := time.Now()
	_, err := db.conn.Exec(
		"INSERT INTO sessions (token, user_id, expires_at, last_activity) VALUES (?, ?, ?, ?)",
		token, userID, expiresAt, now,
	)
	return err
}

// SessionInfo holds session validation data.
type SessionInfo struct {
	User         *models.User
	LastActivity time.Time
	ExpiresAt    time.Time
}

// ValidateSession checks if a session token is valid and returns the associated user.
func (db *DB) ValidateSession(token string) (*models.User, error) {
	info, err := db.ValidateSessionWithInfo(token)
	if err != nil {
		return nil, err
	}
	return info.User, nil
}

// ValidateSessionWithInfo checks if a session token is valid and returns session details.
func (db *DB) ValidateSessionWithInfo(token string) (*SessionInfo, error) {
	var userID int64
	var lastActivity, expiresAt time.Time
	err := db.conn.QueryRow(
		"SELECT user_id, last_activity, expires_at FROM sessions WHERE token = ? AND expires_at > ?",
		token, time.Now(),
	).Scan(&userID, &lastActivity, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	u, err := db.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	return &SessionInfo{
		User:         u,
		LastActivity: lastActivity,
		ExpiresAt:    expiresAt,
	}, nil
}

// RenewSession updates the last_activity and expires_at for a session.
func (db *DB) RenewSession(token string, newExpiresAt time.Time) error {
	now := time.Now()
	_, err := db.conn.Exec(
		"UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token = ?",
		now, newExpiresAt, token,
	)
	return err
}

// DeleteSession removes a session by token.
func (db *DB) DeleteSession(token string) error {
	_, err := db.conn.Exec("DELETE FROM sessions WHERE token = ?", token)
	return err
}

// CleanExpiredSessions removes all expired sessions and returns how many were deleted.
func (db *DB) CleanExpiredSessions() (int64, error) {
	res, err := db.conn.Exec("DELETE FROM sessions WHERE expires_at <= ?", time.Now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}
