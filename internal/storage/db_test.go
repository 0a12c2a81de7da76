package storage

import (
	"context"
	"testing"
	"time"

	"gym-manager/internal/auth"
	"gym-manager/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// DBTestSuite provides a test suite for account and payment operations
type DBTestSuite struct {
	suite.Suite
	db *DB
}

// SetupTest runs before each test
func (suite *DBTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
}

// TearDownTest runs after each test
func (suite *DBTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *DBTestSuite) TestCreateUserDefaults() {
	user, err := suite.db.CreateUser(&models.User{Username: "owner@gym.com", PasswordHash: "hash"})
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), models.PlanStandard, user.Plan)
	assert.Equal(suite.T(), models.RoleMember, user.Role)
	assert.Nil(suite.T(), user.SubscriptionExpiry)
	assert.Equal(suite.T(), models.SubscriptionNone, user.SubscriptionStatus)
}

func (suite *DBTestSuite) TestCreateUserDuplicate() {
	_, err := suite.db.CreateUser(&models.User{Username: "owner", PasswordHash: "hash"})
	require.NoError(suite.T(), err)

	_, err = suite.db.CreateUser(&models.User{Username: "owner", PasswordHash: "other"})
	assert.ErrorIs(suite.T(), err, ErrDuplicate)
}

func (suite *DBTestSuite) TestGetUserNotFound() {
	_, err := suite.db.GetUserByUsername("ghost")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
	_, err = suite.db.GetUserByID(42)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *DBTestSuite) TestLifetimeExpiryRoundTrip() {
	expiry := time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)
	_, err := suite.db.CreateUser(&models.User{
		Username:           "vip",
		PasswordHash:       "hash",
		ReferralCode:       "VIP2025",
		Plan:               models.PlanFreeLifetime,
		SubscriptionExpiry: &expiry,
	})
	require.NoError(suite.T(), err)

	user, err := suite.db.GetUserByUsername("vip")
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), user.SubscriptionExpiry)
	assert.Equal(suite.T(), "2099-12-31", user.SubscriptionExpiry.Format(DateLayout))
	assert.Equal(suite.T(), models.PlanFreeLifetime, user.Plan)
	assert.Equal(suite.T(), "VIP2025", user.ReferralCode)
}

func (suite *DBTestSuite) TestActivateSubscriptionRecordsPayment() {
	user, err := suite.db.CreateUser(&models.User{Username: "owner", PasswordHash: "hash"})
	require.NoError(suite.T(), err)

	expiry := time.Now().AddDate(0, 0, 30)
	err = suite.db.ActivateSubscription(user.ID, expiry, models.SubscriptionActive, &models.Payment{
		Amount: 60, Method: "Credit Card", Status: models.PaymentCompleted,
	})
	require.NoError(suite.T(), err)

	updated, err := suite.db.GetUserByID(user.ID)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), updated.SubscriptionExpiry)
	assert.Equal(suite.T(), expiry.Format(DateLayout), updated.SubscriptionExpiry.Format(DateLayout))
	assert.Equal(suite.T(), models.SubscriptionActive, updated.SubscriptionStatus)

	payments, err := suite.db.ListPayments(user.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), payments, 1)
	assert.Equal(suite.T(), 60.0, payments[0].Amount)
	assert.Equal(suite.T(), "Credit Card", payments[0].Method)
	assert.Equal(suite.T(), models.PaymentCompleted, payments[0].Status)
}

func (suite *DBTestSuite) TestActivateSubscriptionRefusesReusedReference() {
	user, err := suite.db.CreateUser(&models.User{Username: "owner", PasswordHash: "hash"})
	require.NoError(suite.T(), err)

	first := time.Now().AddDate(0, 0, 30)
	payment := func() *models.Payment {
		return &models.Payment{Amount: 60, Method: "Credit Card", Status: models.PaymentCompleted, Reference: "cs_1"}
	}
	require.NoError(suite.T(), suite.db.ActivateSubscription(user.ID, first, models.SubscriptionActive, payment()))

	err = suite.db.ActivateSubscription(user.ID, first.AddDate(0, 0, 90), models.SubscriptionActive, payment())
	assert.ErrorIs(suite.T(), err, ErrDuplicate)

	updated, err := suite.db.GetUserByID(user.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), first.Format(DateLayout), updated.SubscriptionExpiry.Format(DateLayout))

	// The unique index also covers direct inserts.
	p := payment()
	p.UserID = user.ID
	assert.ErrorIs(suite.T(), suite.db.AddPayment(p), ErrDuplicate)

	// Payments without a reference never collide.
	for i := 0; i < 2; i++ {
		require.NoError(suite.T(), suite.db.AddPayment(&models.Payment{UserID: user.ID, Amount: 1, Method: "Cash", Status: models.PaymentCompleted}))
	}
	payments, err := suite.db.ListPayments(user.ID)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), payments, 3)
}

func (suite *DBTestSuite) TestActivateSubscriptionUnknownUser() {
	err := suite.db.ActivateSubscription(99, time.Now(), models.SubscriptionActive, nil)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *DBTestSuite) TestPendingUsers() {
	a, err := suite.db.CreateUser(&models.User{Username: "a", PasswordHash: "hash"})
	require.NoError(suite.T(), err)
	_, err = suite.db.CreateUser(&models.User{Username: "b", PasswordHash: "hash"})
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.db.SetPaymentProof(a.ID, "proof_a_1.png", models.SubscriptionPending))

	pending, err := suite.db.ListUsersByStatus(models.SubscriptionPending)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), pending, 1)
	assert.Equal(suite.T(), "a", pending[0].Username)
	assert.Equal(suite.T(), "proof_a_1.png", pending[0].PaymentProof)
}

func (suite *DBTestSuite) TestListUsersExpiringBetween() {
	today := time.Now()
	soon := today.AddDate(0, 0, 2)
	later := today.AddDate(0, 0, 10)
	lifetime := time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)

	for name, expiry := range map[string]*time.Time{"soon": &soon, "later": &later, "never": nil} {
		_, err := suite.db.CreateUser(&models.User{Username: name, PasswordHash: "hash", SubscriptionExpiry: expiry})
		require.NoError(suite.T(), err)
	}
	_, err := suite.db.CreateUser(&models.User{Username: "vip", PasswordHash: "hash", Plan: models.PlanFreeLifetime, SubscriptionExpiry: &lifetime})
	require.NoError(suite.T(), err)

	users, err := suite.db.ListUsersExpiringBetween(today, today.AddDate(0, 0, 3))
	require.NoError(suite.T(), err)
	require.Len(suite.T(), users, 1)
	assert.Equal(suite.T(), "soon", users[0].Username)
}

func (suite *DBTestSuite) TestSetRoleByUsername() {
	_, err := suite.db.CreateUser(&models.User{Username: "admin@gym.com", PasswordHash: "hash"})
	require.NoError(suite.T(), err)

	ok, err := suite.db.SetRoleByUsername("admin@gym.com", models.RoleAdmin)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), ok)

	ok, err = suite.db.SetRoleByUsername("missing@gym.com", models.RoleAdmin)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), ok)

	user, err := suite.db.GetUserByUsername("admin@gym.com")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.RoleAdmin, user.Role)
}

func (suite *DBTestSuite) TestGymDocumentVersioning() {
	ctx := context.Background()

	_, _, err := suite.db.LoadGymDocument(ctx, "owner")
	assert.ErrorIs(suite.T(), err, ErrNotFound)

	v1, err := suite.db.SaveGymDocument(ctx, "owner", []byte(`{"a":1}`), 0)
	require.NoError(suite.T(), err)

	// A second writer that also saw no document loses.
	_, err = suite.db.SaveGymDocument(ctx, "owner", []byte(`{"a":2}`), 0)
	assert.ErrorIs(suite.T(), err, ErrVersionConflict)

	v2, err := suite.db.SaveGymDocument(ctx, "owner", []byte(`{"a":3}`), v1)
	require.NoError(suite.T(), err)
	assert.Greater(suite.T(), v2, v1)

	_, err = suite.db.SaveGymDocument(ctx, "owner", []byte(`{"a":4}`), v1)
	assert.ErrorIs(suite.T(), err, ErrVersionConflict)

	body, version, err := suite.db.LoadGymDocument(ctx, "owner")
	require.NoError(suite.T(), err)
	assert.JSONEq(suite.T(), `{"a":3}`, string(body))
	assert.Equal(suite.T(), v2, version)

	require.NoError(suite.T(), suite.db.DeleteGymDocument(ctx, "owner"))
	_, _, err = suite.db.LoadGymDocument(ctx, "owner")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

// SessionTestSuite provides a test suite for session operations
type SessionTestSuite struct {
	suite.Suite
	db   *DB
	user *models.User
}

// SetupTest runs before each test
func (suite *SessionTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db

	// Create a test user
	password, err := auth.HashPassword("testpass")
	require.NoError(suite.T(), err, "failed to hash password")

	user, err := suite.db.CreateUser(&models.User{Username: "testuser", PasswordHash: password})
	require.NoError(suite.T(), err, "failed to create test user")
	suite.user = user
}

// TearDownTest runs after each test
func (suite *SessionTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *SessionTestSuite) TestCreateAndValidateSession() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	err = suite.db.CreateSession(token, suite.user.ID, expiresAt)
	require.NoError(suite.T(), err)

	// Validate the session
	sessionUser, err := suite.db.ValidateSession(token)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "testuser", sessionUser.Username)
}

func (suite *SessionTestSuite) TestValidateSessionWithInfo() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	err = suite.db.CreateSession(token, suite.user.ID, expiresAt)
	require.NoError(suite.T(), err)

	// Get session info
	info, err := suite.db.ValidateSessionWithInfo(token)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "testuser", info.User.Username)

	// Check that last_activity is recent
	timeSinceActivity := time.Since(info.LastActivity)
	assert.Less(suite.T(), timeSinceActivity, 5*time.Second, "LastActivity should be recent")
}

func (suite *SessionTestSuite) TestRenewSession() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	originalExpiry := time.Now().Add(30 * 24 * time.Hour)
	err = suite.db.CreateSession(token, suite.user.ID, originalExpiry)
	require.NoError(suite.T(), err)

	// Wait a moment to ensure timestamps differ
	time.Sleep(10 * time.Millisecond)

	// Get original session info
	originalInfo, err := suite.db.ValidateSessionWithInfo(token)
	require.NoError(suite.T(), err)

	// Renew the session
	newExpiry := time.Now().Add(60 * 24 * time.Hour)
	err = suite.db.RenewSession(token, newExpiry)
	require.NoError(suite.T(), err)

	// Get updated session info
	updatedInfo, err := suite.db.ValidateSessionWithInfo(token)
	require.NoError(suite.T(), err)

	// Verify last_activity was updated
	assert.True(suite.T(), updatedInfo.LastActivity.After(originalInfo.LastActivity),
		"LastActivity should be updated after renewal")

	// Verify expires_at was updated
	assert.True(suite.T(), updatedInfo.ExpiresAt.After(originalInfo.ExpiresAt),
		"ExpiresAt should be extended after renewal")
}

func (suite *SessionTestSuite) TestDeleteSession() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	err = suite.db.CreateSession(token, suite.user.ID, expiresAt)
	require.NoError(suite.T(), err)

	// Verify session exists
	_, err = suite.db.ValidateSession(token)
	require.NoError(suite.T(), err, "session should exist before deletion")

	// Delete session
	err = suite.db.DeleteSession(token)
	require.NoError(suite.T(), err)

	// Verify session is gone
	_, err = suite.db.ValidateSession(token)
	assert.Error(suite.T(), err, "expected error after deleting session")
}

func (suite *SessionTestSuite) TestCleanExpiredSessions() {
	require.NoError(suite.T(), suite.db.CreateSession("expired", suite.user.ID, time.Now().Add(-time.Hour)))
	require.NoError(suite.T(), suite.db.CreateSession("live", suite.user.ID, time.Now().Add(time.Hour)))

	n, err := suite.db.CleanExpiredSessions()
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), n)

	_, err = suite.db.ValidateSession("live")
	assert.NoError(suite.T(), err)
	_, err = suite.db.ValidateSession("expired")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

// Test suite runners
func TestDBSuite(t *testing.T) {
	suite.Run(t, new(DBTestSuite))
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}
