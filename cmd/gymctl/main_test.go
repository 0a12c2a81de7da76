package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	err := run(args, bytes.NewBufferString(stdin), stdout, stderr)
	return stdout.String(), err
}

func TestRun_AddUserSuccess(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test_success.db")

	out, err := runCmd(t, "", "adduser", "--user", "testuser", "--password", "secret", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "User testuser created successfully")
	assert.Contains(t, out, "plan standard")
}

func TestRun_AddUserWithReferral(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test_referral.db")

	out, err := runCmd(t, "", "adduser", "--user", "vip", "--password", "secret", "--referral", "vip2025", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "plan free_lifetime")

	out, err = runCmd(t, "", "status", "vip", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "vip: lifetime")
}

func TestRun_AddAdmin(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test_admin.db")

	out, err := runCmd(t, "", "adduser", "--user", "boss", "--password", "secret", "--admin", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "role admin")
	assert.Contains(t, out, "plan free_lifetime")
}

func TestRun_DuplicateUser(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test_duplicate.db")
	args := []string{"adduser", "--user", "testuser", "--password", "secret", "--db", dbPath}

	_, err := runCmd(t, "", args...)
	require.NoError(t, err, "first run should succeed")

	_, err = runCmd(t, "", args...)
	require.Error(t, err, "expected error on duplicate user")
	assert.Contains(t, err.Error(), "already exists")
}

func TestRun_MissingUserFlag(t *testing.T) {
	_, err := runCmd(t, "", "adduser", "--password", "secret")
	require.Error(t, err, "expected error for missing user flag")
	assert.Contains(t, err.Error(), "missing required flags: user")
}

func TestRun_InteractivePassword(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test_interactive.db")

	out, err := runCmd(t, "interactive_secret\n", "adduser", "--user", "interactive_user", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Password: ")
	assert.Contains(t, out, "User interactive_user created successfully")
}

func TestRun_InteractivePassword_Empty(t *testing.T) {
	_, err := runCmd(t, "\n", "adduser", "--user", "empty_pass_user")
	require.Error(t, err, "expected error for empty password")
	assert.Contains(t, err.Error(), "password cannot be empty")
}

func TestRun_EnvVarOverride(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test_env.db")
	t.Setenv("DB_PATH", dbPath)

	_, err := runCmd(t, "", "adduser", "--user", "envuser", "--password", "secret")
	require.NoError(t, err)
	assert.FileExists(t, dbPath)
}

func TestRun_InvalidDBPath(t *testing.T) {
	// A directory is not a database file.
	_, err := runCmd(t, "", "adduser", "--user", "failuser", "--password", "secret", "--db", t.TempDir())
	require.Error(t, err, "expected error for invalid db path")
	assert.Contains(t, err.Error(), "failed to open database")
}

func TestRun_InvalidFlag(t *testing.T) {
	_, err := runCmd(t, "", "adduser", "--invalid")
	require.Error(t, err, "expected error for invalid flag")
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestRun_SubscriptionLifecycle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test_lifecycle.db")

	_, err := runCmd(t, "", "adduser", "--user", "owner", "--password", "secret", "--db", dbPath)
	require.NoError(t, err)

	out, err := runCmd(t, "", "status", "owner", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "owner: inactive")

	out, err = runCmd(t, "", "pending", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No pending payments.")

	out, err = runCmd(t, "", "renew", "owner", "--days", "2", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "User owner renewed until")

	out, err = runCmd(t, "", "status", "owner", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "owner: active")

	out, err = runCmd(t, "", "expiring", "--days", "3", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "owner")

	out, err = runCmd(t, "", "promote", "owner", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "User owner is now an admin")

	out, err = runCmd(t, "", "status", "owner", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "role admin")
}

func TestRun_UnknownUser(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test_unknown.db")

	_, err := runCmd(t, "", "approve", "ghost", "--db", dbPath)
	require.Error(t, err)
	_, err = runCmd(t, "", "promote", "ghost", "--db", dbPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user not found")
}
