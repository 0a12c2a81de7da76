package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// LoadGymDocument returns the stored body and version for an owner.
// It returns ErrNotFound when the owner has no document yet.
func (db *DB) LoadGymDocument(ctx context.Context, owner string) ([]byte, int64, error) {
	var body string
	var version int64
	err := db.conn.QueryRowContext(ctx,
		"SELECT body, version FROM gym_documents WHERE owner = ?", owner,
	).Scan(&body, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}
	return []byte(body), version, nil
}

// SaveGymDocument writes body if the stored version still equals version.
// Version 0 means the caller saw no document. The new version is returned.
func (db *DB) SaveGymDocument(ctx context.Context, owner string, body []byte, version int64) (int64, error) {
	now := time.Now()
	next := version + 1

	var res sql.Result
	var err error
	if version == 0 {
		res, err = db.conn.ExecContext(ctx,
			"INSERT INTO gym_documents (owner, body, version, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT(owner) DO NOTHING",
			owner, string(body), next, now,
		)
	} else {
		res, err = db.conn.ExecContext(ctx,
			"UPDATE gym_documents SET body = ?, version = ?, updated_at = ? WHERE owner = ? AND version = ?",
			string(body), next, now, owner, version,
		)
	}
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrVersionConflict
	}
	return next, nil
}

// DeleteGymDocument removes an owner's document.
func (db *DB) DeleteGymDocument(ctx context.Context, owner string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM gym_documents WHERE owner = ?", owner)
	return err
}
