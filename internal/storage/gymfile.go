package storage

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// ErrInvalidOwner is returned when an owner name has no usable characters.
var ErrInvalidOwner = errors.New("storage: invalid owner name")

// SafeName reduces an account name to the characters allowed in a data file
// name: letters, digits, '@', '.' and '_'.
func SafeName(owner string) string {
	var b strings.Builder
	for _, r := range owner {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '@', r == '.', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FileKey names an owner's data file. Names that are already safe keep their
// plain form; any other name gets a digest of the raw name appended after a
// '-', which SafeName never produces, so two distinct owners never share a
// file.
func FileKey(owner string) string {
	safe := SafeName(owner)
	if safe == owner {
		return safe
	}
	sum := sha256.Sum256([]byte(owner))
	return safe + "-" + hex.EncodeToString(sum[:8])
}

// FileStore keeps one JSON document per owner in a directory.
// Writes go to a temp file that is synced and renamed over the target, so a
// crash never leaves a truncated document behind. The compare and rename run
// under an exclusive lock on a sibling .lock file, shared by every process
// using the directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file that holds an owner's document.
func (s *FileStore) Path(owner string) (string, error) {
	safe := SafeName(owner)
	if safe == "" || strings.Trim(safe, ".") == "" {
		return "", fmt.Errorf("%q: %w", owner, ErrInvalidOwner)
	}
	return filepath.Join(s.dir, FileKey(owner)+".json"), nil
}

// LoadGymDocument reads an owner's document. The version is derived from
// the content, see contentVersion.
func (s *FileStore) LoadGymDocument(_ context.Context, owner string) ([]byte, int64, error) {
	path, err := s.Path(owner)
	if err != nil {
		return nil, 0, err
	}
	body, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}
	return body, contentVersion(body), nil
}

// SaveGymDocument atomically replaces the owner's document if it has not
// changed since version was read.
func (s *FileStore) SaveGymDocument(_ context.Context, owner string, body []byte, version int64) (int64, error) {
	path, err := s.Path(owner)
	if err != nil {
		return 0, err
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return 0, fmt.Errorf("lock %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = lock.Unlock() }()

	current, err := s.version(path)
	if err != nil {
		return 0, err
	}
	if current != version {
		return 0, ErrVersionConflict
	}

	tmp, err := os.CreateTemp(s.dir, ".gym-*.tmp")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, err
	}
	return contentVersion(body), nil
}

// DeleteGymDocument removes an owner's document if present.
func (s *FileStore) DeleteGymDocument(_ context.Context, owner string) error {
	path, err := s.Path(owner)
	if err != nil {
		return err
	}
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = lock.Unlock() }()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileStore) version(path string) (int64, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	return contentVersion(body), nil
}

// contentVersion folds the length and a digest of body into a version.
// Zero is reserved for a missing document.
func contentVersion(body []byte) int64 {
	sum := sha256.Sum256(body)
	v := int64(binary.BigEndian.Uint64(sum[:8])&^(1<<63)) ^ int64(len(body))
	if v == 0 {
		v = 1
	}
	return v
}
