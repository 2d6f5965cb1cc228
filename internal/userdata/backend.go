package userdata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/abhisek/quail/internal/fsutil"
	"github.com/abhisek/quail/internal/kv"
)

// Backend stores raw user records.
type Backend interface {
	// Read returns the stored record or ErrNotFound.
	Read(ctx context.Context, userID string) ([]byte, error)
	// Write replaces the stored record atomically.
	Write(ctx context.Context, userID string, data []byte) error
	// Quarantine keeps a copy of an unreadable record under a timestamped
	// name and returns where it went.
	Quarantine(ctx context.Context, userID string, data []byte, at time.Time) (string, error)
}

// RecordFile is the file name of a user record.
const RecordFile = "user_data.json"

// ValidateUserID rejects ids that cannot be used as a single path element
// or key segment.
func ValidateUserID(id string) error {
	switch {
	case strings.TrimSpace(id) == "", id == ".", id == "..":
		return fmt.Errorf("%w: %q", ErrInvalidUserID, id)
	case strings.ContainsAny(id, `/\`), strings.ContainsRune(id, 0):
		return fmt.Errorf("%w: %q", ErrInvalidUserID, id)
	}
	return nil
}

// FileBackend keeps one JSON file per user under
// <root>/user_data/<userId>/user_data.json.
type FileBackend struct {
	root string
}

// NewFileBackend returns a backend rooted at dataDir.
func NewFileBackend(dataDir string) *FileBackend {
	return &FileBackend{root: filepath.Join(dataDir, "user_data")}
}

// Path returns the record file of userID.
func (b *FileBackend) Path(userID string) string {
	return filepath.Join(b.root, userID, RecordFile)
}

func (b *FileBackend) Read(ctx context.Context, userID string) ([]byte, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.Path(userID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (b *FileBackend) Write(ctx context.Context, userID string, data []byte) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(b.Path(userID), data, 0o644)
}

func (b *FileBackend) Quarantine(ctx context.Context, userID string, data []byte, at time.Time) (string, error) {
	if err := ValidateUserID(userID); err != nil {
		return "", err
	}
	src := b.Path(userID)
	base := src + ".corrupted." + strconv.FormatInt(at.UnixMilli(), 10)
	for i := range maxQuarantineAttempts {
		dst := quarantineName(base, i)
		err := fsutil.CopyFile(src, dst)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		return dst, nil
	}
	return "", fmt.Errorf("quarantine %s: %d names taken", base, maxQuarantineAttempts)
}

// maxQuarantineAttempts bounds the suffixes tried when copies made in the
// same millisecond collide.
const maxQuarantineAttempts = 100

// quarantineName returns base for the first attempt and base-<n> after.
func quarantineName(base string, attempt int) string {
	if attempt == 0 {
		return base
	}
	return base + "-" + strconv.Itoa(attempt)
}

// BadgerBackend keeps records in a badger database under
// user/<userId>/record.
type BadgerBackend struct {
	db *kv.DB
}

// NewBadgerBackend returns a backend over db. The caller owns db.
func NewBadgerBackend(db *kv.DB) *BadgerBackend {
	return &BadgerBackend{db: db}
}

func recordKey(userID string) []byte {
	return []byte("user/" + userID + "/record")
}

func (b *BadgerBackend) Read(ctx context.Context, userID string) ([]byte, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	var data []byte
	err := b.db.View(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(userID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

func (b *BadgerBackend) Write(ctx context.Context, userID string, data []byte) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	return b.db.Update(ctx, func(txn *badger.Txn) error {
		return txn.Set(recordKey(userID), data)
	})
}

func (b *BadgerBackend) Quarantine(ctx context.Context, userID string, data []byte, at time.Time) (string, error) {
	if err := ValidateUserID(userID); err != nil {
		return "", err
	}
	base := fmt.Sprintf("user/%s/corrupted/%d", userID, at.UnixMilli())
	var key string
	err := b.db.Update(ctx, func(txn *badger.Txn) error {
		for i := range maxQuarantineAttempts {
			candidate := quarantineName(base, i)
			_, err := txn.Get([]byte(candidate))
			if errors.Is(err, badger.ErrKeyNotFound) {
				key = candidate
				return txn.Set([]byte(key), data)
			}
			if err != nil {
				return err
			}
		}
		return fmt.Errorf("quarantine %s: %d keys taken", base, maxQuarantineAttempts)
	})
	if err != nil {
		return "", err
	}
	return key, nil
}
