package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/abhisek/quail/internal/fsutil"
)

// ReadLegacyProgress returns the raw legacy progress snapshot stored in the
// dataset directory. A missing file returns (nil, nil).
func ReadLegacyProgress(dir string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, LegacyProgressFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read legacy progress: %w", err)
	}
	return data, nil
}

// WriteLegacyProgress atomically replaces the legacy progress snapshot.
func WriteLegacyProgress(dir string, data []byte) error {
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, LegacyProgressFile), data, 0o644); err != nil {
		return fmt.Errorf("write legacy progress: %w", err)
	}
	return nil
}

// RemoveLegacyProgress deletes the legacy snapshot. Missing files are fine.
func RemoveLegacyProgress(dir string) error {
	err := os.Remove(filepath.Join(dir, LegacyProgressFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove legacy progress: %w", err)
	}
	return nil
}
