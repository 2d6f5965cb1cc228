package userdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Store loads and saves user records through a Backend. Operations on one
// user are serialized.
type Store struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
	locks   sync.Map // user id -> *sync.Mutex
}

// NewStore returns a store over backend. A nil logger uses slog.Default.
func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, logger: logger, now: time.Now}
}

// SetClock overrides the time source.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) lock(userID string) func() {
	v, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// LoadResult is a reconciled record plus what Load had to repair.
type LoadResult struct {
	Record *Record
	// Created is set when no record existed and a default was written.
	Created bool
	// Quarantined is where an unreadable record was copied to.
	Quarantined string
	// Corrected is set when the embedded user id did not match.
	Corrected bool
}

// Load returns the record of userID. A missing record is replaced by a
// default one that is written immediately. An empty or unparsable record
// is quarantined and replaced by defaults; if the quarantine copy fails the
// stored record is left untouched and defaults are returned without being
// written. Only backend read failures are returned as errors.
func (s *Store) Load(ctx context.Context, userID string) (*LoadResult, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	unlock := s.lock(userID)
	defer unlock()

	logger := s.logger.With(slog.String("user", userID))
	now := s.now()

	data, err := s.backend.Read(ctx, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		res := &LoadResult{Record: NewRecord(userID, now), Created: true}
		s.writeDefault(ctx, res.Record, logger)
		return res, nil
	case err != nil:
		return nil, fmt.Errorf("read user record: %w", err)
	}

	r, err := decodeRecord(data, now, logger)
	if err != nil {
		res := &LoadResult{Record: NewRecord(userID, now)}
		where, qerr := s.backend.Quarantine(ctx, userID, data, now)
		if qerr != nil {
			// The stored bytes are the only copy; leave them in place.
			logger.Warn("could not quarantine corrupt user record, keeping it", slog.String("error", qerr.Error()))
			return res, nil
		}
		res.Quarantined = where
		logger.Warn("quarantined corrupt user record", slog.String("copy", where))
		s.writeDefault(ctx, res.Record, logger)
		return res, nil
	}

	res := &LoadResult{Record: r}
	if r.UserID != userID {
		logger.Warn("user record has mismatched user id, correcting", slog.String("stored", r.UserID))
		r.UserID = userID
		res.Corrected = true
	}
	return res, nil
}

func (s *Store) writeDefault(ctx context.Context, r *Record, logger *slog.Logger) {
	data, err := r.encode()
	if err == nil {
		err = s.backend.Write(ctx, r.UserID, data)
	}
	if err != nil {
		logger.Warn("could not write default user record", slog.String("error", err.Error()))
	}
}

// Patch lists the record fields a save replaces. Nil fields keep their
// stored value.
type Patch struct {
	Highlights map[string]string
	UsageStats map[string]any
	Progress   json.RawMessage
}

// SaveResult reports the record as written and whether reading it back
// returned the same user id.
type SaveResult struct {
	Record   *Record
	Verified bool
}

// Save re-reads the stored record, replaces the fields set in p, stamps
// lastUpdated and writes the result. A stored record that cannot be read
// as JSON is quarantined and then treated as empty. Write failures,
// including a failed quarantine, wrap ErrWrite. A failed
// read-back check is logged and reported in SaveResult.
func (s *Store) Save(ctx context.Context, userID string, p Patch) (*SaveResult, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	unlock := s.lock(userID)
	defer unlock()

	logger := s.logger.With(slog.String("user", userID))
	now := s.now()

	r := NewRecord(userID, now)
	data, err := s.backend.Read(ctx, userID)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("read user record: %w", err)
	default:
		cur, derr := decodeRecord(data, now, logger)
		if derr == nil {
			r = cur
			break
		}
		where, qerr := s.backend.Quarantine(ctx, userID, data, now)
		if qerr != nil {
			return nil, fmt.Errorf("%w for %s: quarantine unreadable record: %w", ErrWrite, userID, qerr)
		}
		logger.Warn("quarantined unreadable user record before overwriting", slog.String("copy", where))
	}

	if p.Highlights != nil {
		r.Highlights = p.Highlights
	}
	if p.UsageStats != nil {
		r.UsageStats = p.UsageStats
	}
	if p.Progress != nil {
		r.Progress = p.Progress
	}
	r.UserID = userID
	r.LastUpdated = now.UTC().Format(time.RFC3339)

	out, err := r.encode()
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrWrite, err)
	}
	if err := s.backend.Write(ctx, userID, out); err != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrWrite, userID, err)
	}

	res := &SaveResult{Record: r}
	back, err := s.backend.Read(ctx, userID)
	if err == nil {
		var check struct {
			UserID string `json:"userId"`
		}
		if json.Unmarshal(back, &check) == nil && check.UserID == userID {
			res.Verified = true
		}
	}
	if !res.Verified {
		logger.Error("user record failed read-back verification")
	}
	return res, nil
}
