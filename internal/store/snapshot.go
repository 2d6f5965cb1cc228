package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// Snapshot is a stored copy of a user's progress on one bank, taken before
// a destructive operation.
type Snapshot struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	UserID    string
	Bank      string
	Reason    string
	Data      json.RawMessage
}

// SnapshotRepo manages progress snapshots.
type SnapshotRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

// Save stores a new snapshot and fills in its sequence and timestamp.
func (r *SnapshotRepo) Save(ctx context.Context, snap *Snapshot) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}
	snap.Sequence = seqNum
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now()
	}

	query, args := builder().Insert("snapshots").
		Columns("sequence", "timestamp", "user_id", "bank", "reason", "data").
		Values(snap.Sequence, snap.Timestamp.UnixMilli(), snap.UserID, snap.Bank, snap.Reason, string(snap.Data)).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		snap.ID = int(id)
	}
	return nil
}

// Latest returns the most recent snapshot of userID on bank, or nil if
// none exist.
func (r *SnapshotRepo) Latest(ctx context.Context, userID, bank string) (*Snapshot, error) {
	query, args := builder().Select("id", "sequence", "timestamp", "user_id", "bank", "reason", "data").
		From(entsql.Table("snapshots")).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("bank", bank))).
		OrderBy(entsql.Desc("sequence")).
		Limit(1).
		Query()

	var s Snapshot
	var ts int64
	var data string
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&s.ID, &s.Sequence, &ts, &s.UserID, &s.Bank, &s.Reason, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	s.Timestamp = time.UnixMilli(ts)
	s.Data = json.RawMessage(data)
	return &s, nil
}

// Prune deletes all but the keep most recent snapshots of userID on bank.
func (r *SnapshotRepo) Prune(ctx context.Context, userID, bank string, keep int) error {
	owner := entsql.And(entsql.EQ("user_id", userID), entsql.EQ("bank", bank))
	query, args := builder().Select("sequence").
		From(entsql.Table("snapshots")).
		Where(owner).
		OrderBy(entsql.Desc("sequence")).
		Offset(keep).
		Limit(1).
		Query()

	var threshold int64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&threshold)
	if errors.Is(err, sql.ErrNoRows) {
		return nil // fewer than keep snapshots exist
	}
	if err != nil {
		return fmt.Errorf("query snapshots for prune: %w", err)
	}

	query, args = builder().Delete("snapshots").
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("bank", bank), entsql.LTE("sequence", threshold))).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}
