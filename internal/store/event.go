package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sync"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

// sequenceCounter manages the global monotonic sequence number shared by
// block events and snapshots, so a snapshot can be placed among the events
// around it.
//
// The mutex serializes within the process; the RETURNING clause makes the
// increment atomic at the database level.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

// newSequenceCounter creates a counter and ensures the tracking table exists.
func newSequenceCounter(db *sql.DB) (*sequenceCounter, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{db: db}, nil
}

// Next atomically returns the next sequence number and increments the counter.
func (sc *sequenceCounter) Next(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := sc.db.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // most recent N results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// BlockEventData captures one block lifecycle operation.
type BlockEventData struct {
	UserID      string
	Bank        string
	BlockID     string
	Action      string
	Questions   int
	Correct     int
	ElapsedSecs int
}

// BlockEvent is a stored block event.
type BlockEvent struct {
	ID        string
	Sequence  int64
	Timestamp time.Time
	BlockEventData
}

// EventRepo is the append-only block event log.
type EventRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

// AppendBlockEvent records a block lifecycle event.
func (r *EventRepo) AppendBlockEvent(ctx context.Context, data BlockEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args := builder().Insert("block_events").
		Columns("id", "sequence", "timestamp", "user_id", "bank", "block_id", "action", "questions", "correct", "elapsed_secs").
		Values(uuid.NewString(), seqNum, time.Now().UnixMilli(), data.UserID, data.Bank, data.BlockID,
			data.Action, data.Questions, data.Correct, data.ElapsedSecs).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save block event: %w", err)
	}
	return nil
}

// BlockEvents returns the events of userID matching opts, oldest first.
// With a limit, the most recent events are kept.
func (r *EventRepo) BlockEvents(ctx context.Context, userID string, opts QueryOpts) ([]BlockEvent, error) {
	preds := []*entsql.Predicate{entsql.EQ("user_id", userID)}
	if opts.After > 0 {
		preds = append(preds, entsql.GT("sequence", opts.After))
	}
	if opts.Before > 0 {
		preds = append(preds, entsql.LT("sequence", opts.Before))
	}
	if !opts.From.IsZero() {
		preds = append(preds, entsql.GTE("timestamp", opts.From.UnixMilli()))
	}
	if !opts.To.IsZero() {
		preds = append(preds, entsql.LTE("timestamp", opts.To.UnixMilli()))
	}

	sel := builder().Select("id", "sequence", "timestamp", "user_id", "bank", "block_id", "action", "questions", "correct", "elapsed_secs").
		From(entsql.Table("block_events")).
		Where(entsql.And(preds...)).
		OrderBy(entsql.Desc("sequence"))
	if opts.Limit > 0 {
		sel = sel.Limit(opts.Limit)
	}
	query, args := sel.Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query block events: %w", err)
	}
	defer rows.Close()

	var events []BlockEvent
	for rows.Next() {
		var e BlockEvent
		var ts int64
		if err := rows.Scan(&e.ID, &e.Sequence, &ts, &e.UserID, &e.Bank, &e.BlockID,
			&e.Action, &e.Questions, &e.Correct, &e.ElapsedSecs); err != nil {
			return nil, fmt.Errorf("scan block event: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query block events: %w", err)
	}
	slices.Reverse(events)
	return events, nil
}
