// Package progress holds the per-bank progress aggregate: the bucket index,
// the block history and the summary counters, plus the lifecycle
// transitions that keep them consistent.
package progress

import (
	"encoding/json"
	"fmt"

	"github.com/abhisek/quail/internal/blocks"
	"github.com/abhisek/quail/internal/bucket"
)

// Aggregate is the in-memory progress of one user over one bank.
type Aggregate struct {
	History *blocks.History
	Buckets *bucket.Index
	Stats   Stats
}

// New returns an empty aggregate over a freshly built index.
func New(idx *bucket.Index) *Aggregate {
	a := &Aggregate{History: blocks.NewHistory(), Buckets: idx}
	a.Recount()
	return a
}

type aggregateJSON struct {
	BlockHist  map[string]*blocks.Block `json:"blockhist"`
	TagBuckets *bucket.Index            `json:"tagbuckets"`
	Stats      Stats                    `json:"stats"`
	BlockSeq   int                      `json:"blockseq"`
}

// MarshalJSON encodes the aggregate in the persisted progress shape.
func (a *Aggregate) MarshalJSON() ([]byte, error) {
	return json.Marshal(aggregateJSON{
		BlockHist:  a.History.Blocks(),
		TagBuckets: a.Buckets,
		Stats:      a.Stats,
		BlockSeq:   a.History.Seq(),
	})
}

// Clone returns a deep copy.
func (a *Aggregate) Clone() *Aggregate {
	return &Aggregate{
		History: a.History.Clone(),
		Buckets: a.Buckets.Clone(),
		Stats:   a.Stats,
	}
}

// Recount derives the counters that follow from the live index: total is
// the question count and flagged the size of the flagged pool.
func (a *Aggregate) Recount() {
	a.Stats.Total = a.Buckets.Len()
	a.Stats.Flagged = a.Buckets.Totals().Flagged
}

// Start removes the block's questions from the unused pool and appends the
// block to the history. Every id must be part of the index.
func (a *Aggregate) Start(b *blocks.Block) (string, error) {
	for _, id := range b.QuestionIDs {
		if !a.Buckets.Has(id) {
			return "", fmt.Errorf("%w: %q", bucket.ErrUnknownQuestion, id)
		}
	}
	for _, id := range b.QuestionIDs {
		if err := a.Buckets.Move(id, bucket.PoolUnused, bucket.PoolNone); err != nil {
			return "", err
		}
	}
	return a.History.Append(b), nil
}

// Complete applies the final block state, grades it with isCorrect and
// moves every question into the pool its result calls for: flagged
// questions into flagged, wrong or blank answers into incorrects, correct
// answers out of both.
func (a *Aggregate) Complete(id string, st blocks.State, isCorrect func(qid, answer string) bool) (*blocks.Block, error) {
	b, err := a.History.Get(id)
	if err != nil {
		return nil, err
	}
	if b.Complete {
		return nil, fmt.Errorf("%w: %q", blocks.ErrBlockComplete, id)
	}
	if err := b.Apply(st); err != nil {
		return nil, err
	}

	correct := b.Grade(isCorrect)
	for i, qid := range b.QuestionIDs {
		if !a.Buckets.Has(qid) {
			continue
		}
		pool := bucket.PoolNone
		switch {
		case b.Flagged(i):
			pool = bucket.PoolFlagged
		case !isCorrect(qid, b.Answers[i]):
			pool = bucket.PoolIncorrects
		}
		if err := a.Buckets.Assign(qid, pool); err != nil {
			return nil, err
		}
	}
	b.Complete = true

	a.Stats.Correct += correct
	a.Stats.Incorrect += b.Len() - correct
	a.Recount()
	return b, nil
}

// Delete erases a block and returns its questions to the unused pool. The
// results of a completed block are subtracted from the counters.
func (a *Aggregate) Delete(id string) (*blocks.Block, error) {
	b, err := a.History.Delete(id)
	if err != nil {
		return nil, err
	}
	for _, qid := range b.QuestionIDs {
		if !a.Buckets.Has(qid) {
			continue
		}
		if err := a.Buckets.Assign(qid, bucket.PoolUnused); err != nil {
			return nil, err
		}
	}
	if b.Complete {
		a.Stats.Correct = max(0, a.Stats.Correct-b.NumCorrect)
		a.Stats.Incorrect = max(0, a.Stats.Incorrect-b.NumIncorrect())
	}
	a.Recount()
	return b, nil
}
