// Package bucket maintains per-tag pools of question ids. Every question
// sits in exactly one bucket per taxonomy dimension, and every pool change
// is applied to all dimensions at once.
package bucket

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Pool names one of the four id sets kept per bucket.
type Pool string

const (
	PoolAll        Pool = "all"
	PoolUnused     Pool = "unused"
	PoolIncorrects Pool = "incorrects"
	PoolFlagged    Pool = "flagged"

	// PoolNone is used with Assign and Move for a question that has been
	// seen and belongs to none of the mutable pools.
	PoolNone Pool = ""
)

var (
	// ErrUnknownQuestion indicates an id that is not part of the index.
	ErrUnknownQuestion = errors.New("unknown question")

	// ErrImmutablePool indicates an attempt to mutate the "all" pool.
	ErrImmutablePool = errors.New("pool is immutable")

	// ErrUnknownPool indicates a pool name that does not exist.
	ErrUnknownPool = errors.New("unknown pool")
)

// mutablePools are the pools Add/Remove/Move may change, in precedence order.
var mutablePools = []Pool{PoolFlagged, PoolIncorrects, PoolUnused}

// ParsePool parses a pool name case-insensitively.
func ParsePool(s string) (Pool, error) {
	switch p := Pool(strings.ToLower(strings.TrimSpace(s))); p {
	case PoolAll, PoolUnused, PoolIncorrects, PoolFlagged:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPool, s)
}

func checkMutable(p Pool) error {
	if p == PoolAll {
		return ErrImmutablePool
	}
	if !slices.Contains(mutablePools, p) {
		return fmt.Errorf("%w: %q", ErrUnknownPool, string(p))
	}
	return nil
}

// Bucket holds the four pools of one (dimension, value) pair.
type Bucket struct {
	All        []string `json:"all"`
	Unused     []string `json:"unused"`
	Incorrects []string `json:"incorrects"`
	Flagged    []string `json:"flagged"`
}

func newBucket() *Bucket {
	return &Bucket{
		All:        []string{},
		Unused:     []string{},
		Incorrects: []string{},
		Flagged:    []string{},
	}
}

func (b *Bucket) pool(p Pool) *[]string {
	switch p {
	case PoolAll:
		return &b.All
	case PoolUnused:
		return &b.Unused
	case PoolIncorrects:
		return &b.Incorrects
	case PoolFlagged:
		return &b.Flagged
	}
	return nil
}

// Contains reports whether id is in pool p.
func (b *Bucket) Contains(p Pool, id string) bool {
	ids := b.pool(p)
	return ids != nil && slices.Contains(*ids, id)
}

func (b *Bucket) add(p Pool, id string) {
	ids := b.pool(p)
	if !slices.Contains(*ids, id) {
		*ids = append(*ids, id)
	}
}

func (b *Bucket) remove(p Pool, id string) {
	ids := b.pool(p)
	if i := slices.Index(*ids, id); i >= 0 {
		*ids = slices.Delete(*ids, i, i+1)
	}
}

func (b *Bucket) clone() Bucket {
	return Bucket{
		All:        slices.Clone(b.All),
		Unused:     slices.Clone(b.Unused),
		Incorrects: slices.Clone(b.Incorrects),
		Flagged:    slices.Clone(b.Flagged),
	}
}

// Counts holds pool sizes.
type Counts struct {
	All        int `json:"all"`
	Unused     int `json:"unused"`
	Incorrects int `json:"incorrects"`
	Flagged    int `json:"flagged"`
}

// Seen is the number of questions that have left the unused pool.
func (c Counts) Seen() int { return c.All - c.Unused }

func (b *Bucket) counts() Counts {
	return Counts{
		All:        len(b.All),
		Unused:     len(b.Unused),
		Incorrects: len(b.Incorrects),
		Flagged:    len(b.Flagged),
	}
}
