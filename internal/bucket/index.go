package bucket

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/abhisek/quail/internal/dataset"
)

// Entry is one question and its tag value per dimension.
type Entry struct {
	ID     string
	Values []string
}

// Index is the bucket index for one question bank. It is safe for
// concurrent use; each mutator holds the index lock across all dimensions.
type Index struct {
	mu      sync.RWMutex
	dims    []string
	buckets []map[string]*Bucket // per dimension, value -> bucket
	values  [][]string           // per dimension, values in first-seen order
	classes map[string][]string
	order   []string
}

// Build creates the index from the ordered dimension names and questions.
// Pools keep insertion order; they are not sorted.
func Build(dims []string, entries []Entry) (*Index, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("build index: taxonomy has no dimensions")
	}
	idx := &Index{
		dims:    slices.Clone(dims),
		buckets: make([]map[string]*Bucket, len(dims)),
		values:  make([][]string, len(dims)),
		classes: make(map[string][]string, len(entries)),
		order:   make([]string, 0, len(entries)),
	}
	for i := range dims {
		idx.buckets[i] = make(map[string]*Bucket)
	}

	for _, e := range entries {
		if len(e.Values) != len(dims) {
			return nil, fmt.Errorf("build index: question %q has %d tags, want %d", e.ID, len(e.Values), len(dims))
		}
		if _, dup := idx.classes[e.ID]; dup {
			return nil, fmt.Errorf("build index: duplicate question %q", e.ID)
		}
		idx.classes[e.ID] = slices.Clone(e.Values)
		idx.order = append(idx.order, e.ID)

		for i, v := range e.Values {
			b, ok := idx.buckets[i][v]
			if !ok {
				b = newBucket()
				idx.buckets[i][v] = b
				idx.values[i] = append(idx.values[i], v)
			}
			b.All = append(b.All, e.ID)
			b.Unused = append(b.Unused, e.ID)
		}
	}
	return idx, nil
}

// FromBank builds a fresh index for a loaded question bank.
func FromBank(bank *dataset.Bank) (*Index, error) {
	entries := make([]Entry, 0, bank.Len())
	for _, id := range bank.Order {
		q := bank.Questions[id]
		entries = append(entries, Entry{ID: id, Values: q.Classification})
	}
	return Build(bank.Taxonomy, entries)
}

// Dimensions returns the dimension names in taxonomy order.
func (x *Index) Dimensions() []string {
	return slices.Clone(x.dims)
}

// Values returns the tag values of dimension dim in first-seen order.
func (x *Index) Values(dim int) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if dim < 0 || dim >= len(x.values) {
		return nil
	}
	return slices.Clone(x.values[dim])
}

// Len returns the number of indexed questions.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.order)
}

// Has reports whether id is indexed.
func (x *Index) Has(id string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.classes[id]
	return ok
}

// IsIn reports whether id is in pool p. Only dimension 0 is consulted;
// the mutators keep every dimension in agreement.
func (x *Index) IsIn(id string, p Pool) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	cls, ok := x.classes[id]
	if !ok {
		return false
	}
	return x.buckets[0][cls[0]].Contains(p, id)
}

// Pools returns the mutable pools that currently contain id.
func (x *Index) Pools(id string) []Pool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	cls, ok := x.classes[id]
	if !ok {
		return nil
	}
	b := x.buckets[0][cls[0]]
	var out []Pool
	for _, p := range mutablePools {
		if b.Contains(p, id) {
			out = append(out, p)
		}
	}
	return out
}

// Add inserts id into pool p in every dimension. Adding an id that is
// already present is a no-op.
func (x *Index) Add(id string, p Pool) error {
	if err := checkMutable(p); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.each(id, func(b *Bucket) { b.add(p, id) })
}

// Remove deletes id from pool p in every dimension. Removing an absent id
// is a no-op.
func (x *Index) Remove(id string, p Pool) error {
	if err := checkMutable(p); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.each(id, func(b *Bucket) { b.remove(p, id) })
}

// Move removes id from one pool and adds it to another in every dimension
// under a single lock. PoolNone as from only adds; PoolNone as to only
// removes.
func (x *Index) Move(id string, from, to Pool) error {
	for _, p := range []Pool{from, to} {
		if p == PoolNone {
			continue
		}
		if err := checkMutable(p); err != nil {
			return err
		}
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.each(id, func(b *Bucket) {
		if from != PoolNone {
			b.remove(from, id)
		}
		if to != PoolNone {
			b.add(to, id)
		}
	})
}

// Assign makes p the only mutable pool holding id, in every dimension.
// PoolNone removes id from all mutable pools.
func (x *Index) Assign(id string, p Pool) error {
	if p != PoolNone {
		if err := checkMutable(p); err != nil {
			return err
		}
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.assign(id, p)
}

func (x *Index) assign(id string, p Pool) error {
	return x.each(id, func(b *Bucket) {
		for _, other := range mutablePools {
			if other == p {
				b.add(other, id)
			} else {
				b.remove(other, id)
			}
		}
	})
}

// each applies fn to the bucket holding id in every dimension.
// Caller must hold x.mu for writing.
func (x *Index) each(id string, fn func(b *Bucket)) error {
	cls, ok := x.classes[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownQuestion, id)
	}
	for i, v := range cls {
		fn(x.buckets[i][v])
	}
	return nil
}

// Filter selects questions by tag value. Values maps a dimension name to
// the accepted tag values; dimensions that are absent accept everything.
type Filter struct {
	Values map[string][]string
}

// Select returns the ids in pool p that match f, in index order.
func (x *Index) Select(p Pool, f Filter) ([]string, error) {
	if p != PoolAll {
		if err := checkMutable(p); err != nil {
			return nil, err
		}
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	for name := range f.Values {
		if !slices.Contains(x.dims, name) {
			return nil, fmt.Errorf("unknown dimension %q", name)
		}
	}

	var out []string
	for _, id := range x.order {
		cls := x.classes[id]
		if !x.matches(cls, f) {
			continue
		}
		if x.buckets[0][cls[0]].Contains(p, id) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (x *Index) matches(cls []string, f Filter) bool {
	for i, name := range x.dims {
		accepted, ok := f.Values[name]
		if ok && !slices.Contains(accepted, cls[i]) {
			return false
		}
	}
	return true
}

// ValueCounts is the pool summary for one tag value.
type ValueCounts struct {
	Value string `json:"value"`
	Counts
}

// Summary returns the pool sizes of every value of dimension dim.
func (x *Index) Summary(dim int) []ValueCounts {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if dim < 0 || dim >= len(x.dims) {
		return nil
	}
	out := make([]ValueCounts, 0, len(x.values[dim]))
	for _, v := range x.values[dim] {
		out = append(out, ValueCounts{Value: v, Counts: x.buckets[dim][v].counts()})
	}
	return out
}

// Totals returns the pool sizes summed over dimension 0, which equals the
// per-question totals since every question has exactly one value there.
func (x *Index) Totals() Counts {
	var total Counts
	for _, vc := range x.Summary(0) {
		total.All += vc.All
		total.Unused += vc.Unused
		total.Incorrects += vc.Incorrects
		total.Flagged += vc.Flagged
	}
	return total
}

// Buckets returns a deep copy in the persisted tagbuckets shape:
// dimension name -> tag value -> bucket.
func (x *Index) Buckets() map[string]map[string]Bucket {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make(map[string]map[string]Bucket, len(x.dims))
	for i, name := range x.dims {
		m := make(map[string]Bucket, len(x.buckets[i]))
		for v, b := range x.buckets[i] {
			m[v] = b.clone()
		}
		out[name] = m
	}
	return out
}

// Bucket returns a copy of the bucket for (dimension, value).
func (x *Index) Bucket(dim, value string) (Bucket, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	i := slices.Index(x.dims, dim)
	if i < 0 {
		return Bucket{}, false
	}
	b, ok := x.buckets[i][value]
	if !ok {
		return Bucket{}, false
	}
	return b.clone(), true
}

// MarshalJSON encodes the index in the persisted tagbuckets shape.
func (x *Index) MarshalJSON() ([]byte, error) {
	return json.Marshal(x.Buckets())
}

// Clone returns an independent copy of the index.
func (x *Index) Clone() *Index {
	x.mu.RLock()
	defer x.mu.RUnlock()
	c := &Index{
		dims:    slices.Clone(x.dims),
		buckets: make([]map[string]*Bucket, len(x.buckets)),
		values:  make([][]string, len(x.values)),
		classes: make(map[string][]string, len(x.classes)),
		order:   slices.Clone(x.order),
	}
	for i := range x.buckets {
		c.buckets[i] = make(map[string]*Bucket, len(x.buckets[i]))
		for v, b := range x.buckets[i] {
			cb := b.clone()
			c.buckets[i][v] = &cb
		}
		c.values[i] = slices.Clone(x.values[i])
	}
	for id, cls := range x.classes {
		c.classes[id] = slices.Clone(cls)
	}
	return c
}
