package blocks

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
)

// History is the keyed log of blocks. Ids are allocated from a monotonic
// counter that is persisted with the history and never rewinds, so ids are
// never reused after deletions and keys are not contiguous.
type History struct {
	blocks map[string]*Block
	next   int
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{blocks: make(map[string]*Block)}
}

// Len returns the number of blocks.
func (h *History) Len() int { return len(h.blocks) }

// Seq returns the id counter.
func (h *History) Seq() int { return h.next }

// Append stores b under a new id and returns the id.
func (h *History) Append(b *Block) string {
	id := strconv.Itoa(h.next)
	h.next++
	h.blocks[id] = b
	return id
}

// Get returns the block with the given id.
func (h *History) Get(id string) (*Block, error) {
	b, ok := h.blocks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBlockNotFound, id)
	}
	return b, nil
}

// Delete removes and returns the block with the given id. The id counter
// is not decremented.
func (h *History) Delete(id string) (*Block, error) {
	b, err := h.Get(id)
	if err != nil {
		return nil, err
	}
	delete(h.blocks, id)
	return b, nil
}

// IDs returns block ids in ascending numeric order; non-numeric keys from
// old data sort last, lexically.
func (h *History) IDs() []string {
	ids := slices.Collect(maps.Keys(h.blocks))
	slices.SortFunc(ids, func(a, b string) int {
		ai, aerr := strconv.Atoi(a)
		bi, berr := strconv.Atoi(b)
		switch {
		case aerr == nil && berr == nil:
			return ai - bi
		case aerr == nil:
			return -1
		case berr == nil:
			return 1
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})
	return ids
}

// Blocks returns the underlying map. Callers must not mutate it.
func (h *History) Blocks() map[string]*Block { return h.blocks }

// Clone returns a deep copy.
func (h *History) Clone() *History {
	c := &History{blocks: make(map[string]*Block, len(h.blocks)), next: h.next}
	for id, b := range h.blocks {
		c.blocks[id] = b.Clone()
	}
	return c
}

// Restore rebuilds a history from persisted blocks. Blocks that fail to
// decode are skipped and logged, but their ids stay allocated. seq is the
// persisted id counter, or a negative value when absent; the counter is
// then derived from the highest numeric key, falling back to the number of
// blocks.
func Restore(raw map[string]json.RawMessage, seq int, logger *slog.Logger) *History {
	if logger == nil {
		logger = slog.Default()
	}
	h := NewHistory()
	highest := -1
	for id, data := range raw {
		if n, err := strconv.Atoi(id); err == nil && n > highest {
			highest = n
		}
		var b Block
		if err := json.Unmarshal(data, &b); err != nil {
			logger.Warn("skipping unreadable block", slog.String("block", id), slog.String("error", err.Error()))
			continue
		}
		b.normalize()
		h.blocks[id] = &b
	}

	derived := max(highest+1, len(raw))
	h.next = max(seq, derived)
	return h
}
