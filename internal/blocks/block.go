// Package blocks models practice blocks and the keyed block history.
package blocks

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var (
	// ErrBlockNotFound indicates an unknown block id.
	ErrBlockNotFound = errors.New("block not found")

	// ErrBlockComplete indicates a mutation of a finished block.
	ErrBlockComplete = errors.New("block already complete")

	// ErrStateMismatch indicates block state arrays of the wrong length.
	ErrStateMismatch = errors.New("block state does not match question list")
)

// Untimed is the time limit of a block without a timer.
const Untimed = -1

// EmptyHighlight is the serialized highlight state of an untouched question.
const EmptyHighlight = "[]"

// Label names the pool a block was drawn from.
type Label string

const (
	LabelUnused     Label = "Unused"
	LabelIncorrects Label = "Incorrects"
	LabelFlagged    Label = "Flagged"
	LabelAll        Label = "All"
	LabelCustom     Label = "Custom"
)

var labels = []Label{LabelUnused, LabelIncorrects, LabelFlagged, LabelAll, LabelCustom}

// ParseLabel parses a pool label case-insensitively.
func ParseLabel(s string) (Label, error) {
	for _, l := range labels {
		if strings.EqualFold(string(l), strings.TrimSpace(s)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown pool label %q", s)
}

// Block is one practice session over a fixed list of questions.
type Block struct {
	QuestionIDs       []string `json:"blockqlist"`
	Answers           []string `json:"answers"`
	Highlights        []string `json:"highlights"`
	Flags             []bool   `json:"flags"`
	Complete          bool     `json:"complete"`
	TimeLimit         int      `json:"timelimit"`
	ElapsedTime       int      `json:"elapsedtime"`
	NumCorrect        int      `json:"numcorrect"`
	Pool              Label    `json:"qpoolstr"`
	TagsChosen        string   `json:"tagschosenstr"`
	AllSubtagsEnabled bool     `json:"allsubtagsenabled"`
	StartTime         string   `json:"starttime"`
	CurrentQuestion   int      `json:"currentquesnum"`
	ShowAnswers       bool     `json:"showans"`
}

// Options configures a new block.
type Options struct {
	Pool              Label
	TagsChosen        string
	AllSubtagsEnabled bool
	Timed             bool
	// TimePerQuestion is the timed-mode budget in seconds per question.
	TimePerQuestion int
	ShowAnswers     bool
	Now             time.Time
}

// New creates an unstarted block over ids.
func New(ids []string, opts Options) *Block {
	n := len(ids)
	b := &Block{
		QuestionIDs:       slices.Clone(ids),
		Answers:           make([]string, n),
		Highlights:        make([]string, n),
		Flags:             make([]bool, n),
		TimeLimit:         Untimed,
		Pool:              opts.Pool,
		TagsChosen:        opts.TagsChosen,
		AllSubtagsEnabled: opts.AllSubtagsEnabled,
		ShowAnswers:       opts.ShowAnswers,
	}
	for i := range b.Highlights {
		b.Highlights[i] = EmptyHighlight
	}
	if opts.Timed {
		b.TimeLimit = opts.TimePerQuestion * n
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	b.StartTime = now.Format(time.RFC3339)
	return b
}

// Len returns the number of questions in the block.
func (b *Block) Len() int { return len(b.QuestionIDs) }

// NumIncorrect returns the number of wrong or blank answers of a
// completed block, and 0 for an unfinished one.
func (b *Block) NumIncorrect() int {
	if !b.Complete {
		return 0
	}
	return max(0, b.Len()-b.NumCorrect)
}

// State is the part of a block the exam view owns and reports back when
// pausing, saving or finishing. Nil slices leave the stored value as is.
type State struct {
	Answers         []string
	Highlights      []string
	Flags           []bool
	ElapsedTime     int
	CurrentQuestion int
}

// Apply copies s into the block after checking array lengths.
func (b *Block) Apply(s State) error {
	n := b.Len()
	if s.Answers != nil && len(s.Answers) != n {
		return fmt.Errorf("%w: %d answers for %d questions", ErrStateMismatch, len(s.Answers), n)
	}
	if s.Highlights != nil && len(s.Highlights) != n {
		return fmt.Errorf("%w: %d highlights for %d questions", ErrStateMismatch, len(s.Highlights), n)
	}
	if s.Flags != nil && len(s.Flags) != n {
		return fmt.Errorf("%w: %d flags for %d questions", ErrStateMismatch, len(s.Flags), n)
	}
	if s.CurrentQuestion < 0 || (n > 0 && s.CurrentQuestion >= n) {
		return fmt.Errorf("%w: cursor %d out of range", ErrStateMismatch, s.CurrentQuestion)
	}
	if s.ElapsedTime < 0 {
		return fmt.Errorf("%w: negative elapsed time", ErrStateMismatch)
	}

	if s.Answers != nil {
		b.Answers = slices.Clone(s.Answers)
	}
	if s.Highlights != nil {
		b.Highlights = slices.Clone(s.Highlights)
	}
	if s.Flags != nil {
		b.Flags = slices.Clone(s.Flags)
	}
	b.ElapsedTime = s.ElapsedTime
	b.CurrentQuestion = s.CurrentQuestion
	return nil
}

// Grade counts correct answers using isCorrect and stores the result.
func (b *Block) Grade(isCorrect func(id, answer string) bool) int {
	n := 0
	for i, id := range b.QuestionIDs {
		if i < len(b.Answers) && isCorrect(id, b.Answers[i]) {
			n++
		}
	}
	b.NumCorrect = n
	return n
}

// Flagged reports whether question i was flagged in this block.
func (b *Block) Flagged(i int) bool {
	return i < len(b.Flags) && b.Flags[i]
}

// Clone returns a deep copy.
func (b *Block) Clone() *Block {
	c := *b
	c.QuestionIDs = slices.Clone(b.QuestionIDs)
	c.Answers = slices.Clone(b.Answers)
	c.Highlights = slices.Clone(b.Highlights)
	c.Flags = slices.Clone(b.Flags)
	return &c
}

// normalize repairs arrays of a block decoded from persisted data so the
// parallel-array invariant holds.
func (b *Block) normalize() {
	n := b.Len()
	b.Answers = resize(b.Answers, n, "")
	b.Highlights = resize(b.Highlights, n, EmptyHighlight)
	b.Flags = resize(b.Flags, n, false)
	if b.CurrentQuestion < 0 || b.CurrentQuestion >= max(n, 1) {
		b.CurrentQuestion = 0
	}
	if b.ElapsedTime < 0 {
		b.ElapsedTime = 0
	}
	if b.NumCorrect < 0 || b.NumCorrect > n {
		b.NumCorrect = min(max(b.NumCorrect, 0), n)
	}
	// Unknown labels are kept as stored.
	if l, err := ParseLabel(string(b.Pool)); err == nil {
		b.Pool = l
	}
}

func resize[T any](s []T, n int, fill T) []T {
	if len(s) > n {
		return s[:n]
	}
	for len(s) < n {
		s = append(s, fill)
	}
	return s
}
