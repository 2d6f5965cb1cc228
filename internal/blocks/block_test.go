package blocks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Untimed(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	b := New([]string{"q1", "q2", "q3"}, Options{
		Pool:        LabelUnused,
		TagsChosen:  "Topic: A",
		ShowAnswers: true,
		Now:         now,
	})

	assert.Equal(t, []string{"q1", "q2", "q3"}, b.QuestionIDs)
	assert.Equal(t, []string{"", "", ""}, b.Answers)
	assert.Equal(t, []string{"[]", "[]", "[]"}, b.Highlights)
	assert.Equal(t, []bool{false, false, false}, b.Flags)
	assert.Equal(t, Untimed, b.TimeLimit)
	assert.False(t, b.Complete)
	assert.Zero(t, b.CurrentQuestion)
	assert.Equal(t, LabelUnused, b.Pool)
	assert.True(t, b.ShowAnswers)
	assert.Equal(t, "2026-03-01T09:30:00Z", b.StartTime)
}

func TestNew_Timed(t *testing.T) {
	b := New([]string{"a", "b", "c", "d"}, Options{Timed: true, TimePerQuestion: 90})
	assert.Equal(t, 360, b.TimeLimit)
	assert.NotEmpty(t, b.StartTime)
}

func TestNew_CopiesIDs(t *testing.T) {
	ids := []string{"a", "b"}
	b := New(ids, Options{})
	ids[0] = "changed"
	assert.Equal(t, "a", b.QuestionIDs[0])
}

func TestApply(t *testing.T) {
	b := New([]string{"a", "b", "c"}, Options{})

	require.NoError(t, b.Apply(State{
		Answers:         []string{"A", "", "C"},
		Flags:           []bool{false, true, false},
		ElapsedTime:     42,
		CurrentQuestion: 2,
	}))
	assert.Equal(t, []string{"A", "", "C"}, b.Answers)
	assert.Equal(t, []string{"[]", "[]", "[]"}, b.Highlights, "nil highlights leave stored value")
	assert.True(t, b.Flagged(1))
	assert.Equal(t, 42, b.ElapsedTime)
	assert.Equal(t, 2, b.CurrentQuestion)
}

func TestApply_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		state State
	}{
		{"short answers", State{Answers: []string{"A"}}},
		{"long highlights", State{Highlights: []string{"", "", "", ""}}},
		{"flags mismatch", State{Flags: []bool{true}}},
		{"cursor past end", State{CurrentQuestion: 3}},
		{"negative cursor", State{CurrentQuestion: -1}},
		{"negative elapsed", State{ElapsedTime: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New([]string{"a", "b", "c"}, Options{})
			before := b.Clone()
			err := b.Apply(tt.state)
			require.ErrorIs(t, err, ErrStateMismatch)
			assert.Equal(t, before, b, "rejected state must not be applied")
		})
	}
}

func TestGrade(t *testing.T) {
	b := New([]string{"a", "b", "c", "d"}, Options{})
	b.Answers = []string{"A", "B", "", "D"}
	key := map[string]string{"a": "A", "b": "C", "c": "C", "d": "D"}

	n := b.Grade(func(id, answer string) bool { return answer != "" && key[id] == answer })
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, b.NumCorrect)

	assert.Zero(t, b.NumIncorrect(), "unfinished blocks report no incorrect answers")
	b.Complete = true
	assert.Equal(t, 2, b.NumIncorrect())
}

func TestParseLabel(t *testing.T) {
	l, err := ParseLabel("incorrects")
	require.NoError(t, err)
	assert.Equal(t, LabelIncorrects, l)

	l, err = ParseLabel(" Custom")
	require.NoError(t, err)
	assert.Equal(t, LabelCustom, l)

	_, err = ParseLabel("recent")
	require.Error(t, err)
}
