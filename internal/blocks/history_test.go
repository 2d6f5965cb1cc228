package blocks

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_IDsNeverReused(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 3; i++ {
		h.Append(New([]string{"q"}, Options{}))
	}
	_, err := h.Delete("1")
	require.NoError(t, err)

	id := h.Append(New([]string{"q"}, Options{}))
	assert.Equal(t, "3", id)
	assert.Equal(t, []string{"0", "2", "3"}, h.IDs())
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, 4, h.Seq())
}

func TestHistory_GetDeleteUnknown(t *testing.T) {
	h := NewHistory()
	_, err := h.Get("7")
	assert.ErrorIs(t, err, ErrBlockNotFound)
	_, err = h.Delete("7")
	assert.ErrorIs(t, err, ErrBlockNotFound)
}

func TestHistory_IDsNumericOrder(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 12; i++ {
		h.Append(New([]string{"q"}, Options{}))
	}
	ids := h.IDs()
	assert.Equal(t, "0", ids[0])
	assert.Equal(t, "2", ids[2])
	assert.Equal(t, "11", ids[11])
}

func TestRestore_DerivesCounter(t *testing.T) {
	block := `{"blockqlist":["q1","q2"],"answers":["A"],"complete":false,"timelimit":-1}`
	raw := map[string]json.RawMessage{
		"0": json.RawMessage(block),
		"4": json.RawMessage(block),
	}

	h := Restore(raw, -1, nil)
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 5, h.Seq(), "counter follows the highest key, not the block count")

	b, err := h.Get("4")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", ""}, b.Answers, "parallel arrays are repaired")
	assert.Equal(t, []string{"[]", "[]"}, b.Highlights)
	assert.Len(t, b.Flags, 2)
}

func TestRestore_PersistedCounterWins(t *testing.T) {
	raw := map[string]json.RawMessage{"0": json.RawMessage(`{"blockqlist":["q1"]}`)}
	h := Restore(raw, 9, nil)
	assert.Equal(t, 9, h.Seq())

	// A counter lower than the existing keys is never trusted.
	h = Restore(raw, 0, nil)
	assert.Equal(t, 1, h.Seq())
}

func TestRestore_SkipsBrokenBlocks(t *testing.T) {
	raw := map[string]json.RawMessage{
		"0": json.RawMessage(`{"blockqlist":["q1"],"numcorrect":7}`),
		"1": json.RawMessage(`"not a block"`),
	}
	h := Restore(raw, -1, nil)
	assert.Equal(t, 1, h.Len())

	b, err := h.Get("0")
	require.NoError(t, err)
	assert.Equal(t, 1, b.NumCorrect, "numcorrect is clamped to the block size")
	assert.Equal(t, 2, h.Seq())
}

func TestHistory_Clone(t *testing.T) {
	h := NewHistory()
	id := h.Append(New([]string{"q1"}, Options{}))
	c := h.Clone()

	b, _ := c.Get(id)
	b.Answers[0] = "B"
	orig, _ := h.Get(id)
	assert.Equal(t, "", orig.Answers[0])
	assert.Equal(t, h.Seq(), c.Seq())
}

func TestRestore_CanonicalizesPoolLabels(t *testing.T) {
	tests := []struct {
		stored string
		want   Label
	}{
		{stored: "incorrects", want: LabelIncorrects},
		{stored: " FLAGGED", want: LabelFlagged},
		{stored: "Custom", want: LabelCustom},
		{stored: "recent", want: Label("recent")},
	}
	for _, tc := range tests {
		t.Run(tc.stored, func(t *testing.T) {
			data, err := json.Marshal(map[string]any{"blockqlist": []string{"q1"}, "qpoolstr": tc.stored})
			require.NoError(t, err)
			h := Restore(map[string]json.RawMessage{"0": data}, -1, nil)

			b, err := h.Get("0")
			require.NoError(t, err)
			assert.Equal(t, tc.want, b.Pool)
		})
	}
}
