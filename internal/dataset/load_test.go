package dataset_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/quail/internal/dataset"
	"github.com/abhisek/quail/internal/dataset/datasettest"
)

func TestLoad_TwoDimensions(t *testing.T) {
	dir := t.TempDir()
	datasettest.TwoDimensions(t, dir)

	bank, err := dataset.Load(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, dataset.Taxonomy{"System", "Discipline"}, bank.Taxonomy)
	assert.Equal(t, []string{"101", "102", "103", "104", "105", "106"}, bank.Order)
	assert.Equal(t, 6, bank.Len())

	q, ok := bank.Question("104")
	require.True(t, ok)
	assert.Equal(t, []string{"Renal", "Pathology"}, q.Classification)
	assert.Equal(t, "D", q.Correct)
	assert.JSONEq(t, `{}`, string(bank.Groups))
	assert.JSONEq(t, `{}`, string(bank.Panes))
}

func TestLoad_PreservesIndexOrder(t *testing.T) {
	dir := t.TempDir()
	datasettest.Write(t, dir, []string{"Topic"}, []datasettest.Question{
		{ID: "z", Tags: []string{"T"}},
		{ID: "a", Tags: []string{"T"}},
		{ID: "m", Tags: []string{"T"}},
	})

	bank, err := dataset.Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, bank.Order)
}

func TestLoad_ObjectClassification(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "index.json", `{"1":{"0":"General","1":"Easy"},"2":{"1":"Hard","0":"General"}}`)
	write(t, dir, "tagnames.json", `{"tagnames":{"0":"Category","1":"Level"}}`)
	write(t, dir, "choices.json", `{"1":{"options":["A","B"],"correct":"A"}}`)

	bank, err := dataset.Load(context.Background(), dir)
	require.NoError(t, err)

	q, _ := bank.Question("2")
	assert.Equal(t, []string{"General", "Hard"}, q.Classification)

	// Questions without a choices entry load with no correct answer.
	assert.False(t, bank.IsCorrect("2", "A"))
	assert.True(t, bank.IsCorrect("1", "A"))
	assert.False(t, bank.IsCorrect("1", ""))
}

func TestLoad_MissingRequiredFiles(t *testing.T) {
	for _, name := range []string{"index.json", "tagnames.json", "choices.json"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			datasettest.TwoTopics(t, dir)
			require.NoError(t, os.Remove(filepath.Join(dir, name)))

			_, err := dataset.Load(context.Background(), dir)
			var missing *dataset.MissingFileError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, filepath.Join(dir, name), missing.Path)
			assert.True(t, errors.Is(err, os.ErrNotExist))
		})
	}
}

func TestLoad_InvalidPath(t *testing.T) {
	_, err := dataset.Load(context.Background(), "")
	assert.ErrorIs(t, err, dataset.ErrInvalidPath)

	_, err = dataset.Load(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, dataset.ErrInvalidPath)
}

func TestLoad_InvalidFiles(t *testing.T) {
	tests := []struct {
		name     string
		index    string
		tagnames string
		choices  string
	}{
		{"index not object", `[1,2]`, `{"tagnames":{"0":"T"}}`, `{}`},
		{"index empty", `{}`, `{"tagnames":{"0":"T"}}`, `{}`},
		{"tagnames missing key", `{"q":["a"]}`, `{"names":{"0":"T"}}`, `{}`},
		{"tagnames gap", `{"q":["a","b"]}`, `{"tagnames":{"0":"T","2":"U"}}`, `{}`},
		{"tagnames duplicate", `{"q":["a","b"]}`, `{"tagnames":{"0":"T","1":"T"}}`, `{}`},
		{"classification too short", `{"q":["a"]}`, `{"tagnames":{"0":"T","1":"U"}}`, `{}`},
		{"empty tag value", `{"q":[""]}`, `{"tagnames":{"0":"T"}}`, `{}`},
		{"choices bad shape", `{"q":["a"]}`, `{"tagnames":{"0":"T"}}`, `{"q":{"options":"A"}}`},
		{"broken json", `{"q":`, `{"tagnames":{"0":"T"}}`, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			write(t, dir, "index.json", tt.index)
			write(t, dir, "tagnames.json", tt.tagnames)
			write(t, dir, "choices.json", tt.choices)

			_, err := dataset.Load(context.Background(), dir)
			var invalid *dataset.InvalidFileError
			require.ErrorAs(t, err, &invalid)
		})
	}
}

func TestLoad_OptionalFilesPassThrough(t *testing.T) {
	dir := t.TempDir()
	datasettest.TwoTopics(t, dir)
	write(t, dir, "groups.json", `{"g1":["q1","q2"]}`)
	write(t, dir, "panes.json", `{"lab":"labs.html"}`)

	bank, err := dataset.Load(context.Background(), dir)
	require.NoError(t, err)
	assert.JSONEq(t, `{"g1":["q1","q2"]}`, string(bank.Groups))
	assert.JSONEq(t, `{"lab":"labs.html"}`, string(bank.Panes))
}

func TestLegacyProgressRoundTrip(t *testing.T) {
	dir := t.TempDir()

	data, err := dataset.ReadLegacyProgress(dir)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, dataset.WriteLegacyProgress(dir, []byte(`{"blockhist":{}}`)))
	data, err = dataset.ReadLegacyProgress(dir)
	require.NoError(t, err)
	assert.JSONEq(t, `{"blockhist":{}}`, string(data))

	require.NoError(t, dataset.RemoveLegacyProgress(dir))
	require.NoError(t, dataset.RemoveLegacyProgress(dir))
}

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
