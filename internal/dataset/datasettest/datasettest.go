// Package datasettest writes small question banks to disk for tests.
package datasettest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// Question describes one question of a fixture bank.
type Question struct {
	ID      string
	Tags    []string
	Options []string
	Correct string
}

// Write creates index.json, tagnames.json and choices.json in dir.
func Write(t testing.TB, dir string, dims []string, questions []Question) {
	t.Helper()

	// Build index.json by hand so key order matches the questions slice.
	index := []byte("{")
	for i, q := range questions {
		if i > 0 {
			index = append(index, ',')
		}
		key, _ := json.Marshal(q.ID)
		val, _ := json.Marshal(q.Tags)
		index = append(index, key...)
		index = append(index, ':')
		index = append(index, val...)
	}
	index = append(index, '}')

	names := make(map[string]string, len(dims))
	for i, d := range dims {
		names[strconv.Itoa(i)] = d
	}

	choices := make(map[string]any, len(questions))
	for _, q := range questions {
		opts := q.Options
		if opts == nil {
			opts = []string{"A", "B", "C", "D"}
		}
		choices[q.ID] = map[string]any{"options": opts, "correct": q.Correct}
	}

	writeFile(t, filepath.Join(dir, "index.json"), index)
	writeJSON(t, filepath.Join(dir, "tagnames.json"), map[string]any{"tagnames": names})
	writeJSON(t, filepath.Join(dir, "choices.json"), choices)
}

// TwoTopics writes the canonical ten-question bank: one "Topic" dimension
// with values "A" (q1..q5) and "B" (q6..q10). Every correct answer is "A".
func TwoTopics(t testing.TB, dir string) {
	t.Helper()
	var qs []Question
	for i := 1; i <= 10; i++ {
		tag := "A"
		if i > 5 {
			tag = "B"
		}
		qs = append(qs, Question{ID: fmt.Sprintf("q%d", i), Tags: []string{tag}, Correct: "A"})
	}
	Write(t, dir, []string{"Topic"}, qs)
}

// TwoDimensions writes a bank classified by "System" and "Discipline".
func TwoDimensions(t testing.TB, dir string) {
	t.Helper()
	Write(t, dir, []string{"System", "Discipline"}, []Question{
		{ID: "101", Tags: []string{"Cardio", "Physiology"}, Correct: "B"},
		{ID: "102", Tags: []string{"Cardio", "Pharmacology"}, Correct: "C"},
		{ID: "103", Tags: []string{"Renal", "Physiology"}, Correct: "A"},
		{ID: "104", Tags: []string{"Renal", "Pathology"}, Correct: "D"},
		{ID: "105", Tags: []string{"Neuro", "Pathology"}, Correct: "A"},
		{ID: "106", Tags: []string{"Neuro", "Physiology"}, Correct: "B"},
	})
}

func writeJSON(t testing.TB, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", path, err)
	}
	writeFile(t, path, data)
}

func writeFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
