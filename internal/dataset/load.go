package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"
)

type rawFiles struct {
	index, tagNames, choices, groups, panes []byte
}

// Load reads and validates the question bank in dir. Required files are
// index.json, tagnames.json and choices.json; groups.json and panes.json
// default to empty objects when absent.
func Load(ctx context.Context, dir string) (*Bank, error) {
	if dir == "" {
		return nil, ErrInvalidPath
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, dir)
	}

	files, err := readFiles(ctx, dir)
	if err != nil {
		return nil, err
	}

	taxonomy, err := parseTagNames(files.tagNames)
	if err != nil {
		return nil, &InvalidFileError{Path: filepath.Join(dir, TagNamesFile), Err: err}
	}

	order, classes, err := parseIndex(files.index)
	if err != nil {
		return nil, &InvalidFileError{Path: filepath.Join(dir, IndexFile), Err: err}
	}

	var choices map[string]struct {
		Options []string `json:"options"`
		Correct string   `json:"correct"`
	}
	if err := json.Unmarshal(files.choices, &choices); err != nil {
		return nil, &InvalidFileError{Path: filepath.Join(dir, ChoicesFile), Err: err}
	}

	bank := &Bank{
		Path:      dir,
		Taxonomy:  taxonomy,
		Order:     order,
		Questions: make(map[string]*Question, len(order)),
		Groups:    files.groups,
		Panes:     files.panes,
	}
	for _, id := range order {
		cls := classes[id]
		if len(cls) != taxonomy.Len() {
			return nil, &InvalidFileError{
				Path: filepath.Join(dir, IndexFile),
				Err:  fmt.Errorf("question %q has %d tags, taxonomy has %d dimensions", id, len(cls), taxonomy.Len()),
			}
		}
		q := &Question{ID: id, Classification: cls}
		if c, ok := choices[id]; ok {
			q.Options = c.Options
			q.Correct = c.Correct
		}
		bank.Questions[id] = q
	}
	return bank, nil
}

// readFiles loads every dataset file concurrently.
func readFiles(ctx context.Context, dir string) (*rawFiles, error) {
	var files rawFiles
	g, _ := errgroup.WithContext(ctx)

	required := []struct {
		name   string
		schema *fileSchema
		dst    *[]byte
	}{
		{IndexFile, indexSchema, &files.index},
		{TagNamesFile, tagNamesSchema, &files.tagNames},
		{ChoicesFile, choicesSchema, &files.choices},
	}
	for _, f := range required {
		g.Go(func() error {
			path := filepath.Join(dir, f.name)
			data, err := os.ReadFile(path)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return &MissingFileError{Path: path, Err: err}
				}
				return fmt.Errorf("read %s: %w", path, err)
			}
			if err := validate(f.schema, data); err != nil {
				return &InvalidFileError{Path: path, Err: err}
			}
			*f.dst = data
			return nil
		})
	}

	optional := []struct {
		name string
		dst  *[]byte
	}{
		{GroupsFile, &files.groups},
		{PanesFile, &files.panes},
	}
	for _, f := range optional {
		g.Go(func() error {
			path := filepath.Join(dir, f.name)
			data, err := os.ReadFile(path)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					*f.dst = []byte("{}")
					return nil
				}
				return fmt.Errorf("read %s: %w", path, err)
			}
			if !json.Valid(data) {
				return &InvalidFileError{Path: path, Err: errors.New("invalid JSON")}
			}
			*f.dst = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &files, nil
}

// parseTagNames turns {"tagnames": {"0": "A", "1": "B"}} into an ordered
// taxonomy. Keys must be exactly 0..N-1 and names must be unique.
func parseTagNames(raw []byte) (Taxonomy, error) {
	var doc struct {
		TagNames map[string]string `json:"tagnames"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	names, err := indexedValues(doc.TagNames)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return nil, fmt.Errorf("duplicate dimension name %q", n)
		}
		seen[n] = true
	}
	return Taxonomy(names), nil
}

// parseIndex decodes index.json keeping the file's key order, which fixes
// the insertion order of every bucket pool.
func parseIndex(raw []byte) ([]string, map[string][]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.New("index must be a JSON object")
	}

	var order []string
	classes := make(map[string][]string)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		id, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, nil, fmt.Errorf("question %q: %w", id, err)
		}
		cls, err := parseClassification(value)
		if err != nil {
			return nil, nil, fmt.Errorf("question %q: %w", id, err)
		}
		if _, dup := classes[id]; !dup {
			order = append(order, id)
		}
		classes[id] = cls
	}
	return order, classes, nil
}

// parseClassification accepts either ["a","b"] or {"0":"a","1":"b"}.
func parseClassification(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []string
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var m map[string]string
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, err
	}
	return indexedValues(m)
}

// indexedValues converts a map keyed "0".."N-1" into a slice.
func indexedValues(m map[string]string) ([]string, error) {
	if len(m) == 0 {
		return nil, errors.New("no entries")
	}
	keys := make([]int, 0, len(m))
	byIndex := make(map[int]string, len(m))
	for k, v := range m {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("key %q is not an index", k)
		}
		keys = append(keys, i)
		byIndex[i] = v
	}
	sort.Ints(keys)
	out := make([]string, len(keys))
	for pos, i := range keys {
		if i != pos {
			return nil, fmt.Errorf("index keys must be contiguous from 0, missing %d", pos)
		}
		out[pos] = byIndex[i]
	}
	return out, nil
}
