package userdata

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/quail/internal/kv"
)

var fixedNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func newFileStore(t *testing.T) (*Store, *FileBackend) {
	t.Helper()
	b := NewFileBackend(t.TempDir())
	s := NewStore(b, nil)
	s.SetClock(func() time.Time { return fixedNow })
	return s, b
}

func newBadgerStore(t *testing.T) *Store {
	t.Helper()
	db, err := kv.Open(kv.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := NewStore(NewBadgerBackend(db), nil)
	s.SetClock(func() time.Time { return fixedNow })
	return s
}

func writeRaw(t *testing.T, b *FileBackend, userID, content string) {
	t.Helper()
	path := b.Path(userID)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_MissingWritesDefault(t *testing.T) {
	s, b := newFileStore(t)
	res, err := s.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "u1", res.Record.UserID)
	assert.Empty(t, res.Record.Highlights)
	assert.Nil(t, res.Record.Progress)

	data, err := os.ReadFile(b.Path("u1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":"u1","highlights":{},"usageStats":{},"progress":null,"lastUpdated":"2026-05-04T12:00:00Z"}`, string(data))
}

func TestLoad_CorruptIsQuarantined(t *testing.T) {
	for _, content := range []string{"", "   ", "{not json", "[1,2]", "null"} {
		t.Run(content, func(t *testing.T) {
			s, b := newFileStore(t)
			writeRaw(t, b, "u1", content)

			res, err := s.Load(context.Background(), "u1")
			require.NoError(t, err)
			assert.Equal(t, "u1", res.Record.UserID)
			assert.Empty(t, res.Record.UsageStats)

			want := b.Path("u1") + ".corrupted.1777896000000"
			assert.Equal(t, want, res.Quarantined)
			copied, err := os.ReadFile(want)
			require.NoError(t, err)
			assert.Equal(t, content, string(copied))

			// The default record replaced the corrupt one.
			data, err := os.ReadFile(b.Path("u1"))
			require.NoError(t, err)
			assert.Contains(t, string(data), `"userId": "u1"`)
		})
	}
}

func TestLoad_DefensiveFieldPass(t *testing.T) {
	s, b := newFileStore(t)
	writeRaw(t, b, "u1", `{
		"userId": "someone-else",
		"highlights": ["not", "a", "map"],
		"usageStats": 7,
		"progress": "garbage",
		"lastUpdated": 12
	}`)

	res, err := s.Load(context.Background(), "u1")
	require.NoError(t, err)
	r := res.Record
	assert.True(t, res.Corrected)
	assert.Equal(t, "u1", r.UserID)
	assert.Equal(t, map[string]string{}, r.Highlights)
	assert.Equal(t, map[string]any{}, r.UsageStats)
	assert.Nil(t, r.Progress)
	assert.Equal(t, "2026-05-04T12:00:00Z", r.LastUpdated)
}

func TestLoad_KeepsValidFields(t *testing.T) {
	s, b := newFileStore(t)
	writeRaw(t, b, "u1", `{
		"userId": "u1",
		"highlights": {"q1": "[1,2]", "q2": 5},
		"usageStats": {"seen": 3},
		"progress": {"stats": {"correct": 2}},
		"lastUpdated": "2026-01-01T00:00:00Z"
	}`)

	res, err := s.Load(context.Background(), "u1")
	require.NoError(t, err)
	r := res.Record
	assert.False(t, res.Corrected)
	assert.Equal(t, map[string]string{"q1": "[1,2]"}, r.Highlights)
	assert.Equal(t, map[string]any{"seen": float64(3)}, r.UsageStats)
	assert.JSONEq(t, `{"stats":{"correct":2}}`, string(r.Progress))
	assert.Equal(t, "2026-01-01T00:00:00Z", r.LastUpdated)
}

func TestSave_ShallowMerge(t *testing.T) {
	stores := map[string]*Store{"file": nil, "badger": newBadgerStore(t)}
	stores["file"], _ = newFileStore(t)

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Save(ctx, "u1", Patch{UsageStats: map[string]any{"seen": 3}})
			require.NoError(t, err)

			res, err := s.Save(ctx, "u1", Patch{Highlights: map[string]string{"q1": "h"}})
			require.NoError(t, err)
			assert.True(t, res.Verified)

			loaded, err := s.Load(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"q1": "h"}, loaded.Record.Highlights)
			assert.Equal(t, map[string]any{"seen": float64(3)}, loaded.Record.UsageStats)
			assert.Equal(t, "2026-05-04T12:00:00Z", loaded.Record.LastUpdated)
		})
	}
}

func TestSave_ProgressRoundTrip(t *testing.T) {
	s := newBadgerStore(t)
	ctx := context.Background()
	_, err := s.Save(ctx, "u1", Patch{Progress: json.RawMessage(`{"blockhist":{},"blockseq":4}`)})
	require.NoError(t, err)

	res, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"blockhist":{},"blockseq":4}`, string(res.Record.Progress))
}

func TestSave_QuarantinesCorruptRecord(t *testing.T) {
	s, b := newFileStore(t)
	writeRaw(t, b, "u1", "{oops")
	res, err := s.Save(context.Background(), "u1", Patch{UsageStats: map[string]any{"n": 1}})
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Empty(t, res.Record.Highlights)

	copied, err := os.ReadFile(b.Path("u1") + ".corrupted.1777896000000")
	require.NoError(t, err)
	assert.Equal(t, "{oops", string(copied))
}

func TestLoad_QuarantineNameCollision(t *testing.T) {
	s, b := newFileStore(t)
	base := b.Path("u1") + ".corrupted.1777896000000"
	writeRaw(t, b, "u1", "older copy")
	require.NoError(t, os.WriteFile(base, []byte("older copy"), 0o644))
	require.NoError(t, os.WriteFile(base+"-1", []byte("older copy"), 0o644))
	writeRaw(t, b, "u1", `{"userId":"u1",`)

	res, err := s.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, base+"-2", res.Quarantined)

	copied, err := os.ReadFile(base + "-2")
	require.NoError(t, err)
	assert.Equal(t, `{"userId":"u1",`, string(copied))
	for _, older := range []string{base, base + "-1"} {
		data, err := os.ReadFile(older)
		require.NoError(t, err)
		assert.Equal(t, "older copy", string(data))
	}
}

func TestQuarantineFailure_KeepsCorruptRecord(t *testing.T) {
	tests := []struct {
		name string
		run  func(ctx context.Context, s *Store) error
		// wantWrite is set when the operation must fail with ErrWrite.
		wantWrite bool
	}{
		{
			name: "load",
			run: func(ctx context.Context, s *Store) error {
				res, err := s.Load(ctx, "u1")
				if err == nil && res.Quarantined != "" {
					return errors.New("unexpected quarantine path")
				}
				return err
			},
		},
		{
			name: "save",
			run: func(ctx context.Context, s *Store) error {
				_, err := s.Save(ctx, "u1", Patch{UsageStats: map[string]any{"n": 1}})
				return err
			},
			wantWrite: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fb := NewFileBackend(t.TempDir())
			writeRaw(t, fb, "u1", "{trunc")
			s := NewStore(&flakyBackend{Backend: fb, quarantineErr: errors.New("read-only")}, nil)

			err := tc.run(context.Background(), s)
			if tc.wantWrite {
				assert.ErrorIs(t, err, ErrWrite)
			} else {
				assert.NoError(t, err)
			}

			data, err := os.ReadFile(fb.Path("u1"))
			require.NoError(t, err)
			assert.Equal(t, "{trunc", string(data))
		})
	}
}

func TestInvalidUserID(t *testing.T) {
	s, _ := newFileStore(t)
	for _, id := range []string{"", " ", ".", "..", "a/b", `a\b`} {
		_, err := s.Load(context.Background(), id)
		assert.ErrorIs(t, err, ErrInvalidUserID, id)
		_, err = s.Save(context.Background(), id, Patch{})
		assert.ErrorIs(t, err, ErrInvalidUserID, id)
	}
}

// flakyBackend wraps a backend and injects failures.
type flakyBackend struct {
	Backend
	writeErr      error
	readErr       error
	quarantineErr error
	// readBack replaces what Read returns after a successful Write.
	readBack []byte
	wrote    bool
}

func (f *flakyBackend) Read(ctx context.Context, userID string) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	if f.wrote && f.readBack != nil {
		return f.readBack, nil
	}
	return f.Backend.Read(ctx, userID)
}

func (f *flakyBackend) Write(ctx context.Context, userID string, data []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.wrote = true
	return f.Backend.Write(ctx, userID, data)
}

func (f *flakyBackend) Quarantine(ctx context.Context, userID string, data []byte, at time.Time) (string, error) {
	if f.quarantineErr != nil {
		return "", f.quarantineErr
	}
	return f.Backend.Quarantine(ctx, userID, data, at)
}

func TestSave_WriteFailure(t *testing.T) {
	disk := errors.New("disk full")
	s := NewStore(&flakyBackend{Backend: NewFileBackend(t.TempDir()), writeErr: disk}, nil)

	_, err := s.Save(context.Background(), "u1", Patch{})
	require.ErrorIs(t, err, ErrWrite)
	assert.ErrorIs(t, err, disk)
}

func TestSave_ReadBackMismatch(t *testing.T) {
	f := &flakyBackend{Backend: NewFileBackend(t.TempDir()), readBack: []byte(`{"userId":"other"}`)}
	s := NewStore(f, nil)

	res, err := s.Save(context.Background(), "u1", Patch{})
	require.NoError(t, err, "a failed verification is reported, not returned")
	assert.False(t, res.Verified)
}

func TestLoad_ReadFailure(t *testing.T) {
	boom := errors.New("io")
	s := NewStore(&flakyBackend{Backend: NewFileBackend(t.TempDir()), readErr: boom}, nil)
	_, err := s.Load(context.Background(), "u1")
	assert.ErrorIs(t, err, boom)
}

func TestBadger_Quarantine(t *testing.T) {
	db, err := kv.Open(kv.InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	b := NewBadgerBackend(db)
	ctx := context.Background()
	require.NoError(t, b.Write(ctx, "u1", []byte("{bad")))

	s := NewStore(b, nil)
	s.SetClock(func() time.Time { return fixedNow })
	res, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "user/u1/corrupted/1777896000000", res.Quarantined)

	require.NoError(t, b.Write(ctx, "u1", []byte("{bad again")))
	res, err = s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "user/u1/corrupted/1777896000000-1", res.Quarantined)
}
