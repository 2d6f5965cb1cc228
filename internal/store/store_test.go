package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestAutoMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	for _, table := range []string{"prefs", "banks", "block_events", "snapshots", "global_sequence"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Prefs().Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.Prefs().Get(ctx, "k")
	if err != nil || got != "v" {
		t.Errorf("get = %q, %v; want v", got, err)
	}
}

func TestPrefs(t *testing.T) {
	s := openTestStore(t)
	prefs := s.Prefs()
	ctx := context.Background()

	if _, err := prefs.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get missing: err = %v, want ErrNotFound", err)
	}

	if err := prefs.Set(ctx, KeyCurrentBank, "step1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := prefs.Set(ctx, KeyCurrentBank, "step2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := prefs.Get(ctx, KeyCurrentBank)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "step2" {
		t.Errorf("value = %q, want step2", got)
	}

	if err := prefs.Delete(ctx, KeyCurrentBank); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := prefs.Delete(ctx, KeyCurrentBank); err != nil {
		t.Fatalf("delete twice: %v", err)
	}
	if _, err := prefs.Get(ctx, KeyCurrentBank); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete: err = %v, want ErrNotFound", err)
	}
}

func TestCurrentUser(t *testing.T) {
	s := openTestStore(t)
	prefs := s.Prefs()
	ctx := context.Background()

	id, created, err := prefs.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if !created || id == "" {
		t.Fatalf("first call: id=%q created=%v, want new id", id, created)
	}

	again, created, err := prefs.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("current user again: %v", err)
	}
	if created || again != id {
		t.Errorf("second call: id=%q created=%v, want %q reused", again, created, id)
	}

	if err := prefs.Delete(ctx, KeyCurrentUser); err != nil {
		t.Fatalf("logout: %v", err)
	}
	fresh, _, err := prefs.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("current user after logout: %v", err)
	}
	if fresh == id {
		t.Error("expected a new id after logout")
	}
}

func TestBanks(t *testing.T) {
	s := openTestStore(t)
	banks := s.Banks()
	ctx := context.Background()

	if err := banks.Add(ctx, "step2", "/data/step2"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := banks.Add(ctx, "step1", "/data/step1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := banks.Add(ctx, "step1", "/elsewhere"); !errors.Is(err, ErrBankExists) {
		t.Fatalf("duplicate add: err = %v, want ErrBankExists", err)
	}

	list, err := banks.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "step1" || list[1].Path != "/data/step2" {
		t.Fatalf("list = %+v", list)
	}

	if err := banks.Remove(ctx, "step1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := banks.Remove(ctx, "step1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("remove twice: err = %v, want ErrNotFound", err)
	}
	if _, err := banks.Get(ctx, "step1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get removed: err = %v, want ErrNotFound", err)
	}
}

func TestBlockEvents(t *testing.T) {
	s := openTestStore(t)
	events := s.Events()
	ctx := context.Background()

	for i, action := range []string{"start", "pause", "open", "complete"} {
		err := events.AppendBlockEvent(ctx, BlockEventData{
			UserID:  "u1",
			Bank:    "step1",
			BlockID: "0",
			Action:  action,
			Correct: i,
		})
		if err != nil {
			t.Fatalf("append %s: %v", action, err)
		}
	}
	if err := events.AppendBlockEvent(ctx, BlockEventData{UserID: "u2", Action: "start"}); err != nil {
		t.Fatalf("append other user: %v", err)
	}

	all, err := events.BlockEvents(ctx, "u1", QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("events = %d, want 4", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Sequence <= all[i-1].Sequence {
			t.Errorf("events out of order at %d", i)
		}
	}
	if all[0].Action != "start" || all[3].Action != "complete" {
		t.Errorf("actions = %s..%s", all[0].Action, all[3].Action)
	}
	if all[0].ID == "" || all[0].ID == all[1].ID {
		t.Error("expected unique event ids")
	}

	last, err := events.BlockEvents(ctx, "u1", QueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("query limit: %v", err)
	}
	if len(last) != 2 || last[0].Action != "open" || last[1].Action != "complete" {
		t.Errorf("limited = %+v", last)
	}

	after, err := events.BlockEvents(ctx, "u1", QueryOpts{After: all[1].Sequence})
	if err != nil {
		t.Fatalf("query after: %v", err)
	}
	if len(after) != 2 {
		t.Errorf("after = %d events, want 2", len(after))
	}

	future, err := events.BlockEvents(ctx, "u1", QueryOpts{From: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("query from: %v", err)
	}
	if len(future) != 0 {
		t.Errorf("future = %d events, want 0", len(future))
	}
}

func TestSnapshotSaveAndLatest(t *testing.T) {
	s := openTestStore(t)
	repo := s.Snapshots()
	ctx := context.Background()

	snap, err := repo.Latest(ctx, "u1", "step1")
	if err != nil {
		t.Fatalf("latest (empty): %v", err)
	}
	if snap != nil {
		t.Fatal("expected nil snapshot when none exist")
	}

	for i := 0; i < 3; i++ {
		err := repo.Save(ctx, &Snapshot{
			UserID: "u1",
			Bank:   "step1",
			Reason: "reset",
			Data:   json.RawMessage(fmt.Sprintf(`{"blockseq":%d}`, i)),
		})
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	snap, err = repo.Latest(ctx, "u1", "step1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if string(snap.Data) != `{"blockseq":2}` {
		t.Errorf("data = %s, want the newest snapshot", snap.Data)
	}
	if snap.Reason != "reset" {
		t.Errorf("reason = %q", snap.Reason)
	}

	other, err := repo.Latest(ctx, "u1", "step2")
	if err != nil || other != nil {
		t.Errorf("other bank: %v, %v; want none", other, err)
	}
}

func TestSnapshotPrune(t *testing.T) {
	s := openTestStore(t)
	repo := s.Snapshots()
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if err := repo.Save(ctx, &Snapshot{UserID: "u1", Bank: "b", Reason: "reset", Data: json.RawMessage(`{}`)}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	// Another owner's snapshots are untouched.
	if err := repo.Save(ctx, &Snapshot{UserID: "u2", Bank: "b", Reason: "reset", Data: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("save other: %v", err)
	}

	if err := repo.Prune(ctx, "u1", "b", 5); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if err := repo.Prune(ctx, "u1", "b", 5); err != nil {
		t.Fatalf("prune again: %v", err)
	}

	var count int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM snapshots WHERE user_id = 'u1'").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 5 {
		t.Errorf("remaining snapshots = %d, want 5", count)
	}
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM snapshots WHERE user_id = 'u2'").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("other user snapshots = %d, want 1", count)
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var seqs []int64
	for i := 0; i < 5; i++ {
		seq, err := s.seq.Next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		seqs = append(seqs, seq)
	}

	// Should be monotonically increasing starting from 1.
	for i, seq := range seqs {
		expected := int64(i + 1)
		if seq != expected {
			t.Errorf("seq[%d] = %d, want %d", i, seq, expected)
		}
	}
}
