package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/quail/internal/controller"
	"github.com/abhisek/quail/internal/dataset/datasettest"
	"github.com/abhisek/quail/internal/store"
	"github.com/abhisek/quail/internal/ui/confirm"
	"github.com/abhisek/quail/internal/userdata"
)

func TestGatedConfirmer(t *testing.T) {
	hookErr := errors.New("snapshot failed")
	tests := []struct {
		name      string
		answer    bool
		hookErr   error
		want      bool
		wantErr   error
		wantCalls int
	}{
		{name: "declined skips hook", answer: false, want: false},
		{name: "accepted runs hook", answer: true, want: true, wantCalls: 1},
		{name: "hook failure aborts", answer: true, hookErr: hookErr, want: false, wantErr: hookErr, wantCalls: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			g := &gatedConfirmer{
				base: confirm.Static(tc.answer),
				onAccept: func(context.Context) error {
					calls++
					return tc.hookErr
				},
			}
			ok, err := g.Confirm(context.Background(), "reset?")
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.want, ok)
			assert.Equal(t, tc.wantCalls, calls)
		})
	}
}

func TestReset_SnapshotOnlyAfterConfirmation(t *testing.T) {
	ctx := context.Background()
	bankDir := t.TempDir()
	datasettest.TwoTopics(t, bankDir)

	st, err := store.Open(filepath.Join(t.TempDir(), "quail.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	gate := &gatedConfirmer{base: confirm.Static(false)}
	ctl, err := controller.New(controller.Options{
		UserID:    "u1",
		Records:   userdata.NewStore(userdata.NewFileBackend(t.TempDir()), nil),
		Confirmer: gate,
	})
	require.NoError(t, err)
	res, err := ctl.Dispatch(ctx, controller.LoadDataset{Path: bankDir, Name: "topics"})
	require.NoError(t, err)

	snap, err := resetSnapshot("u1", res.View)
	require.NoError(t, err)
	gate.onAccept = func(ctx context.Context) error { return st.Snapshots().Save(ctx, snap) }

	_, err = ctl.Dispatch(ctx, controller.ResetBank{})
	require.ErrorIs(t, err, controller.ErrResetDeclined)
	latest, err := st.Snapshots().Latest(ctx, "u1", "topics")
	require.NoError(t, err)
	assert.Nil(t, latest, "a declined reset stores no snapshot")

	gate.base = confirm.Static(true)
	_, err = ctl.Dispatch(ctx, controller.ResetBank{})
	require.NoError(t, err)
	latest, err = st.Snapshots().Latest(ctx, "u1", "topics")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "reset", latest.Reason)
	assert.JSONEq(t, string(snap.Data), string(latest.Data))
}
