package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/quail/internal/controller"
	"github.com/abhisek/quail/internal/dataset"
	"github.com/abhisek/quail/internal/store"
	"github.com/abhisek/quail/internal/userdata"
)

// snapshotsKept is how many progress snapshots are retained per bank.
const snapshotsKept = 5

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard all progress on the bank in use",
	Long: "Discard all progress on the bank in use. Once confirmed, a snapshot\n" +
		"is taken before anything is discarded; `quail restore` brings it back.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withBank(cmd, func(a *app, view *controller.View) error {
			snap, err := resetSnapshot(a.userID, view)
			if err != nil {
				return err
			}
			a.gate.onAccept = func(ctx context.Context) error {
				return a.store.Snapshots().Save(ctx, snap)
			}

			_, err = a.ctrl.Dispatch(ctx, controller.ResetBank{})
			if errors.Is(err, controller.ErrResetDeclined) {
				fmt.Println("Reset cancelled.")
				return nil
			}
			if err != nil {
				return err
			}
			if err := a.store.Snapshots().Prune(ctx, a.userID, view.Bank, snapshotsKept); err != nil {
				a.logger.Warn("could not prune snapshots", "error", err)
			}
			fmt.Printf("Progress on %s reset (snapshot %d).\n", view.Bank, snap.Sequence)
			return nil
		})
	},
}

// resetSnapshot captures the progress a reset is about to discard.
func resetSnapshot(userID string, view *controller.View) (*store.Snapshot, error) {
	data, err := json.Marshal(view.Progress)
	if err != nil {
		return nil, err
	}
	return &store.Snapshot{UserID: userID, Bank: view.Bank, Reason: "reset", Data: data}, nil
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the progress snapshot taken by the last reset",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withBank(cmd, func(a *app, view *controller.View) error {
			snap, err := a.store.Snapshots().Latest(ctx, a.userID, view.Bank)
			if err != nil {
				return err
			}
			if snap == nil {
				return fmt.Errorf("no snapshot of %s for this user", view.Bank)
			}
			if _, err := a.records.Save(ctx, a.userID, userdata.Patch{Progress: snap.Data}); err != nil {
				return err
			}
			if err := dataset.WriteLegacyProgress(view.Path, snap.Data); err != nil {
				return err
			}
			res, err := a.loadBank(cmd)
			if err != nil {
				return err
			}
			fmt.Printf("Restored %s from %s: %d blocks.\n",
				view.Bank, snap.Timestamp.Local().Format("2006-01-02 15:04"), res.View.Progress.History.Len())
			return nil
		})
	},
}

func init() {
	resetCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}
