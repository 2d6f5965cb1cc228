package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/quail/internal/store"
	"github.com/abhisek/quail/internal/ui/render"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the block event log of the session user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		events, err := a.store.Events().BlockEvents(cmd.Context(), a.userID, store.QueryOpts{Limit: limit})
		if err != nil {
			return err
		}
		fmt.Println(render.Events(events))
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 50, "Show at most this many recent events (0 for all)")
}
