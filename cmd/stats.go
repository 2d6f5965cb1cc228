package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/quail/internal/controller"
	"github.com/abhisek/quail/internal/ui/render"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show progress statistics for the bank in use",
	RunE: func(cmd *cobra.Command, args []string) error {
		tags, _ := cmd.Flags().GetBool("tags")
		return runStats(cmd, tags)
	},
}

func runStats(cmd *cobra.Command, tags bool) error {
	return withBank(cmd, func(_ *app, view *controller.View) error {
		fmt.Println(render.Overview(view.Bank, view.Progress.Overview()))
		if tags {
			fmt.Println()
			fmt.Println(render.Summary(view.Taxonomy, view.Progress.Buckets))
		}
		return nil
	})
}

func init() {
	statsCmd.Flags().Bool("tags", true, "Show pool sizes per tag")
}
