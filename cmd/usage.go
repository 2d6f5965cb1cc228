package cmd

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/quail/internal/controller"
	"github.com/abhisek/quail/internal/ui/theme"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show or update usage statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBank(cmd, func(_ *app, view *controller.View) error {
			if len(view.UsageStats) == 0 {
				fmt.Println(theme.Hint.Render("No usage statistics recorded."))
				return nil
			}
			for _, k := range slices.Sorted(maps.Keys(view.UsageStats)) {
				fmt.Printf("%s %v\n", theme.Label.Render(k), view.UsageStats[k])
			}
			return nil
		})
	},
}

var usageSetCmd = &cobra.Command{
	Use:   "set <key=value>...",
	Short: "Merge keys into the usage statistics",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := parseUsage(args)
		if err != nil {
			return err
		}
		return withBank(cmd, func(a *app, _ *controller.View) error {
			_, err := a.ctrl.Dispatch(cmd.Context(), controller.UpdateUsageStats{Stats: stats})
			return err
		})
	},
}

// parseUsage reads key=value pairs. Values that parse as JSON keep their
// type; anything else is stored as a string.
func parseUsage(args []string) (map[string]any, error) {
	stats := make(map[string]any, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid usage stat %q: want key=value", arg)
		}
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			parsed = v
		}
		stats[k] = parsed
	}
	return stats, nil
}

var highlightCmd = &cobra.Command{
	Use:   "highlight <question-id> <data>",
	Short: "Store the highlight state of a question",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBank(cmd, func(a *app, _ *controller.View) error {
			_, err := a.ctrl.Dispatch(cmd.Context(), controller.SaveHighlight{QuestionID: args[0], Data: args[1]})
			return err
		})
	},
}

func init() {
	usageCmd.AddCommand(usageSetCmd)
}
