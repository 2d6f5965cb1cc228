package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abhisek/quail/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "quail",
	Short: "Question bank progress tracker",
	Long: "Quail tracks practice progress on multiple-choice question banks: " +
		"blocks of questions drawn from tag buckets, graded answers and per-user records.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats(cmd, true)
	},
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to config file (overrides QUAIL_CONFIG env var)")
	flags.String("db", "", "Path to SQLite database file (overrides QUAIL_DB env var)")
	flags.String("data-dir", "", "Directory for user records (overrides QUAIL_DATA_DIR env var)")
	flags.String("backend", "", "User record backend: file or badger")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("user", "", "User id (defaults to the stored session user)")
	flags.String("bank", "", "Registered bank name (defaults to the bank in use)")

	rootCmd.AddCommand(bankCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(highlightCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveConfig loads the config file and applies command-line flags on
// top, so flags win over environment variables which win over the file.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return config.Config{}, err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	var o config.Overrides
	o.DataDir, _ = cmd.Flags().GetString("data-dir")
	o.DBPath, _ = cmd.Flags().GetString("db")
	o.Backend, _ = cmd.Flags().GetString("backend")
	o.LogLevel, _ = cmd.Flags().GetString("log-level")
	return cfg.Apply(o)
}
