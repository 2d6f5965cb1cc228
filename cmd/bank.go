package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abhisek/quail/internal/dataset"
	"github.com/abhisek/quail/internal/store"
	"github.com/abhisek/quail/internal/ui/theme"
)

var bankCmd = &cobra.Command{
	Use:   "bank",
	Short: "Manage registered question banks",
}

var bankAddCmd = &cobra.Command{
	Use:   "add <name> <dir>",
	Short: "Register a question bank directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := args[0]
		dir, err := filepath.Abs(args[1])
		if err != nil {
			return err
		}
		bank, err := dataset.Load(ctx, dir)
		if err != nil {
			return err
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.Banks().Add(ctx, name, dir); err != nil {
			return err
		}
		use, _ := cmd.Flags().GetBool("use")
		if _, err := a.store.Prefs().Get(ctx, store.KeyCurrentBank); errors.Is(err, store.ErrNotFound) {
			use = true
		}
		if use {
			if err := a.store.Prefs().Set(ctx, store.KeyCurrentBank, name); err != nil {
				return err
			}
		}
		fmt.Printf("Registered %s: %d questions, %d tag dimensions\n", name, bank.Len(), bank.Taxonomy.Len())
		return nil
	},
}

var bankListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered banks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		banks, err := a.store.Banks().List(ctx)
		if err != nil {
			return err
		}
		if len(banks) == 0 {
			fmt.Println(theme.Hint.Render("No banks registered."))
			return nil
		}
		current, _ := a.store.Prefs().Get(ctx, store.KeyCurrentBank)
		for _, b := range banks {
			marker := " "
			name := b.Name
			if b.Name == current {
				marker = "*"
				name = theme.Selected.Render(name)
			}
			fmt.Printf("%s %s  %s\n", marker, name, theme.Subtitle.Render(b.Path))
		}
		return nil
	},
}

var bankRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Unregister a bank (its files are kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.Banks().Remove(ctx, args[0]); err != nil {
			return err
		}
		if current, _ := a.store.Prefs().Get(ctx, store.KeyCurrentBank); current == args[0] {
			if err := a.store.Prefs().Delete(ctx, store.KeyCurrentBank); err != nil {
				return err
			}
		}
		fmt.Println("Removed", args[0])
		return nil
	},
}

var bankUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Select the bank other commands work on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.store.Banks().Get(ctx, args[0]); err != nil {
			return err
		}
		if err := a.store.Prefs().Set(ctx, store.KeyCurrentBank, args[0]); err != nil {
			return err
		}
		fmt.Println("Using", args[0])
		return nil
	},
}

func init() {
	bankAddCmd.Flags().Bool("use", false, "Select the bank after registering it")

	bankCmd.AddCommand(bankAddCmd)
	bankCmd.AddCommand(bankListCmd)
	bankCmd.AddCommand(bankRemoveCmd)
	bankCmd.AddCommand(bankUseCmd)
}
