package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/quail/internal/store"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the session user id",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		fmt.Println(a.userID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session; the next command starts a new anonymous user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.Prefs().Delete(cmd.Context(), store.KeyCurrentUser); err != nil {
			return err
		}
		fmt.Println("Logged out", a.userID)
		return nil
	},
}
