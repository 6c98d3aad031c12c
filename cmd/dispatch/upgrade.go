package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dispatchd/dispatch/internal/version"
	"github.com/dispatchd/dispatch/update"
)

var upgradeCheckOnly bool

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Upgrade dispatch to the latest release",
	RunE: func(cmd *cobra.Command, args []string) error {
		u := update.New(version.Version)
		rel, err := u.CheckForUpdate(cmd.Context())
		if err != nil {
			return fmt.Errorf("check for update: %w", err)
		}
		if rel == nil {
			fmt.Printf("dispatch %s is up to date\n", version.Version)
			return nil
		}
		fmt.Printf("new version available: %s\n", rel.Version)
		if upgradeCheckOnly {
			return nil
		}
		if err := u.ApplyUpdate(cmd.Context(), rel); err != nil {
			return fmt.Errorf("apply update: %w", err)
		}
		fmt.Printf("upgraded to %s\n", rel.Version)
		return nil
	},
}

func init() {
	upgradeCmd.Flags().BoolVar(&upgradeCheckOnly, "check", false, "Only check for a new version")
	rootCmd.AddCommand(upgradeCmd)
}
