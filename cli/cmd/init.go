package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muhammetozeski/TPMPass/identity"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or load the master identity",
	Long: `Create the master identity on first use, or load and verify the existing one.

If the identity file cannot be unwrapped (it was corrupted, or it belongs to
another user or machine) a new identity is generated. Files encrypted with the
previous identity can no longer be decrypted.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	id := vault.Identity()

	switch id.State() {
	case identity.Recreated:
		fmt.Printf("Created a new master identity: %s\n", id.Path())
		fmt.Printf("Read %s before moving or deleting this directory.\n", id.WarningPath())
	default:
		fmt.Printf("Master identity loaded: %s\n", id.Path())
	}
	return nil
}
