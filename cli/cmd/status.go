package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muhammetozeski/TPMPass/clipboard"
	"github.com/muhammetozeski/TPMPass/settings"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault status",
	Long:  "Display the master identity state, its location, the memory protection level and the active options.",
	RunE:  showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func showStatus(cmd *cobra.Command, args []string) error {
	id := vault.Identity()

	fmt.Println("TPMPass Status")
	fmt.Println("==============")
	fmt.Printf("Master Identity: %s\n", id.State())
	fmt.Printf("Identity File: %s\n", id.Path())
	fmt.Printf("Identity Store: %s\n", vault.StoreType())
	fmt.Printf("Warning Note: %s\n", id.WarningPath())
	fmt.Printf("Memory Protection: %s\n", vault.SecureMemoryProtection())

	if conf.GetBool(settings.KeyringEnabled) {
		fmt.Printf("Profile Secret: OS keyring (%s)\n", viperString("keyring.service"))
	} else {
		fmt.Println("Profile Secret: file in data directory")
	}

	fmt.Printf("Clipboard: %s\n", onOff(conf.GetBool(settings.ClipboardEnabled) && clipboard.Available()))
	fmt.Printf("Parent Process Scan: %s\n", onOff(conf.GetBool(settings.ScanParentProcess)))
	fmt.Printf("Audit Trail: %s\n", onOff(conf.GetBool(settings.AuditEnabled)))
	return nil
}
