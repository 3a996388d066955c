package cmd

import (
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tpmpass "github.com/muhammetozeski/TPMPass"
	"github.com/muhammetozeski/TPMPass/identity"
)

func TestExecuteClosesVaultWhenCommandFails(t *testing.T) {
	var opened *tpmpass.Vault
	failing := &cobra.Command{
		Use: "fail-after-open",
		RunE: func(cmd *cobra.Command, args []string) error {
			opened = vault
			return errors.New("command failed")
		},
	}
	rootCmd.AddCommand(failing)
	t.Cleanup(func() {
		rootCmd.RemoveCommand(failing)
		rootCmd.SetArgs(nil)
	})

	rootCmd.SetArgs([]string{"fail-after-open", "--data-dir", t.TempDir()})
	code := Execute()

	assert.NotZero(t, code)
	require.NotNil(t, opened, "the vault was opened before the command ran")
	assert.Nil(t, vault)
	assert.Equal(t, identity.NotLoaded, opened.Identity().State(), "identity wiped by Close")
	assert.NoError(t, opened.Close())
}

func TestCloseVaultWithoutVault(t *testing.T) {
	vault = nil
	assert.NoError(t, closeVault())
}
