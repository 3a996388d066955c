package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate completion script",
	Long: `To load completions:

Bash:
  $ source <(tpmpass completion bash)

  # To load completions for each session, execute once:
  $ tpmpass completion bash > /etc/bash_completion.d/tpmpass

Zsh:
  $ tpmpass completion zsh > "${fpath[1]}/_tpmpass"

  # You will need to start a new shell for this setup to take effect.

fish:
  $ tpmpass completion fish > ~/.config/fish/completions/tpmpass.fish

PowerShell:
  PS> tpmpass completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Annotations:           map[string]string{skipVault: "true"},
	RunE:                  generateCompletion,
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

func generateCompletion(cmd *cobra.Command, args []string) error {
	switch args[0] {
	case "bash":
		return cmd.Root().GenBashCompletion(os.Stdout)
	case "zsh":
		return cmd.Root().GenZshCompletion(os.Stdout)
	case "fish":
		return cmd.Root().GenFishCompletion(os.Stdout, true)
	default:
		return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
	}
}
