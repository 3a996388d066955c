package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/muhammetozeski/TPMPass/clipboard"
	"github.com/muhammetozeski/TPMPass/settings"
)

var (
	decryptCopy  bool
	decryptPrint bool

	exposerMu     sync.Mutex
	activeExposer *clipboard.Exposer
)

var decryptCmd = &cobra.Command{
	Use:   "decrypt <file>",
	Short: "Decrypt a secret file",
	Long: `Decrypt a secret file and print it, or copy it to the clipboard.

With --copy the clipboard is cleared after clipboard.clear_after_seconds
(unless something else was copied meanwhile) and the command waits until then.
Press Ctrl-C to clear it immediately.

Examples:
  tpmpass decrypt github
  tpmpass decrypt --copy github.tpmPassword`,
	Args: cobra.ExactArgs(1),
	RunE: runDecrypt,
}

func init() {
	rootCmd.AddCommand(decryptCmd)
	decryptCmd.Flags().BoolVarP(&decryptCopy, "copy", "c", false, "copy the secret to the clipboard")
	decryptCmd.Flags().BoolVarP(&decryptPrint, "print", "p", false, "print the secret to standard output (default)")
	decryptCmd.MarkFlagsMutuallyExclusive("copy", "print")
}

// Interrupted clears a clipboard exposure that is still pending.
func Interrupted() {
	exposerMu.Lock()
	defer exposerMu.Unlock()
	if activeExposer != nil {
		if err := activeExposer.ClearNow(); err != nil {
			logger.Warnf("%v", err)
		}
		activeExposer = nil
	}
}

func runDecrypt(cmd *cobra.Command, args []string) error {
	path := secretPath(args[0])
	if !decryptCopy {
		if err := vault.DecryptAndPrint(cmd.Context(), path, cmd.OutOrStdout()); err != nil {
			return err
		}
		if fileIsTerminal(os.Stdout) {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		return nil
	}
	return copySecret(cmd, path)
}

func copySecret(cmd *cobra.Command, path string) error {
	if !conf.GetBool(settings.ClipboardEnabled) {
		return fmt.Errorf("clipboard use is disabled (%s)", settings.ClipboardEnabled)
	}
	if !clipboard.Available() {
		return fmt.Errorf("no clipboard available; install xclip, xsel or wl-clipboard")
	}

	delay := time.Duration(conf.GetInt(settings.ClipboardClearAfter)) * time.Second
	exposer := clipboard.NewExposer(delay, clipboard.WithReporter(logger))

	exposerMu.Lock()
	activeExposer = exposer
	exposerMu.Unlock()

	if err := vault.DecryptAndCopy(cmd.Context(), path, exposer); err != nil {
		return err
	}

	done := exposer.Done()
	if done == nil {
		fmt.Println("Secret copied to the clipboard")
		return nil
	}
	fmt.Printf("Secret copied to the clipboard, clearing in %s\n", delay)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	select {
	case <-done:
		logger.Infof("clipboard cleared")
	case <-ctx.Done():
		Interrupted()
		fmt.Println("Clipboard cleared")
	}

	exposerMu.Lock()
	activeExposer = nil
	exposerMu.Unlock()
	return nil
}
