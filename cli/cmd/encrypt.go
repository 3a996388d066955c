package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muhammetozeski/TPMPass/internal/crypto"
	"github.com/muhammetozeski/TPMPass/internal/misc"
)

var (
	encryptForce bool
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt <file>",
	Short: "Encrypt a secret into a file",
	Long: `Encrypt a secret into a file that only this user, on this machine, with the
current master identity can decrypt.

The secret is read from a hidden prompt when standard input is a terminal,
otherwise from standard input (one trailing newline is dropped). Files without
an extension get ".tpmPassword".

Examples:
  tpmpass encrypt github
  printf '%s' "$TOKEN" | tpmpass encrypt ci-token.tpmPassword`,
	Args: cobra.ExactArgs(1),
	RunE: runEncrypt,
}

func init() {
	rootCmd.AddCommand(encryptCmd)
	encryptCmd.Flags().BoolVarP(&encryptForce, "force", "f", false, "overwrite an existing file")
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	path := secretPath(args[0])
	if fileExists(path) && !encryptForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	secret, err := readSecret(cmd.InOrStdin())
	if err != nil {
		return err
	}

	if err = vault.EncryptAndSaveBytes(secret, path); err != nil {
		return err
	}

	fmt.Printf("Secret saved to %s\n", path)
	return nil
}

func secretPath(arg string) string {
	if filepath.Ext(arg) == "" {
		return arg + misc.FileExtension
	}
	return arg
}

// readSecret prompts twice on a terminal, otherwise reads r to the end.
func readSecret(r io.Reader) ([]byte, error) {
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return promptSecret(int(f.Fd()))
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	secret := trimNewline(data)
	if len(secret) == 0 {
		crypto.Wipe(data)
		return nil, fmt.Errorf("no secret on standard input")
	}
	return secret, nil
}

func promptSecret(fd int) ([]byte, error) {
	fmt.Fprint(os.Stderr, "Secret: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	fmt.Fprint(os.Stderr, "Repeat: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	defer crypto.Wipe(second)
	if err != nil {
		crypto.Wipe(first)
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	if !bytes.Equal(first, second) {
		crypto.Wipe(first)
		return nil, fmt.Errorf("secrets do not match")
	}
	if len(first) == 0 {
		return nil, fmt.Errorf("secret cannot be empty")
	}
	return first, nil
}

func trimNewline(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
		if n := len(b); n > 0 && b[n-1] == '\r' {
			b = b[:n-1]
		}
	}
	return b
}
