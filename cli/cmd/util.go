package cmd

import (
	"os"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/term"

	tpmpass "github.com/muhammetozeski/TPMPass"
)

// Exit codes, one per failure class.
const (
	exitFailure       = 1
	exitNotFound      = 2
	exitInvalidData   = 3
	exitCryptographic = 4
	exitScanFailed    = 5
	exitArgument      = 64
)

func exitCode(err error) int {
	switch tpmpass.ErrorCategory(err) {
	case "not_found":
		return exitNotFound
	case "invalid_data":
		return exitInvalidData
	case "cryptographic":
		return exitCryptographic
	case "scan_failed":
		return exitScanFailed
	case "argument":
		return exitArgument
	default:
		return exitFailure
	}
}

// formatError capitalises the message of err for display.
func formatError(err error) string {
	message := err.Error()
	if len(message) > 0 {
		first := string(message[0])
		if first != strings.ToUpper(first) {
			message = strings.ToUpper(first) + message[1:]
		}
	}
	return message
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func viperString(key string) string {
	return viper.GetString(key)
}

// fileExists checks if a file exists
func fileExists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}

func fileIsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

