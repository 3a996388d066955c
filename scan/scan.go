// Package scan checks the process that launched TPMPass before any secret
// is decrypted.
//
// The ParentProcessScanner resolves the parent's executable and runs an
// external malware scanner over it. Decryption only proceeds when the
// scanner exits cleanly; a detection, a scanner crash or a timeout all
// block it.
package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/shirou/gopsutil/process"

	tperrors "github.com/muhammetozeski/TPMPass/internal/errors"
)

// Gate decides whether decryption may proceed.
type Gate interface {
	Check(ctx context.Context) error
}

// NoopGate lets everything through.
type NoopGate struct{}

func (NoopGate) Check(ctx context.Context) error { return ctx.Err() }

// DefaultCommand scans one file with ClamAV. "{}" is replaced by the
// executable path.
var DefaultCommand = []string{"clamscan", "--no-summary", "--infected", "{}"}

const maxReportedOutput = 512

// ParentProcessScanner implements Gate.
type ParentProcessScanner struct {
	Command []string
	Timeout time.Duration

	// overridable in tests
	resolve func(ctx context.Context) (string, error)
	run     func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewParentProcessScanner scans the parent process with command, or
// DefaultCommand when command is empty.
func NewParentProcessScanner(command []string, timeout time.Duration) *ParentProcessScanner {
	if len(command) == 0 {
		command = DefaultCommand
	}
	return &ParentProcessScanner{
		Command: command,
		Timeout: timeout,
		resolve: parentExecutable,
		run:     runCommand,
	}
}

func (s *ParentProcessScanner) Check(ctx context.Context) error {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	exe, err := s.resolve(ctx)
	if err != nil {
		return fmt.Errorf("%w: cannot resolve parent process: %v", tperrors.ErrScanFailed, err)
	}

	name, args := expand(s.Command, exe)
	out, err := s.run(ctx, name, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: scanning %s: %v", tperrors.ErrScanFailed, exe, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%w: %s flagged %s (exit %d): %s",
				tperrors.ErrScanFailed, name, exe, exitErr.ExitCode(), summarize(out))
		}
		return fmt.Errorf("%w: running %s: %v", tperrors.ErrScanFailed, name, err)
	}
	return nil
}

// expand substitutes exe for "{}" or appends it when no placeholder exists.
func expand(command []string, exe string) (string, []string) {
	args := make([]string, 0, len(command))
	substituted := false
	for _, a := range command[1:] {
		if a == "{}" {
			a = exe
			substituted = true
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, exe)
	}
	return command[0], args
}

func summarize(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > maxReportedOutput {
		s = s[:maxReportedOutput] + "..."
	}
	return s
}

func parentExecutable(ctx context.Context) (string, error) {
	p, err := process.NewProcess(int32(os.Getppid()))
	if err != nil {
		return "", err
	}
	return p.ExeWithContext(ctx)
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
