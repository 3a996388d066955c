package tpmpass

import (
	"context"
	"errors"
	"fmt"
	"time"
)

func newRequestID() string {
	return fmt.Sprintf("v_%d", time.Now().UnixNano())
}

// ErrorCategory names the failure class of err for audit records and
// CLI exit codes.
func ErrorCategory(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrScanFailed):
		return "scan_failed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidData):
		return "invalid_data"
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, ErrCryptographic):
		return "cryptographic"
	case errors.Is(err, ErrArgument):
		return "argument"
	case errors.Is(err, ErrDisposed):
		return "disposed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "io"
	}
}
