//go:build debug

package debug

import (
	"fmt"
	"os"
)

const Debug = true

// Print never receives secret material; callers pass sizes and paths only.
func Print(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "DEBUG: "+format, args...)
}
