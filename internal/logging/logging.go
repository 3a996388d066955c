// Package logging provides the levelled console logger used by the CLI and
// by the core packages to report warnings that must not abort an operation.
//
// Info lines are shown with --verbose, debug lines with --debug, warnings
// and errors always. Set NO_COLOR to disable the coloured prefixes.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

type Logger struct {
	Verbose bool
	Debug   bool

	// Out and Err default to os.Stdout and os.Stderr.
	Out io.Writer
	Err io.Writer
}

// New returns a Logger writing to the standard streams.
func New(verbose, debug bool) *Logger {
	return &Logger{Verbose: verbose, Debug: debug}
}

func (l *Logger) Infof(msg string, args ...any) {
	if l.Verbose || l.Debug {
		fmt.Fprintf(l.out(), color.GreenString("[info] ")+msg+"\n", args...)
	}
}

func (l *Logger) Debugf(msg string, args ...any) {
	if l.Debug {
		fmt.Fprintf(l.out(), color.CyanString("[debug] ")+msg+"\n", args...)
	}
}

func (l *Logger) Warnf(msg string, args ...any) {
	fmt.Fprintf(l.err(), color.YellowString("[warn] ")+msg+"\n", args...)
}

func (l *Logger) Errorf(msg string, args ...any) {
	fmt.Fprintf(l.err(), color.RedString("[error] ")+msg+"\n", args...)
}

// Criticalf is for conditions that leave secrets exposed, such as a failed
// re-encryption of a protected buffer.
func (l *Logger) Criticalf(msg string, args ...any) {
	fmt.Fprintf(l.err(), color.New(color.FgRed, color.Bold).Sprint("[CRITICAL] ")+msg+"\n", args...)
}

func (l *Logger) Fatalf(msg string, args ...any) {
	l.Errorf(msg, args...)
	os.Exit(1)
}

func (l *Logger) out() io.Writer {
	if l == nil || l.Out == nil {
		return os.Stdout
	}
	return l.Out
}

func (l *Logger) err() io.Writer {
	if l == nil || l.Err == nil {
		return os.Stderr
	}
	return l.Err
}

// Discard drops everything; handy for tests and library callers.
var Discard = &Logger{Out: io.Discard, Err: io.Discard}
