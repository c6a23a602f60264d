// Package printer writes coloured CLI output for the non-interactive commands.
package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// Printer sends regular output to out and errors to errOut.
type Printer struct {
	out    io.Writer
	errOut io.Writer
}

// New returns a printer bound to the given writers.
func New(out, errOut io.Writer) *Printer {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	return &Printer{out: out, errOut: errOut}
}

var std = New(os.Stdout, os.Stderr)

// Success prints a green line prefixed with a checkmark.
func (p *Printer) Success(format string, a ...any) {
	msg := strings.TrimPrefix(fmt.Sprintf(format, a...), "✓ ")
	green.Fprintf(p.out, "✓ %s\n", msg)
}

// Info prints an uncoloured line.
func (p *Printer) Info(format string, a ...any) {
	fmt.Fprintf(p.out, format+"\n", a...)
}

// Warning prints a yellow line to the error stream.
func (p *Printer) Warning(format string, a ...any) {
	msg := strings.TrimPrefix(fmt.Sprintf(format, a...), "⚠ ")
	yellow.Fprintf(p.errOut, "⚠ %s\n", msg)
}

// Step prints one playback transition.
func (p *Printer) Step(format string, a ...any) {
	cyan.Fprintf(p.out, "→ %s\n", fmt.Sprintf(format, a...))
}

// Detail prints an indented, dimmed line under a step.
func (p *Printer) Detail(format string, a ...any) {
	faint.Fprintf(p.out, "    %s\n", fmt.Sprintf(format, a...))
}

// Error prints title, explanation and suggestions to the error stream and
// returns an error carrying only the title, so cobra can stay silent.
func (p *Printer) Error(title, explanation string, suggestions []string) error {
	return p.ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with key/value details, printed in key order.
func (p *Printer) ErrorWithContext(title, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(p.errOut, "%s\n", title)
	if explanation != "" {
		fmt.Fprintf(p.errOut, "\n%s\n", explanation)
	}
	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for key := range context {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		fmt.Fprintln(p.errOut)
		for _, key := range keys {
			fmt.Fprintf(p.errOut, "  %s: %s\n", key, context[key])
		}
	}
	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(p.errOut, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(p.errOut, "\nEither:\n")
		for i, suggestion := range suggestions {
			fmt.Fprintf(p.errOut, "  %d. %s\n", i+1, suggestion)
		}
	}
	return fmt.Errorf("%s", title)
}

// Success prints to stdout.
func Success(format string, a ...any) { std.Success(format, a...) }

// Info prints to stdout.
func Info(format string, a ...any) { std.Info(format, a...) }

// Warning prints to stderr.
func Warning(format string, a ...any) { std.Warning(format, a...) }

// Error prints to stderr.
func Error(title, explanation string, suggestions []string) error {
	return std.Error(title, explanation, suggestions)
}
