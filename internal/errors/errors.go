// Package errors implements the Error Reporter: the single sink both the
// compiler and the VM funnel every fatal diagnostic through. It formats
// a message against the offending source span and terminates the
// process - there is no recovery path, by spec.
//
// Shape grounded on sentra-language-sentra/internal/errors/errors.go's
// SentraError/SourceLocation split, narrowed to the span-keyed model
// spec.md calls for (no persisted call-stack frames, since every error
// here is immediately fatal).
package errors

import (
	"fmt"
	"os"
	"strings"

	"sentra/internal/bytecode"
)

// Kind distinguishes the error categories spec.md §7 names. All are
// surfaced identically to the user; Kind exists for callers (tests,
// REPL) that want to branch on error category.
type Kind string

const (
	NameUnresolved Kind = "NameUnresolved"
	TypeMismatch   Kind = "TypeMismatch"
	DivisionByZero Kind = "DivisionByZero"
	DomainError    Kind = "DomainError"
	ParseError     Kind = "ParseError"
	UnknownFunc    Kind = "UnknownFunction"
	IOError        Kind = "IOError"
)

// Diagnostic is a single fatal report: a kind, a human message, and the
// source span it is keyed to.
type Diagnostic struct {
	Kind    Kind
	Message string
	Span    bytecode.Span
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s (at byte %d..%d)", d.Kind, d.Message, d.Span.Start, d.Span.End)
}

// osExit is indirected so tests can observe a report without killing
// the test binary.
var osExit = os.Exit

// Reporter formats diagnostics against the original source text and
// exits. One Reporter is shared by a compile+run of a single source
// string.
type Reporter struct {
	Source string
	File   string
}

func New(source, file string) *Reporter {
	return &Reporter{Source: source, File: file}
}

// Report prints a one-diagnostic message pointing at span's source text
// and terminates the process with a nonzero exit code. It never returns.
func (r *Reporter) Report(kind Kind, message string, span bytecode.Span) {
	fmt.Fprintln(os.Stderr, r.format(kind, message, span))
	osExit(1)
}

func (r *Reporter) format(kind Kind, message string, span bytecode.Span) string {
	var sb strings.Builder
	name := r.File
	if name == "" {
		name = "<source>"
	}
	line, col, lineText := r.locate(span.Start)
	fmt.Fprintf(&sb, "error[%s]: %s\n", kind, message)
	fmt.Fprintf(&sb, "  --> %s:%d:%d\n", name, line, col)
	if lineText != "" {
		fmt.Fprintf(&sb, "   |\n%3d| %s\n", line, lineText)
		fmt.Fprintf(&sb, "   | %s^\n", strings.Repeat(" ", col-1))
	}
	return sb.String()
}

// locate converts a byte offset into a 1-based line/column and returns
// the full text of that line.
func (r *Reporter) locate(offset int) (line, col int, lineText string) {
	line, col = 1, 1
	lineStart := 0
	for i := 0; i < offset && i < len(r.Source); i++ {
		if r.Source[i] == '\n' {
			line++
			col = 1
			lineStart = i + 1
		} else {
			col++
		}
	}
	end := strings.IndexByte(r.Source[lineStart:], '\n')
	if end == -1 {
		lineText = r.Source[lineStart:]
	} else {
		lineText = r.Source[lineStart : lineStart+end]
	}
	return line, col, lineText
}
