package build

import (
	"fmt"
	"strings"
)

// maxInline is how many offending items are printed before the rest is
// left to the report file.
const maxInline = 10

// CompileError is returned when at least one unit failed to compile. Failed
// lists the sources in scan order.
type CompileError struct {
	Failed []string
}

func (e *CompileError) Error() string {
	if len(e.Failed) == 1 {
		return "1 unit failed to compile"
	}
	return fmt.Sprintf("%d units failed to compile", len(e.Failed))
}

type LinkError struct {
	Elf      string
	ExitCode int
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("linker exited with status %d", e.ExitCode)
}

// CheckError is returned when the linked ELF imports symbols that are not
// provided or contains forbidden instructions.
type CheckError struct {
	MissingSymbols         []string
	DisallowedInstructions []string
}

func (e *CheckError) Error() string {
	var parts []string
	if n := len(e.MissingSymbols); n > 0 {
		parts = append(parts, fmt.Sprintf("%d missing symbol(s)", n))
	}
	if n := len(e.DisallowedInstructions); n > 0 {
		parts = append(parts, fmt.Sprintf("%d disallowed instruction(s)", n))
	}
	return "check failed: " + strings.Join(parts, ", ")
}

// inline returns the lines to print for items: the first maxInline of them
// and a trailer counting the rest.
func inline(items []string) []string {
	if len(items) <= maxInline {
		return items
	}
	out := append([]string{}, items[:maxInline]...)
	return append(out, fmt.Sprintf("... (%d more)", len(items)-maxInline))
}

// report prints up to maxInline items under tag, writes every item to path
// and tells the user where to find them.
func (this *Builder) report(tag, what string, items []string, path string) error {
	for _, line := range inline(items) {
		this.Printer.Error(tag, "%s", line)
	}
	if err := writeReport(path, items); err != nil {
		return err
	}
	this.Printer.Hint("Hint", "%s written to %s", what, path)
	return nil
}
