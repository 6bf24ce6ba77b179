package check

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const (
	dynamicSymbolTable = "DYNAMIC SYMBOL TABLE:"
	// symbolColumn is where the section/size column starts in objdump -T
	// output on a 64-bit target.
	symbolColumn = 25
)

// UndefinedSection is the section objdump shows for imported symbols.
const UndefinedSection = "*UND*"

// ParseDynamicSymbols reads the output of objdump -T and calls fn with every
// symbol name found in the dynamic symbol table, along with its section.
func ParseDynamicSymbols(r io.Reader, fn func(sym, section string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	inTable := false
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if !inTable {
			inTable = strings.TrimSpace(line) == dynamicSymbolTable
			continue
		}
		if len(line) <= symbolColumn {
			continue
		}
		head, sym, ok := strings.Cut(line[symbolColumn:], " ")
		if !ok {
			return fmt.Errorf("line %d: malformed symbol line %q", lineNo, line)
		}
		// newer binutils print a version column before the name
		if fields := strings.Fields(sym); len(fields) > 0 {
			section, _, _ := strings.Cut(head, "\t")
			fn(fields[len(fields)-1], strings.TrimSpace(section))
		}
	}
	return sc.Err()
}

// Instruction is one disassembled instruction of objdump -d.
type Instruction struct {
	Addr string
	Text string
}

func (i Instruction) String() string { return i.Addr + ": " + i.Text }

// ParseInstructions reads the output of objdump -d and calls fn with every
// instruction line. Headers and labels are skipped.
func ParseInstructions(r io.Reader, fn func(Instruction)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		addr, rest, ok := strings.Cut(sc.Text(), ":\t")
		if !ok {
			continue
		}
		_, inst, ok := strings.Cut(rest, " \t")
		if !ok {
			continue
		}
		fn(Instruction{Addr: strings.TrimSpace(addr), Text: strings.TrimSpace(inst)})
	}
	return sc.Err()
}
