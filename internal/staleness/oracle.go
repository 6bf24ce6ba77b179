package staleness

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/segmentio/fasthash/fnv1a"

	"megaton-build-go/internal/depfile"
	"megaton-build-go/internal/fingerprint"
	"megaton-build-go/internal/flags"
	"megaton-build-go/internal/status"
	"megaton-build-go/internal/system"
)

type SourceType uint8

const (
	SourceNone SourceType = iota
	SourceC
	SourceCXX
	SourceAsm
)

func (t SourceType) String() string {
	switch t {
	case SourceC:
		return "c"
	case SourceCXX:
		return "c++"
	case SourceAsm:
		return "asm"
	}
	return "none"
}

// SourceTypeOf classifies path by its extension. Matching is case-sensitive.
func SourceTypeOf(path string) SourceType {
	stem, ext := splitExt(path)
	if stem == "" {
		return SourceNone
	}
	switch ext {
	case ".c":
		return SourceC
	case ".cpp", ".cc", ".cxx", ".c++":
		return SourceCXX
	case ".s", ".asm":
		return SourceAsm
	}
	return SourceNone
}

func splitExt(path string) (stem, ext string) {
	base := filepath.Base(path)
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return base, ""
	}
	return base[:i], base[i:]
}

// ObjectName derives the file name (without .o/.d) of the object built from
// source: "<stem>-<fnv1a-64 of the full path><ext>". Sources with the same
// file name in different directories get distinct objects.
func ObjectName(source string) string {
	stem, ext := splitExt(source)
	return fmt.Sprintf("%s-%016x%s", stem, fnv1a.HashString64(source), ext)
}

type Outcome uint8

const (
	NotSource Outcome = iota
	UpToDate
	NeedCompile
)

func (o Outcome) String() string {
	switch o {
	case UpToDate:
		return "up-to-date"
	case NeedCompile:
		return "need-compile"
	}
	return "not-source"
}

// Result is the decision for one source file. Command is always set for
// NeedCompile and set for UpToDate only when it had to be computed.
type Result struct {
	Outcome Outcome
	Type    SourceType
	Object  string
	Depfile string
	Command *fingerprint.CompileCommand
}

// Oracle decides, for each source file, whether its object must be rebuilt.
type Oracle struct {
	ObjectDir string
	CC        string
	CXX       string
	Flags     *flags.Resolved
	// CommandPossiblyChanged is false when the configuration is unchanged
	// since the last successful run, in which case commands are not compared.
	CommandPossiblyChanged bool
	Fingerprints           fingerprint.Set
	Explanations           *status.Explanations
}

func (o *Oracle) paths(source string) (obj, dep string) {
	name := filepath.Join(o.ObjectDir, ObjectName(source))
	return name + ".o", name + ".d"
}

// Command builds the compile invocation for source, or nil when source is
// not a recognised source file.
func (o *Oracle) Command(source string) *fingerprint.CompileCommand {
	t := SourceTypeOf(source)
	if t == SourceNone {
		return nil
	}
	obj, dep := o.paths(source)
	return o.command(source, t, obj, dep)
}

func (o *Oracle) command(source string, t SourceType, obj, dep string) *fingerprint.CompileCommand {
	var args []string
	switch t {
	case SourceC:
		args = append(args, o.CC, "-MMD", "-MP", "-MF", dep)
		args = append(args, o.Flags.C...)
	case SourceCXX:
		args = append(args, o.CXX, "-MMD", "-MP", "-MF", dep)
		args = append(args, o.Flags.CXX...)
	case SourceAsm:
		args = append(args, o.CXX, "-MMD", "-MP", "-MF", dep, "-x", "assembler-with-cpp")
		args = append(args, o.Flags.AS...)
	}
	args = append(args, "-c", "-o", obj, source)
	return &fingerprint.CompileCommand{Directory: "/", Arguments: args, File: source, Output: obj}
}

// Process classifies source. Its fingerprint entry, if any, is removed from
// Fingerprints whatever the outcome, so leftovers mean deleted sources.
func (o *Oracle) Process(source string) (Result, error) {
	t := SourceTypeOf(source)
	if t == SourceNone {
		return Result{Outcome: NotSource}, nil
	}
	obj, dep := o.paths(source)
	r := Result{Type: t, Object: obj, Depfile: dep}
	old := o.Fingerprints.Take(source)

	stale := func(format string, args ...interface{}) (Result, error) {
		o.Explanations.Record(source, format, args...)
		r.Outcome = NeedCompile
		if r.Command == nil {
			r.Command = o.command(source, t, obj, dep)
		}
		return r, nil
	}

	objTime, notExist, err := system.Stat(obj)
	if err != nil {
		return r, err
	}
	if notExist {
		return stale("object %s is missing", obj)
	}
	srcTime, notExist, err := system.Stat(source)
	if err != nil {
		return r, err
	}
	if notExist || srcTime.After(objTime) {
		return stale("source is newer than %s", obj)
	}
	if ok, reason := depfile.UpToDate(dep, obj, objTime); !ok {
		return stale("%s", reason)
	}
	if !o.CommandPossiblyChanged {
		r.Outcome = UpToDate
		return r, nil
	}
	r.Command = o.command(source, t, obj, dep)
	if old == nil {
		return stale("no previous command recorded")
	}
	if !old.Equal(r.Command) {
		return stale("command line changed")
	}
	r.Outcome = UpToDate
	return r, nil
}
