package build

import (
	"path/filepath"
	"strings"

	"megaton-build-go/internal/buildlog"
	"megaton-build-go/internal/metrics"
	"megaton-build-go/internal/system"
)

// Paths lists every file a build of one profile reads or writes.
type Paths struct {
	Root   string
	Config string
	// Target is <root>/target/megaton/<profile>
	Target          string
	Objects         string
	Verfile         string
	CompileCommands string
	Checkpoint      string
	NpdmJSON        string
	Npdm            string
	Elf             string
	Nso             string
	BuildLog        string
	Metrics         string

	MissingSymbols         string
	DisallowedInstructions string
	CompileErrors          string
	LinkErrors             string
}

// TargetRoot is the directory holding the outputs of every profile.
func TargetRoot(root string) string {
	return filepath.Join(root, "target", "megaton")
}

func NewPaths(root, profile, module string) *Paths {
	target := filepath.Join(TargetRoot(root), profile)
	return &Paths{
		Root:                   root,
		Config:                 filepath.Join(root, system.ConfigFile),
		Target:                 target,
		Objects:                filepath.Join(target, "o"),
		Verfile:                filepath.Join(target, "verfile"),
		CompileCommands:        filepath.Join(target, "compile_commands.json"),
		Checkpoint:             filepath.Join(target, ".checkpoint"),
		NpdmJSON:               filepath.Join(target, "main.npdm.json"),
		Npdm:                   filepath.Join(target, "main.npdm"),
		Elf:                    filepath.Join(target, module+".elf"),
		Nso:                    filepath.Join(target, module+".nso"),
		BuildLog:               filepath.Join(target, buildlog.FileName),
		Metrics:                filepath.Join(target, metrics.FileName),
		MissingSymbols:         filepath.Join(target, "missing_symbols.txt"),
		DisallowedInstructions: filepath.Join(target, "disallowed_instructions.txt"),
		CompileErrors:          filepath.Join(target, "compile_errors.txt"),
		LinkErrors:             filepath.Join(target, "link_errors.txt"),
	}
}

// Rel shortens path for display.
func (p *Paths) Rel(path string) string {
	if rel, err := filepath.Rel(p.Root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
