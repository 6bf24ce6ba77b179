package check

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ahrtr/gocontainer/set"

	"megaton-build-go/internal/config"
	"megaton-build-go/internal/executor"
	"megaton-build-go/internal/system"
)

// builtinDisallowed are instructions that fault or misbehave in a user-mode
// module.
var builtinDisallowed = []string{
	`^msr\s*spsel`,
	`^msr\s*daifset`,
	`^mrs.*daif`,
	`^mrs.*tpidr_el1`,
	`^msr\s*tpidr_el1`,
	`^hlt`,
}

// SymbolSet is the set of symbols the module may import.
type SymbolSet struct {
	set_ set.Interface
}

func NewSymbolSet() *SymbolSet { return &SymbolSet{set_: set.New()} }

func (this *SymbolSet) Add(sym string)           { this.set_.Add(sym) }
func (this *SymbolSet) Contains(sym string) bool { return this.set_.Contains(sym) }
func (this *SymbolSet) Size() int                { return this.set_.Size() }

// ReferenceSymbols is the pending result of LoadReferenceSymbols.
type ReferenceSymbols struct {
	done_ chan struct{}
	set_  *SymbolSet
	err_  error
}

func (this *ReferenceSymbols) Wait() (*SymbolSet, error) {
	<-this.done_
	return this.set_, this.err_
}

// LoadReferenceSymbols parses every symbol file on the pool, one task per
// file. All loaders feed a single consumer that owns the set.
func LoadReferenceSymbols(p *executor.Pool, paths []string) *ReferenceSymbols {
	ret := &ReferenceSymbols{done_: make(chan struct{}), set_: NewSymbolSet()}
	ch := make(chan string, 256)

	consumed := make(chan struct{})
	go func() {
		for sym := range ch {
			ret.set_.Add(sym)
		}
		close(consumed)
	}()

	loaders := make([]*executor.Task[error], 0, len(paths))
	for _, path := range paths {
		path := path
		loaders = append(loaders, executor.Execute(p, func() error {
			f, err := os.Open(path)
			if err != nil {
				return system.PathError(system.KindFS, "cannot read", path, err)
			}
			defer f.Close()
			if err := ParseDynamicSymbols(f, func(sym, _ string) { ch <- sym }); err != nil {
				return system.PathError(system.KindCheck, "invalid symbol file", path, err)
			}
			return nil
		}))
	}

	go func() {
		var errs []error
		for _, l := range loaders {
			if err := l.Wait(); err != nil {
				errs = append(errs, err)
			}
		}
		close(ch)
		<-consumed
		ret.err_ = errors.Join(errs...)
		close(ret.done_)
	}()
	return ret
}

// SymsNewerThan reports whether any symbol file is missing or was modified
// after t.
func SymsNewerThan(paths []string, t time.Time) (bool, error) {
	for _, p := range paths {
		mtime, notExist, err := system.Stat(p)
		if err != nil {
			return false, err
		}
		if notExist || mtime.After(t) {
			return true, nil
		}
	}
	return false, nil
}

// Checker inspects a linked ELF for unresolved symbols and forbidden
// instructions.
type Checker struct {
	Objdump     string
	Ignore      []string
	SymbolFiles []string
	disallowed_ []*regexp.Regexp
}

// NewChecker compiles the built-in and project disallow lists. Paths in cfg
// are resolved against root.
func NewChecker(objdump, root string, cfg *config.Check) (*Checker, error) {
	ret := &Checker{Objdump: objdump, Ignore: cfg.Ignore}
	for _, s := range cfg.Symbols {
		if !filepath.IsAbs(s) {
			s = filepath.Join(root, s)
		}
		ret.SymbolFiles = append(ret.SymbolFiles, s)
	}
	for _, expr := range append(append([]string{}, builtinDisallowed...), cfg.DisallowedInstructions...) {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, system.PathError(system.KindConfig, "invalid instruction pattern", expr, err)
		}
		ret.disallowed_ = append(ret.disallowed_, re)
	}
	return ret, nil
}

func (this *Checker) objdump(flag, elf string) ([]byte, error) {
	cmd := exec.Command(this.Objdump, flag, elf)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			err = errors.New(msg)
		}
		return nil, system.PathError(system.KindCheck, "objdump "+flag+" failed on", elf, err)
	}
	return out, nil
}

// MissingSymbols lists the symbols elf imports that are neither ignored nor
// present in refs, sorted.
// Only undefined (*UND*) dynamic symbols count as imports; defined entries
// and duplicates are dropped.
func (this *Checker) MissingSymbols(elf string, refs *SymbolSet) ([]string, error) {
	out, err := this.objdump("-T", elf)
	if err != nil {
		return nil, err
	}
	ignore := make(map[string]bool, len(this.Ignore))
	for _, s := range this.Ignore {
		ignore[s] = true
	}
	seen := make(map[string]bool)
	var missing []string
	err = ParseDynamicSymbols(bytes.NewReader(out), func(sym, section string) {
		if section != UndefinedSection || ignore[sym] || seen[sym] || refs.Contains(sym) {
			return
		}
		seen[sym] = true
		missing = append(missing, sym)
	})
	if err != nil {
		return nil, system.PathError(system.KindCheck, "invalid objdump output for", elf, err)
	}
	sort.Strings(missing)
	return missing, nil
}

// DisallowedInstructions lists "addr: instruction" for every instruction of
// elf that matches the disallow list, in address order.
func (this *Checker) DisallowedInstructions(elf string) ([]string, error) {
	out, err := this.objdump("-d", elf)
	if err != nil {
		return nil, err
	}
	var found []string
	err = ParseInstructions(bytes.NewReader(out), func(inst Instruction) {
		for _, re := range this.disallowed_ {
			if re.MatchString(inst.Text) {
				found = append(found, inst.String())
				return
			}
		}
	})
	if err != nil {
		return nil, system.PathError(system.KindCheck, "invalid objdump output for", elf, err)
	}
	return found, nil
}
