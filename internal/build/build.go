package build

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"megaton-build-go/internal/buildlog"
	"megaton-build-go/internal/check"
	"megaton-build-go/internal/config"
	"megaton-build-go/internal/executor"
	"megaton-build-go/internal/fingerprint"
	"megaton-build-go/internal/flags"
	"megaton-build-go/internal/metrics"
	"megaton-build-go/internal/staleness"
	"megaton-build-go/internal/status"
	"megaton-build-go/internal/system"
)

// Options are the command-line knobs of one build.
type Options struct {
	// Dir is where the search for Megaton.toml starts.
	Dir string
	// Profile is the profile asked for on the command line, or
	// config.ProfileNone.
	Profile string
	// Jobs is the worker count; 0 picks one from the CPU count.
	Jobs int
	// Stats prints a timing report and writes metrics.prom.
	Stats bool
}

// Builder runs builds. The zero Toolchain makes Run look the tools up.
type Builder struct {
	Printer      *status.LinePrinter
	Explanations *status.Explanations
	Toolchain    *system.Toolchain
	Options      Options
	// Stdout receives the -d stats report.
	Stdout io.Writer
}

// Summary describes what a successful build did.
type Summary struct {
	BuildID   string
	Profile   string
	Compiled  int
	UpToDate  int
	Linked    bool
	Converted bool
	Elf       string
	Nso       string
}

// unit is one compile in flight.
type unit struct {
	source  string
	object  string
	depfile string
	command *fingerprint.CompileCommand
	task    *executor.Task[executor.ProcessResult]
	failed  bool
}

// run holds the state of one invocation. Only the goroutine calling
// Builder.Run touches it.
type run struct {
	*Builder
	cfg       *config.Config
	build     *config.Build
	profile   string
	paths     *Paths
	toolchain *system.Toolchain
	resolved  *flags.Resolved
	checker   *check.Checker

	pool    *executor.Pool
	metrics *metrics.Metrics
	log     *buildlog.BuildLog
	buildID string
}

func (this *Builder) Run() (*Summary, error) {
	start := time.Now()
	r, err := this.prepare()
	if err != nil {
		return nil, err
	}
	r.pool = executor.NewPool(this.jobs())
	defer r.pool.Join()
	if r.log, err = buildlog.Open(r.paths.BuildLog); err != nil {
		return nil, err
	}
	defer r.log.Close()

	summary, err := r.execute()
	if err != nil {
		return nil, err
	}
	if this.Options.Stats {
		if err := r.reportStats(); err != nil {
			return nil, err
		}
	}
	this.Printer.Info("Finished", "%s (%s) in %.2fs", r.cfg.Module.Name, r.profile, time.Since(start).Seconds())
	return summary, nil
}

func (this *Builder) jobs() int {
	if this.Options.Jobs > 0 {
		return this.Options.Jobs
	}
	return executor.GuessParallelism()
}

// prepare does everything that can fail before any work is dispatched:
// locating the project, loading and validating the configuration and
// finding the toolchain.
func (this *Builder) prepare() (*run, error) {
	dir := this.Options.Dir
	if dir == "" {
		dir = "."
	}
	root, err := system.FindRoot(dir)
	if err != nil {
		return nil, err
	}
	cfg, unknown, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	for _, key := range unknown {
		this.Printer.Hint("Warning", "unknown key `%s` in %s", key, system.ConfigFile)
	}
	requested := this.Options.Profile
	if requested == "" {
		requested = config.ProfileNone
	}
	profile, err := cfg.SelectProfile(requested)
	if err != nil {
		return nil, &system.Error{Kind: system.KindConfig, Op: "cannot select a profile", Err: err}
	}
	if !cfg.HasProfile(profile) {
		this.Printer.Hint("Warning", "profile `%s` is not defined, using the base configuration", profile)
	}

	r := &run{Builder: this, cfg: cfg, profile: profile, buildID: uuid.NewString()}
	r.build = cfg.Build.Profile(profile)
	if r.build.Entry == "" {
		return nil, &system.Error{Kind: system.KindConfig, Op: "invalid configuration", Err: system.ErrNoEntryPoint}
	}
	r.paths = NewPaths(root, profile, cfg.Module.Name)

	r.toolchain = this.Toolchain
	if r.toolchain == nil {
		if r.toolchain, err = system.FindToolchain(); err != nil {
			return nil, err
		}
	}
	r.resolved, err = flags.Resolve(flags.Input{
		Flags:         r.build.Flags,
		Root:          root,
		Includes:      r.build.Includes,
		LibPaths:      r.build.LibPaths,
		Libraries:     r.build.Libraries,
		LdScripts:     r.build.LdScripts,
		Entry:         r.build.Entry,
		VersionScript: r.paths.Verfile,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Check != nil {
		if r.checker, err = check.NewChecker(r.toolchain.Objdump, root, cfg.Check.Profile(profile)); err != nil {
			return nil, err
		}
	}
	if err := system.MakeDirs(r.paths.Objects); err != nil {
		return nil, err
	}
	r.metrics = metrics.NewMetrics()
	return r, nil
}

func (this *run) resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(this.paths.Root, path)
	}
	return system.Canonicalize(path)
}

func (this *run) execute() (*Summary, error) {
	paths := this.paths
	summary := &Summary{BuildID: this.buildID, Profile: this.profile, Elf: paths.Elf, Nso: paths.Nso}

	configTime, _, err := system.Stat(paths.Config)
	if err != nil {
		return nil, err
	}
	checkpoint, noCheckpoint, err := system.Stat(paths.Checkpoint)
	if err != nil {
		return nil, err
	}
	changed := noCheckpoint || checkpoint.Before(configTime)
	if changed {
		this.Explanations.Record(paths.Config, "configuration changed since the last successful build")
		if err := this.createNpdm(paths, &this.cfg.Module); err != nil {
			return nil, err
		}
		if this.cfg.Clangd != nil {
			if err := writeClangd(paths, this.cfg.Clangd); err != nil {
				return nil, err
			}
		}
	}

	fingerprints, err := fingerprint.Load(paths.CompileCommands)
	if err != nil {
		if !errors.Is(err, fingerprint.ErrCorrupt) {
			return nil, err
		}
		this.Printer.Hint("Warning", "%v, every unit will be checked again", err)
	}
	_, noFingerprints, err := system.Stat(paths.CompileCommands)
	if err != nil {
		return nil, err
	}

	oracle := &staleness.Oracle{
		ObjectDir:              paths.Objects,
		CC:                     this.toolchain.CC,
		CXX:                    this.toolchain.CXX,
		Flags:                  this.resolved,
		CommandPossiblyChanged: changed,
		Fingerprints:           fingerprints,
		Explanations:           this.Explanations,
	}

	done := this.metrics.Phase("scan")
	var objects, current []string
	var units []*unit
	seen := make(map[string]bool)
	for _, dir := range this.build.Sources {
		dir, err := this.resolve(dir)
		if err != nil {
			return nil, err
		}
		err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || seen[path] {
				return nil
			}
			seen[path] = true
			res, err := oracle.Process(path)
			if err != nil {
				return err
			}
			switch res.Outcome {
			case staleness.NotSource:
				return nil
			case staleness.UpToDate:
				current = append(current, path)
			case staleness.NeedCompile:
				u, err := this.spawnCompile(path, res)
				if err != nil {
					return err
				}
				units = append(units, u)
			}
			objects = append(objects, res.Object)
			return nil
		})
		if err != nil {
			done()
			return nil, err
		}
	}
	done()

	var verfile *executor.Task[error]
	if _, missing, err := system.Stat(paths.Verfile); err != nil {
		return nil, err
	} else if changed || missing {
		entry := this.build.Entry
		verfile = executor.Execute(this.pool, func() error { return this.createVerfile(paths, entry) })
	}

	leftovers := len(fingerprints) > 0
	for source := range fingerprints {
		this.Explanations.Record(paths.Elf, "%s was removed", source)
	}
	needsLink, err := this.needsLink(len(units) > 0, leftovers, changed)
	if err != nil {
		return nil, err
	}
	needsNso, err := this.needsNso(needsLink)
	if err != nil {
		return nil, err
	}
	var refs *check.ReferenceSymbols
	if this.checker != nil && needsNso && len(this.checker.SymbolFiles) > 0 {
		refs = check.LoadReferenceSymbols(this.pool, this.checker.SymbolFiles)
	}

	done = this.metrics.Phase("compile")
	err = this.joinCompiles(units)
	done()

	// Saved even when the build fails, so an object compiled here is never
	// judged against the command of an older build.
	var background []*executor.Task[error]
	if len(units) > 0 || leftovers || noFingerprints {
		cmds := make([]*fingerprint.CompileCommand, 0, len(units)+len(current))
		for _, u := range units {
			if !u.failed {
				cmds = append(cmds, u.command)
			}
		}
		for _, source := range current {
			cmds = append(cmds, oracle.Command(source))
		}
		background = append(background, executor.Execute(this.pool, func() error {
			return fingerprint.Save(paths.CompileCommands, cmds)
		}))
	}
	if err != nil {
		return nil, fail(err, background)
	}
	summary.Compiled = len(units)
	summary.UpToDate = len(current)

	if verfile != nil {
		if err := verfile.Wait(); err != nil {
			return nil, fail(err, background)
		}
	}

	if needsLink {
		done = this.metrics.Phase("link")
		err = this.link(objects)
		done()
		if err != nil {
			return nil, fail(err, background)
		}
		summary.Linked = true
	}

	if needsNso {
		if this.checker != nil {
			done = this.metrics.Phase("check")
			err = this.check(refs)
			done()
			if err != nil {
				return nil, fail(err, background)
			}
		}
		done = this.metrics.Phase("convert")
		err = this.convert()
		done()
		if err != nil {
			return nil, fail(err, background)
		}
		summary.Converted = true
	}

	if changed {
		background = append(background, executor.Execute(this.pool, func() error {
			return system.Touch(paths.Checkpoint, configTime)
		}))
	}
	if err := settle(background); err != nil {
		return nil, err
	}
	return summary, nil
}

// settle waits for every background task and joins their errors.
func settle(tasks []*executor.Task[error]) error {
	var errs []error
	for _, t := range tasks {
		if err := t.Wait(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// fail lets the background tasks finish before a failed build returns.
func fail(err error, background []*executor.Task[error]) error {
	if bgErr := settle(background); bgErr != nil {
		return errors.Join(err, bgErr)
	}
	return err
}
func (this *run) spawnCompile(source string, res staleness.Result) (*unit, error) {
	this.Printer.Info("Compiling", "%s", this.paths.Rel(source))
	this.Printer.Verbose("Running", "%s", res.Command)
	task, err := executor.Spawn(this.pool, res.Command.Arguments)
	if err != nil {
		return nil, err
	}
	return &unit{source: source, object: res.Object, depfile: res.Depfile, command: res.Command, task: task}, nil
}

// joinCompiles waits for every compile. Failures are collected so all of
// them get reported, and their objects removed so they are rebuilt next
// time.
func (this *run) joinCompiles(units []*unit) error {
	var failed []*unit
	var results []executor.ProcessResult
	for _, u := range units {
		res := u.task.Wait()
		this.record("compile", u.object, res)
		if res.Success {
			if len(res.Stderr) > 0 {
				this.Printer.Hint("Warning", "%s", this.paths.Rel(u.source))
				this.Printer.Lines(res.Stderr)
			}
			continue
		}
		u.failed = true
		failed = append(failed, u)
		results = append(results, res)
	}
	if len(failed) == 0 {
		return nil
	}

	var lines []string
	sources := make([]string, 0, len(failed))
	for i, u := range failed {
		if err := system.RemoveFile(u.object); err != nil {
			return err
		}
		sources = append(sources, u.source)
		res := results[i]
		lines = append(lines, "error: "+u.source)
		lines = append(lines, res.Stderr...)
		if res.Err != nil {
			lines = append(lines, res.Err.Error())
		}
		if i < maxInline {
			this.Printer.Error("Error", "failed to compile %s", this.paths.Rel(u.source))
			this.Printer.Lines(res.Stderr)
		}
	}
	if n := len(failed) - maxInline; n > 0 {
		this.Printer.Error("Error", "... (%d more)", n)
	}
	if err := writeReport(this.paths.CompileErrors, lines); err != nil {
		return err
	}
	this.Printer.Hint("Hint", "all compiler errors written to %s", this.paths.CompileErrors)
	return &system.Error{Kind: system.KindCompile, Op: "cannot build " + this.cfg.Module.Name, Err: &CompileError{Failed: sources}}
}

func (this *run) needsLink(compiled, leftovers, changed bool) (bool, error) {
	if compiled || leftovers || changed {
		return true, nil
	}
	elfTime, missing, err := system.Stat(this.paths.Elf)
	if err != nil || missing {
		return missing, err
	}
	for _, script := range this.build.LdScripts {
		script, err := this.resolve(script)
		if err != nil {
			return false, err
		}
		t, _, err := system.Stat(script)
		if err != nil {
			return false, err
		}
		if t.After(elfTime) {
			this.Explanations.Record(this.paths.Elf, "linker script %s is newer", script)
			return true, nil
		}
	}
	return false, nil
}

// needsNso reports whether the NSO must be produced again. This also covers
// a previous run that linked but failed the checks.
func (this *run) needsNso(linking bool) (bool, error) {
	if linking {
		return true, nil
	}
	nsoTime, missing, err := system.Stat(this.paths.Nso)
	if err != nil || missing {
		return missing, err
	}
	elfTime, _, err := system.Stat(this.paths.Elf)
	if err != nil {
		return false, err
	}
	if elfTime.After(nsoTime) {
		return true, nil
	}
	if this.checker == nil {
		return false, nil
	}
	return check.SymsNewerThan(this.checker.SymbolFiles, nsoTime)
}

func (this *run) link(objects []string) error {
	paths := this.paths
	args := make([]string, 0, len(this.resolved.LD)+len(objects)+3)
	args = append(args, this.toolchain.CXX)
	args = append(args, this.resolved.LD...)
	args = append(args, objects...)
	args = append(args, "-o", paths.Elf)

	this.Printer.Info("Linking", "%s", paths.Rel(paths.Elf))
	this.Printer.Verbose("Running", "%s", executor.CommandString(args))
	res, err := executor.Run(this.pool, args)
	if err != nil {
		return err
	}
	this.record("link", paths.Elf, res)
	if res.Success {
		this.Printer.Lines(res.Stderr)
		return nil
	}
	if err := system.RemoveFile(paths.Elf); err != nil {
		return err
	}
	lines := res.Stderr
	if res.Err != nil {
		lines = append(lines, res.Err.Error())
	}
	if err := this.report("Error", "linker errors", lines, paths.LinkErrors); err != nil {
		return err
	}
	return &system.Error{Kind: system.KindLink, Op: "cannot link", Path: paths.Elf, Err: &LinkError{Elf: paths.Elf, ExitCode: res.ExitCode}}
}

type checkResult struct {
	items []string
	err   error
}

// check runs the symbol and instruction checks side by side.
func (this *run) check(refs *check.ReferenceSymbols) error {
	elf := this.paths.Elf
	this.Printer.Info("Checking", "%s", this.paths.Rel(elf))
	var symbols *executor.Task[checkResult]
	if refs != nil {
		symbols = executor.Execute(this.pool, func() checkResult {
			set, err := refs.Wait()
			if err != nil {
				return checkResult{err: err}
			}
			missing, err := this.checker.MissingSymbols(elf, set)
			return checkResult{missing, err}
		})
	}
	instructions := executor.Execute(this.pool, func() checkResult {
		found, err := this.checker.DisallowedInstructions(elf)
		return checkResult{found, err}
	})

	var ce CheckError
	if symbols != nil {
		res := symbols.Wait()
		if res.err != nil {
			instructions.Wait()
			return res.err
		}
		ce.MissingSymbols = res.items
	}
	res := instructions.Wait()
	if res.err != nil {
		return res.err
	}
	ce.DisallowedInstructions = res.items

	if len(ce.MissingSymbols) == 0 && len(ce.DisallowedInstructions) == 0 {
		return nil
	}
	if len(ce.MissingSymbols) > 0 {
		this.Printer.Error("Error", "%d symbol(s) not provided by the game:", len(ce.MissingSymbols))
		if err := this.report("Missing", "missing symbols", ce.MissingSymbols, this.paths.MissingSymbols); err != nil {
			return err
		}
	}
	if len(ce.DisallowedInstructions) > 0 {
		this.Printer.Error("Error", "%d disallowed instruction(s) found:", len(ce.DisallowedInstructions))
		if err := this.report("Disallowed", "disallowed instructions", ce.DisallowedInstructions, this.paths.DisallowedInstructions); err != nil {
			return err
		}
	}
	this.Printer.Hint("Hint", "add symbols to check.ignore or fix the code, then build again")
	return &system.Error{Kind: system.KindCheck, Op: "check failed for", Path: elf, Err: &ce}
}

func (this *run) convert() error {
	paths := this.paths
	this.Printer.Info("Converting", "%s", paths.Rel(paths.Nso))
	res, err := executor.Run(this.pool, []string{this.toolchain.Elf2Nso, paths.Elf, paths.Nso})
	if err != nil {
		return err
	}
	if !res.Success {
		this.Printer.Lines(res.Stderr)
		cause := res.Err
		if cause == nil {
			cause = fmt.Errorf("exit status %d", res.ExitCode)
		}
		return system.PathError(system.KindTool, "elf2nso failed to convert", paths.Elf, cause)
	}
	return nil
}

// record stores a finished subprocess in the build log and the metrics.
func (this *run) record(kind, output string, res executor.ProcessResult) {
	this.metrics.Unit(kind, res.Success, res.Duration())
	err := this.log.Record(buildlog.Entry{
		BuildID:     this.buildID,
		Output:      output,
		Kind:        kind,
		CommandHash: buildlog.HashCommand(res.Args),
		Start:       res.Start,
		End:         res.End,
		ExitCode:    res.ExitCode,
	})
	if err != nil {
		this.Printer.Hint("Warning", "%v", err)
	}
}

func (this *run) reportStats() error {
	out := this.Stdout
	if out == nil {
		return nil
	}
	this.metrics.Report(out)
	if err := this.metrics.WriteTextfile(this.paths.Metrics); err != nil {
		return system.PathError(system.KindFS, "cannot write", this.paths.Metrics, err)
	}
	slowest, err := this.log.Slowest(this.buildID, 5)
	if err != nil {
		return err
	}
	if len(slowest) > 0 {
		fmt.Fprintln(out, "\nslowest units:")
		for _, e := range slowest {
			fmt.Fprintf(out, "%8.1f ms  %-7s %s\n", float64(e.Duration().Microseconds())/1000, e.Kind, this.paths.Rel(e.Output))
		}
	}
	return nil
}
