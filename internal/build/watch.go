package build

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"
	"github.com/tevino/abool/v2"

	"megaton-build-go/internal/config"
	"megaton-build-go/internal/system"
)

// DefaultWatchInterval is how often pending changes are picked up.
const DefaultWatchInterval = 500 * time.Millisecond

// Watcher rebuilds the project whenever its configuration or one of its
// source or include directories changes.
type Watcher struct {
	Builder  *Builder
	Interval time.Duration

	root_    string
	dirty_   *abool.AtomicBool
	running_ *abool.AtomicBool
	build_   func() error
}

func NewWatcher(b *Builder, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	ret := &Watcher{
		Builder:  b,
		Interval: interval,
		dirty_:   abool.NewBool(true),
		running_: abool.NewBool(false),
	}
	ret.build_ = func() error {
		_, err := b.Run()
		return err
	}
	return ret
}

// Run watches until ctx is cancelled. A first build starts on the first
// tick. Build errors are printed and do not stop the watch.
func (this *Watcher) Run(ctx context.Context) error {
	dir := this.Builder.Options.Dir
	if dir == "" {
		dir = "."
	}
	root, err := system.FindRoot(dir)
	if err != nil {
		return err
	}
	this.root_ = root
	cfg, _, err := config.Load(root)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return system.Errorf(system.KindFS, "cannot start file watcher: %v", err)
	}
	defer w.Close()
	if err := w.Add(root); err != nil {
		return system.PathError(system.KindFS, "cannot watch", root, err)
	}
	for _, dir := range watchedDirs(&cfg.Build) {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		this.addRecursive(w, dir)
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return system.Errorf(system.KindInternal, "cannot start scheduler: %v", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(this.Interval),
		gocron.NewTask(this.tick),
		gocron.WithName("megaton-watch"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		s.Shutdown()
		return system.Errorf(system.KindInternal, "cannot schedule builds: %v", err)
	}
	s.Start()
	defer s.Shutdown()
	this.Builder.Printer.Info("Watching", "%s", root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if this.ignored(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					this.addRecursive(w, ev.Name)
				}
			}
			this.mark(ev.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			this.Builder.Printer.Error("Error", "watch: %v", err)
		}
	}
}

// watchedDirs lists the source and include directories of the base
// configuration and of every profile.
func watchedDirs(b *config.Build) []string {
	dirs := append(append([]string{}, b.Sources...), b.Includes...)
	for _, p := range b.Profiles {
		if p != nil {
			dirs = append(dirs, p.Sources...)
			dirs = append(dirs, p.Includes...)
		}
	}
	return dirs
}

func (this *Watcher) addRecursive(w *fsnotify.Watcher, dir string) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if err := w.Add(path); err != nil {
			this.Builder.Printer.Hint("Warning", "cannot watch %s: %v", path, err)
		}
		return nil
	})
}

// ignored reports whether path is build output or an editor temporary.
func (this *Watcher) ignored(path string) bool {
	if this.root_ != "" {
		target := filepath.Join(this.root_, "target")
		if path == target || strings.HasPrefix(path, target+string(filepath.Separator)) {
			return true
		}
	}
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp")
}

// mark flags a pending build.
func (this *Watcher) mark(path string) {
	if !this.ignored(path) {
		this.dirty_.Set()
	}
}

// tick runs one build if something changed and no build is in progress.
func (this *Watcher) tick() {
	if !this.running_.SetToIf(false, true) {
		return
	}
	defer this.running_.UnSet()
	if !this.dirty_.SetToIf(true, false) {
		return
	}
	if err := this.build_(); err != nil {
		this.Builder.Printer.Error("Error", "%v", err)
	}
}
