package status

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

type Verbosity int8

const (
	QUIET            Verbosity = iota // No output -- used when testing.
	NO_STATUS_UPDATE                  // just regular output but suppress status update
	NORMAL                            // regular output and status update
	VERBOSE
)

// TagWidth is the column the status tags are right-aligned to.
const TagWidth = 12

// Config is built once at startup and never changes afterwards.
type Config struct {
	Verbosity Verbosity
	Color     bool
}

// DetectColor reports whether w should receive ANSI color sequences.
func DetectColor(w *os.File) bool {
	term := os.Getenv("TERM")
	smart := isatty.IsTerminal(w.Fd()) && term != "" && term != "dumb"
	if !smart {
		force := os.Getenv("CLICOLOR_FORCE")
		return force != "" && force != "0"
	}
	return true
}

// LinePrinter prints tagged status lines. Safe for concurrent use.
type LinePrinter struct {
	config_ Config
	out_    io.Writer
	err_    io.Writer
	mu_     sync.Mutex

	info_  *color.Color
	hint_  *color.Color
	error_ *color.Color
}

func NewLinePrinter(config Config, out, errOut io.Writer) *LinePrinter {
	ret := LinePrinter{config_: config, out_: out, err_: errOut}
	ret.info_ = color.New(color.FgGreen, color.Bold)
	ret.hint_ = color.New(color.FgYellow, color.Bold)
	ret.error_ = color.New(color.FgRed, color.Bold)
	for _, c := range []*color.Color{ret.info_, ret.hint_, ret.error_} {
		if config.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return &ret
}

func (this *LinePrinter) IsVerbose() bool { return this.config_.Verbosity >= VERBOSE }

func (this *LinePrinter) print(w io.Writer, c *color.Color, tag, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	padded := fmt.Sprintf("%*s", TagWidth, tag)
	this.mu_.Lock()
	defer this.mu_.Unlock()
	fmt.Fprintf(w, "%s %s\n", c.Sprint(padded), msg)
}

// Info prints a progress line such as "   Compiling src/main.cpp".
func (this *LinePrinter) Info(tag, format string, args ...interface{}) {
	if this.config_.Verbosity < NORMAL {
		return
	}
	this.print(this.out_, this.info_, tag, format, args...)
}

// Hint prints a yellow line; shown unless the printer is QUIET.
func (this *LinePrinter) Hint(tag, format string, args ...interface{}) {
	if this.config_.Verbosity < NO_STATUS_UPDATE {
		return
	}
	this.print(this.out_, this.hint_, tag, format, args...)
}

// Verbose prints only with -v.
func (this *LinePrinter) Verbose(tag, format string, args ...interface{}) {
	if !this.IsVerbose() {
		return
	}
	this.print(this.out_, this.hint_, tag, format, args...)
}

// Error always prints, on the error stream.
func (this *LinePrinter) Error(tag, format string, args ...interface{}) {
	this.print(this.err_, this.error_, tag, format, args...)
}

// Lines prints raw lines (compiler diagnostics) on the error stream.
func (this *LinePrinter) Lines(lines []string) {
	if len(lines) == 0 {
		return
	}
	this.mu_.Lock()
	defer this.mu_.Unlock()
	fmt.Fprintln(this.err_, strings.Join(lines, "\n"))
}
