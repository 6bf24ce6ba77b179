package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"git.sr.ht/~sircmpwn/getopt"

	"megaton-build-go/internal/build"
	"megaton-build-go/internal/config"
	"megaton-build-go/internal/executor"
	"megaton-build-go/internal/status"
)

const (
	cmdBuild = "build"
	cmdClean = "clean"
	cmdWatch = "watch"
)

// Options are the parsed command line.
type Options struct {
	WorkingDir string
	Profile    string
	Jobs       int
	Verbosity  status.Verbosity
	Explain    bool
	Stats      bool
	Command    string
}

func NewOptions() *Options {
	return &Options{Profile: config.ProfileNone, Verbosity: status.NORMAL, Command: cmdBuild}
}

// / Parse argv for command-line options.
// / Returns an exit code, or -1 if megaton should continue.
func ReadFlags(args []string, options *Options, stdout, stderr io.Writer) int {
	opts, optind, err := getopt.Getopts(args, "C:p:j:vqd:hV")
	if err != nil {
		fmt.Fprintf(stderr, "megaton: %v\n", err)
		Usage(stderr)
		return 1
	}
	for _, opt := range opts {
		switch opt.Option {
		case 'C':
			options.WorkingDir = opt.Value
		case 'p':
			options.Profile = opt.Value
		case 'j':
			value, err := strconv.Atoi(opt.Value)
			if err != nil || value < 0 {
				fmt.Fprintf(stderr, "megaton: invalid -j parameter %q\n", opt.Value)
				return 1
			}
			// 0 picks a value from the CPU count
			options.Jobs = value
		case 'v':
			options.Verbosity = status.VERBOSE
		case 'q':
			options.Verbosity = status.NO_STATUS_UPDATE
		case 'd':
			if code := DebugEnable(opt.Value, options, stdout, stderr); code >= 0 {
				return code
			}
		case 'V':
			fmt.Fprintln(stdout, kMegatonVersion)
			return 0
		default: // case 'h':
			Usage(stdout)
			return 0
		}
	}

	rest := args[optind:]
	if len(rest) > 1 {
		fmt.Fprintf(stderr, "megaton: too many arguments: %v\n", rest[1:])
		return 1
	}
	if len(rest) == 1 {
		switch rest[0] {
		case cmdBuild, cmdClean, cmdWatch:
			options.Command = rest[0]
		default:
			if suggestion := SpellcheckString(rest[0], cmdBuild, cmdClean, cmdWatch); suggestion != "" {
				fmt.Fprintf(stderr, "megaton: unknown command '%s', did you mean '%s'?\n", rest[0], suggestion)
			} else {
				fmt.Fprintf(stderr, "megaton: unknown command '%s'\n", rest[0])
			}
			return 1
		}
	}
	return -1
}

// / Enable a debugging mode. Returns an exit code, or -1 to continue.
func DebugEnable(name string, options *Options, stdout, stderr io.Writer) int {
	switch name {
	case "list":
		fmt.Fprint(stdout, "debugging modes:\n"+
			"  stats        print timing info, write metrics.prom\n"+
			"  explain      explain what caused a unit to be rebuilt\n"+
			"multiple modes can be enabled via -d FOO -d BAR\n")
		return 0
	case "stats":
		options.Stats = true
	case "explain":
		options.Explain = true
	default:
		if suggestion := SpellcheckString(name, "stats", "explain"); suggestion != "" {
			fmt.Fprintf(stderr, "megaton: unknown debug setting '%s', did you mean '%s'?\n", name, suggestion)
		} else {
			fmt.Fprintf(stderr, "megaton: unknown debug setting '%s'\n", name)
		}
		return 1
	}
	return -1
}

// / Print usage information.
func Usage(w io.Writer) {
	fmt.Fprintf(w,
		"usage: megaton [options] [build|clean|watch]\n"+
			"\n"+
			"if the command is unspecified, builds the project.\n"+
			"\n"+
			"options:\n"+
			"  -V       print megaton version (\"%s\")\n"+
			"  -v       show all command lines while building\n"+
			"  -q       don't show progress status, just errors and hints\n"+
			"\n"+
			"  -C DIR   start looking for Megaton.toml in DIR\n"+
			"  -p NAME  build profile NAME [default=module.default-profile or none]\n"+
			"  -j N     run N jobs in parallel [default=%d on this system]\n"+
			"\n"+
			"  -d MODE  enable debugging (use '-d list' to list modes)\n",
		kMegatonVersion, executor.GuessParallelism())
}

func run(args []string, stdout, stderr *os.File) int {
	options := NewOptions()
	if code := ReadFlags(args, options, stdout, stderr); code >= 0 {
		return code
	}
	colorOutput := status.DetectColor(stdout)
	printer := status.NewLinePrinter(status.Config{Verbosity: options.Verbosity, Color: colorOutput}, stdout, stderr)

	var err error
	switch options.Command {
	case cmdClean:
		err = build.Clean(options.WorkingDir, options.Profile, printer)
	default:
		b := &build.Builder{
			Printer: printer,
			Options: build.Options{
				Dir:     options.WorkingDir,
				Profile: options.Profile,
				Jobs:    options.Jobs,
				Stats:   options.Stats,
			},
			Stdout: stdout,
		}
		if options.Explain {
			b.Explanations = status.NewExplanations(stderr, status.DetectColor(stderr))
		}
		if options.Command == cmdWatch {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			err = build.NewWatcher(b, build.DefaultWatchInterval).Run(ctx)
			stop()
		} else {
			_, err = b.Run()
		}
	}
	if err != nil {
		printer.Error("Fatal", "%v", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}
