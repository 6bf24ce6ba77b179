package executor

import (
	"bufio"
	"errors"
	"io"
	"os/exec"
	"time"

	"github.com/kballard/go-shellquote"

	"megaton-build-go/internal/system"
)

// ProcessResult is what a finished subprocess leaves behind.
type ProcessResult struct {
	Args     []string
	Success  bool
	ExitCode int
	Stderr   []string
	Err      error
	Start    time.Time
	End      time.Time
}

func (r ProcessResult) Duration() time.Duration { return r.End.Sub(r.Start) }

// CommandString renders args for display.
func CommandString(args []string) string {
	return shellquote.Join(args...)
}

// Spawn starts args[0] right away, with stdout discarded and stderr
// captured. A failure to start is returned immediately. Waiting for the exit
// and draining stderr happen on the pool.
func Spawn(p *Pool, args []string) (*Task[ProcessResult], error) {
	if len(args) == 0 {
		return nil, system.Errorf(system.KindInternal, "empty command line")
	}
	p.slots_ <- struct{}{}
	release := func() { <-p.slots_ }

	cmd := exec.Command(args[0], args[1:]...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		release()
		return nil, system.PathError(system.KindSpawn, "cannot spawn", args[0], err)
	}
	start := time.Now()
	if err := cmd.Start(); err != nil {
		release()
		return nil, system.PathError(system.KindSpawn, "cannot spawn", args[0], err)
	}
	return Execute(p, func() ProcessResult {
		defer release()
		r := ProcessResult{Args: args, Start: start}
		r.Stderr = readLines(stderr)
		err := cmd.Wait()
		r.End = time.Now()
		var exitErr *exec.ExitError
		switch {
		case err == nil:
			r.Success = true
		case errors.As(err, &exitErr):
			r.ExitCode = exitErr.ExitCode()
		default:
			r.ExitCode = -1
			r.Err = system.PathError(system.KindSpawn, "cannot wait for", args[0], err)
		}
		return r
	}), nil
}

// Run spawns args and waits for it.
func Run(p *Pool, args []string) (ProcessResult, error) {
	t, err := Spawn(p, args)
	if err != nil {
		return ProcessResult{}, err
	}
	return t.Wait(), nil
}

func readLines(r io.Reader) []string {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	// keep draining so the child never blocks on a full pipe
	io.Copy(io.Discard, r)
	return lines
}
