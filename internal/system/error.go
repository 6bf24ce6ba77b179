package system

import (
	"errors"
	"fmt"
)

// Kind classifies an Error so callers can decide how to report it.
type Kind uint8

const (
	KindInternal Kind = iota
	KindTool
	KindEnv
	KindConfig
	KindFS
	KindSpawn
	KindCompile
	KindLink
	KindCheck
)

func (k Kind) String() string {
	switch k {
	case KindTool:
		return "tool"
	case KindEnv:
		return "env"
	case KindConfig:
		return "config"
	case KindFS:
		return "fs"
	case KindSpawn:
		return "spawn"
	case KindCompile:
		return "compile"
	case KindLink:
		return "link"
	case KindCheck:
		return "check"
	}
	return "internal"
}

var (
	ErrNotProject   = errors.New("cannot find Megaton.toml in this directory or any parent")
	ErrNoProfile    = errors.New("no profile specified and module.default-profile is empty")
	ErrNoEntryPoint = errors.New("no entry point specified: set build.entry in Megaton.toml")
)

// Error is the classified error returned by every fallible operation of the
// build. Op describes what was attempted, Path the file involved (if any).
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " `" + e.Path + "`"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an Error of the given kind from a format string.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: fmt.Sprintf(format, args...)}
}

// PathError wraps err with an operation and the file it was applied to.
func PathError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
