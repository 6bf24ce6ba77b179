package fingerprint

import (
	"slices"

	"github.com/kballard/go-shellquote"
)

// CompileCommand is the exact invocation used to produce one object file,
// serialized as a clang JSON compilation database entry.
type CompileCommand struct {
	Directory string   `json:"directory"`
	Arguments []string `json:"arguments"`
	File      string   `json:"file"`
	Output    string   `json:"output"`
}

// Equal compares the tokens, the source and the output. Directory is not
// part of the identity.
func (c *CompileCommand) Equal(o *CompileCommand) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.File == o.File && c.Output == o.Output && slices.Equal(c.Arguments, o.Arguments)
}

// String renders the command the way a shell would need it.
func (c *CompileCommand) String() string {
	return shellquote.Join(c.Arguments...)
}
