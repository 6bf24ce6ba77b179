package fingerprint

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sort"

	"megaton-build-go/internal/system"
)

var ErrCorrupt = errors.New("fingerprint file is corrupt")

// Set maps a source path to the command last used to compile it. Entries
// are taken out as sources are processed; whatever is left belongs to
// sources that no longer exist.
type Set map[string]*CompileCommand

// Load reads the fingerprint file at path. A missing file is an empty set.
// A malformed file is an empty set plus an error wrapping ErrCorrupt.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Set{}, nil
		}
		return nil, system.PathError(system.KindFS, "cannot read", path, err)
	}
	var cmds []*CompileCommand
	if err := json.Unmarshal(data, &cmds); err != nil {
		return Set{}, system.PathError(system.KindFS, "cannot parse", path, errors.Join(ErrCorrupt, err))
	}
	s := make(Set, len(cmds))
	for _, c := range cmds {
		if c != nil && c.File != "" {
			s[c.File] = c
		}
	}
	return s, nil
}

// Take removes and returns the entry for source, or nil.
func (s Set) Take(source string) *CompileCommand {
	c, ok := s[source]
	if !ok {
		return nil
	}
	delete(s, source)
	return c
}

// Save replaces the file at path with cmds, ordered by source path.
func Save(path string, cmds []*CompileCommand) error {
	sorted := append([]*CompileCommand(nil), cmds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].File < sorted[j].File })
	if sorted == nil {
		sorted = []*CompileCommand{}
	}
	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return system.PathError(system.KindInternal, "cannot serialize", path, err)
	}
	return system.WriteFile(path, append(data, '\n'))
}
