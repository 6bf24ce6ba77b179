package depfile

import (
	"fmt"
	"os"
	"slices"
	"time"
)

// UpToDate reports whether the depfile at path describes object and every
// prerequisite it lists exists and is not newer than t. When it is not,
// reason says why. A missing, unreadable or malformed depfile is never up to
// date.
func UpToDate(path, object string, t time.Time) (ok bool, reason string) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Sprintf("depfile %s unreadable: %v", path, err)
	}
	p := NewDepfileParser()
	if err := p.Parse(string(content)); err != nil {
		return false, fmt.Sprintf("depfile %s: %v", path, err)
	}
	if !slices.Contains(p.Outs(), object) {
		return false, fmt.Sprintf("depfile %s does not describe %s", path, object)
	}
	for _, dep := range p.Ins() {
		info, err := os.Stat(dep)
		if err != nil {
			return false, fmt.Sprintf("dependency %s: %v", dep, err)
		}
		if info.ModTime().After(t) {
			return false, fmt.Sprintf("dependency %s is newer than the object", dep)
		}
	}
	return true, ""
}
