package system

import (
	"os"
	"os/exec"
	"path/filepath"
)

// Toolchain holds the resolved paths of every external program a build may
// invoke.
type Toolchain struct {
	CC      string
	CXX     string
	Objdump string
	Elf2Nso string
	Npdm    string
}

const (
	toolCC      = "aarch64-none-elf-gcc"
	toolCXX     = "aarch64-none-elf-g++"
	toolObjdump = "aarch64-none-elf-objdump"
	toolElf2Nso = "elf2nso"
	toolNpdm    = "npdmtool"
)

// FindTool looks name up on PATH first, then under $DEVKITPRO/<subdir>.
func FindTool(name, subdir string) (string, error) {
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	dkp := os.Getenv("DEVKITPRO")
	if dkp == "" {
		return "", &Error{Kind: KindEnv, Op: "environment variable DEVKITPRO is not set (needed to find " + name + ")"}
	}
	p := filepath.Join(dkp, subdir, name)
	if info, err := os.Stat(p); err != nil || info.IsDir() {
		return "", PathError(KindTool, "required tool "+name+" not found at", p, err)
	}
	return p, nil
}

// FindToolchain resolves the whole devkitA64 toolchain.
func FindToolchain() (*Toolchain, error) {
	tc := &Toolchain{}
	for _, t := range []struct {
		dst    *string
		name   string
		subdir string
	}{
		{&tc.CC, toolCC, "devkitA64/bin"},
		{&tc.CXX, toolCXX, "devkitA64/bin"},
		{&tc.Objdump, toolObjdump, "devkitA64/bin"},
		{&tc.Elf2Nso, toolElf2Nso, "tools/bin"},
		{&tc.Npdm, toolNpdm, "tools/bin"},
	} {
		p, err := FindTool(t.name, t.subdir)
		if err != nil {
			return nil, err
		}
		*t.dst = p
	}
	return tc, nil
}
