package flags

import (
	"path/filepath"

	"megaton-build-go/internal/system"
)

var (
	DefaultCommon = []string{
		"-march=armv8-a+crc+crypto",
		"-mtune=cortex-a57",
		"-mtp=soft",
		"-fPIC",
		"-fvisibility=hidden",
	}
	DefaultC = []string{
		"-g",
		"-Wall",
		"-Werror",
		"-fdiagnostics-color=always",
		"-ffunction-sections",
		"-fdata-sections",
		"-O3",
	}
	DefaultCXX = []string{
		"-fno-rtti",
		"-fno-exceptions",
		"-fno-asynchronous-unwind-tables",
		"-fno-unwind-tables",
		"-fpermissive",
		"-std=c++20",
	}
	DefaultAS = []string{
		"-g",
	}
	DefaultLD = []string{
		"-g",
		"-nostartfiles",
		"-nodefaultlibs",
		"-Wl,--shared",
		"-Wl,--export-dynamic",
		"-Wl,-z,nodynamic-undefined-weak",
		"-Wl,--gc-sections",
		"-Wl,--build-id=sha1",
		"-Wl,--nx-module-name",
		"-Wl,--exclude-libs=ALL",
	}
)

// Input is everything the resolver needs from the merged configuration.
// Relative paths are resolved against Root.
type Input struct {
	Flags         Set
	Root          string
	Includes      []string
	LibPaths      []string
	Libraries     []string
	LdScripts     []string
	Entry         string
	VersionScript string
}

// Resolved holds the final flag vectors handed to the compiler and linker.
type Resolved struct {
	C   []string
	CXX []string
	AS  []string
	LD  []string
}

// Resolve computes the flag vectors of every category. The chain is
// common -> C -> C++ -> assembler, and common -> linker.
func Resolve(in Input) (*Resolved, error) {
	common := resolve(nil, DefaultCommon, in.Flags.Common)
	r := &Resolved{}
	r.C = resolve(common, DefaultC, in.Flags.C)
	r.CXX = resolve(r.C, DefaultCXX, in.Flags.CXX)
	r.AS = resolve(r.CXX, DefaultAS, in.Flags.AS)
	r.LD = resolve(common, DefaultLD, in.Flags.LD)

	for _, inc := range in.Includes {
		p, err := canonical(in.Root, inc)
		if err != nil {
			return nil, err
		}
		r.C = append(r.C, "-I"+p)
		r.CXX = append(r.CXX, "-I"+p)
	}

	r.LD = append(r.LD, "-Wl,-init="+in.Entry, "-Wl,--version-script="+in.VersionScript)
	for _, lp := range in.LibPaths {
		p, err := canonical(in.Root, lp)
		if err != nil {
			return nil, err
		}
		r.LD = append(r.LD, "-L"+p)
	}
	for _, lib := range in.Libraries {
		r.LD = append(r.LD, "-l"+lib)
	}
	for _, script := range in.LdScripts {
		p, err := canonical(in.Root, script)
		if err != nil {
			return nil, err
		}
		r.LD = append(r.LD, "-Wl,-T,"+p)
	}
	return r, nil
}

// resolve applies one category's list on top of its parent vector. An absent
// list inherits the parent plus the defaults. A list with the marker
// inherits the parent and expands the marker in place. Any other list is
// taken literally, without the parent.
func resolve(parent, defaults []string, l List) []string {
	if l == nil {
		out := append([]string{}, parent...)
		return append(out, defaults...)
	}
	if !l.HasExpand() {
		out := make([]string, 0, len(l))
		for _, i := range l {
			out = append(out, i.value)
		}
		return out
	}
	out := append([]string{}, parent...)
	for _, i := range l {
		if i.expand {
			out = append(out, defaults...)
		} else {
			out = append(out, i.value)
		}
	}
	return out
}

func canonical(root, path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	return system.Canonicalize(path)
}
