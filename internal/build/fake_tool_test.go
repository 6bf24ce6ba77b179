package build

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"megaton-build-go/internal/system"
)

// The test binary doubles as the whole devkitA64 toolchain: it is symlinked
// under the tool names and, when run with fakeToolEnv set, behaves like the
// tool it was invoked as.
const (
	fakeToolEnv = "MEGATON_FAKE_TOOL"
	fakeLogEnv  = "MEGATON_FAKE_LOG"
)

func TestMain(m *testing.M) {
	if os.Getenv(fakeToolEnv) == "1" {
		os.Exit(fakeTool(filepath.Base(os.Args[0]), os.Args[1:]))
	}
	os.Setenv(fakeToolEnv, "1")
	os.Exit(m.Run())
}

// fakeBin links the test binary into a fresh directory under each of names.
func fakeBin(t *testing.T, names ...string) string {
	exe, err := os.Executable()
	require.NoError(t, err)
	bin := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.Symlink(exe, filepath.Join(bin, name)))
	}
	return bin
}

// fakeToolchain links the test binary under short tool names.
func fakeToolchain(t *testing.T) *system.Toolchain {
	bin := fakeBin(t, "cc", "c++", "objdump", "elf2nso", "npdmtool")
	return &system.Toolchain{
		CC:      filepath.Join(bin, "cc"),
		CXX:     filepath.Join(bin, "c++"),
		Objdump: filepath.Join(bin, "objdump"),
		Elf2Nso: filepath.Join(bin, "elf2nso"),
		Npdm:    filepath.Join(bin, "npdmtool"),
	}
}

func fakeTool(name string, args []string) int {
	switch strings.TrimPrefix(name, "aarch64-none-elf-") {
	case "cc", "c++", "gcc", "g++":
		if slices.Contains(args, "-c") {
			return fakeCompile(args)
		}
		return fakeLink(args)
	case "objdump":
		return fakeObjdump(args)
	case "elf2nso":
		logCall("elf2nso")
		return copyFile(args[0], args[1])
	case "npdmtool":
		logCall("npdmtool")
		return copyFile(args[0], args[1])
	}
	fmt.Fprintf(os.Stderr, "%s: unknown tool\n", name)
	return 127
}

func logCall(line string) {
	path := os.Getenv(fakeLogEnv)
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	f.WriteString(line + "\n")
}

func argAfter(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// fakeCompile "compiles" by copying the source and the headers it includes
// into the object. Outputs get the newest input mtime plus one second so
// tests control time entirely.
func fakeCompile(args []string) int {
	src := args[len(args)-1]
	obj := argAfter(args, "-o")
	dep := argAfter(args, "-MF")
	logCall("compile " + filepath.Base(src))

	content, err := os.ReadFile(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", src, err)
		return 1
	}
	if strings.Contains(string(content), "#error") {
		fmt.Fprintf(os.Stderr, "%s:1:2: error: #error\n", src)
		return 1
	}
	if slices.Contains(args, "-DWARN") {
		fmt.Fprintf(os.Stderr, "%s:1:1: warning: something\n", src)
	}

	inputs := []string{src}
	out := append([]byte{}, content...)
	sc := bufio.NewScanner(strings.NewReader(string(content)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "#include \"") {
			continue
		}
		header := filepath.Join(filepath.Dir(src), strings.Trim(strings.TrimPrefix(line, "#include"), " \""))
		data, err := os.ReadFile(header)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: fatal error: %v\n", src, err)
			return 1
		}
		out = append(out, data...)
		inputs = append(inputs, header)
	}

	var newest time.Time
	for _, in := range inputs {
		if info, err := os.Stat(in); err == nil && info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	var d strings.Builder
	d.WriteString(obj + ": " + strings.Join(inputs, " ") + "\n")
	for _, h := range inputs[1:] {
		d.WriteString("\n" + h + ":\n")
	}
	if os.WriteFile(obj, out, 0o644) != nil || os.WriteFile(dep, []byte(d.String()), 0o644) != nil {
		return 1
	}
	stamp := newest.Add(time.Second)
	os.Chtimes(obj, stamp, stamp)
	os.Chtimes(dep, stamp, stamp)
	return 0
}

func fakeLink(args []string) int {
	logCall("link")
	elf := argAfter(args, "-o")
	var out []byte
	for _, a := range args {
		if script, ok := strings.CutPrefix(a, "-Wl,--version-script="); ok {
			if _, err := os.Stat(script); err != nil {
				fmt.Fprintf(os.Stderr, "ld: cannot open version script %s\n", script)
				return 1
			}
		}
		if !strings.HasSuffix(a, ".o") {
			continue
		}
		data, err := os.ReadFile(a)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ld: cannot find %s\n", a)
			return 1
		}
		if strings.Contains(string(data), "LINKFAIL") {
			fmt.Fprintf(os.Stderr, "ld: %s: undefined reference to `nothing'\n", a)
			return 1
		}
		out = append(out, data...)
	}
	if err := os.WriteFile(elf, out, 0o644); err != nil {
		return 1
	}
	return 0
}

// fakeObjdump prints an import for every "IMPORT name" line of the ELF and
// a hlt instruction when the ELF contains HLT.
func fakeObjdump(args []string) int {
	logCall("objdump " + args[0])
	data, err := os.ReadFile(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "objdump: %v\n", err)
		return 1
	}
	fmt.Printf("\n%s:     file format elf64-littleaarch64\n\n", filepath.Base(args[1]))
	switch args[0] {
	case "-T":
		fmt.Println("DYNAMIC SYMBOL TABLE:")
		for _, line := range strings.Split(string(data), "\n") {
			if name, ok := strings.CutPrefix(strings.TrimSpace(line), "IMPORT "); ok {
				fmt.Print(symbolLine("*UND*", name))
			}
		}
		fmt.Print(symbolLine(".text", "entry"))
	case "-d":
		fmt.Print("Disassembly of section .text:\n\n0000000000001000 <entry>:\n")
		fmt.Print("    1000:\td503201f \tnop\n")
		if strings.Contains(string(data), "HLT") {
			fmt.Print("    1004:\td4400000 \thlt\t#0x0\n")
		}
		fmt.Print("    1008:\td65f03c0 \tret\n")
	}
	return 0
}

func symbolLine(section, name string) string {
	return fmt.Sprintf("0000000000000000      DF %s\t0000000000000000 %s\n", section, name)
}

func copyFile(from, to string) int {
	data, err := os.ReadFile(from)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if err := os.WriteFile(to, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}
