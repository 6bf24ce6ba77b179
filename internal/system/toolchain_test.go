package system

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executable(t *testing.T, path string) string {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	return path
}

func TestFindTool(t *testing.T) {
	onPath := t.TempDir()
	dkp := t.TempDir()
	executable(t, filepath.Join(onPath, "elf2nso"))
	executable(t, filepath.Join(dkp, "tools/bin", "elf2nso"))
	executable(t, filepath.Join(dkp, "tools/bin", "npdmtool"))
	require.NoError(t, os.MkdirAll(filepath.Join(dkp, "tools/bin", "somedir"), 0o755))

	tests := []struct {
		name      string
		tool      string
		devkitpro string
		want      string
		kind      Kind
	}{
		{"path wins", "elf2nso", dkp, filepath.Join(onPath, "elf2nso"), 0},
		{"devkitpro fallback", "npdmtool", dkp, filepath.Join(dkp, "tools/bin", "npdmtool"), 0},
		{"no devkitpro", "npdmtool", "", "", KindEnv},
		{"missing tool", "nxlink", dkp, "", KindTool},
		{"directory is not a tool", "somedir", dkp, "", KindTool},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PATH", onPath)
			t.Setenv("DEVKITPRO", tt.devkitpro)
			got, err := FindTool(tt.tool, "tools/bin")
			if tt.want == "" {
				require.Error(t, err)
				assert.Equal(t, tt.kind, KindOf(err))
				assert.Contains(t, err.Error(), tt.tool)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindToolchain(t *testing.T) {
	onPath := t.TempDir()
	dkp := t.TempDir()
	executable(t, filepath.Join(onPath, toolCC))
	executable(t, filepath.Join(dkp, "devkitA64/bin", toolCXX))
	executable(t, filepath.Join(dkp, "devkitA64/bin", toolObjdump))
	executable(t, filepath.Join(dkp, "tools/bin", toolElf2Nso))
	executable(t, filepath.Join(dkp, "tools/bin", toolNpdm))
	t.Setenv("PATH", onPath)
	t.Setenv("DEVKITPRO", dkp)

	tc, err := FindToolchain()
	require.NoError(t, err)
	assert.Equal(t, &Toolchain{
		CC:      filepath.Join(onPath, toolCC),
		CXX:     filepath.Join(dkp, "devkitA64/bin", toolCXX),
		Objdump: filepath.Join(dkp, "devkitA64/bin", toolObjdump),
		Elf2Nso: filepath.Join(dkp, "tools/bin", toolElf2Nso),
		Npdm:    filepath.Join(dkp, "tools/bin", toolNpdm),
	}, tc)

	require.NoError(t, os.Remove(filepath.Join(dkp, "tools/bin", toolNpdm)))
	_, err = FindToolchain()
	assert.Equal(t, KindTool, KindOf(err))
	assert.Contains(t, err.Error(), toolNpdm)

	t.Setenv("DEVKITPRO", "")
	_, err = FindToolchain()
	assert.Equal(t, KindEnv, KindOf(err))
}
