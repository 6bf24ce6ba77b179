package fingerprint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cmd(file string, args ...string) *CompileCommand {
	return &CompileCommand{Directory: "/", Arguments: args, File: file, Output: file + ".o"}
}

func TestEqual(t *testing.T) {
	a := cmd("a.c", "gcc", "-O2")
	assert.True(t, a.Equal(cmd("a.c", "gcc", "-O2")))
	assert.False(t, a.Equal(cmd("a.c", "gcc", "-O3")))
	assert.False(t, a.Equal(cmd("b.c", "gcc", "-O2")))

	other := cmd("a.c", "gcc", "-O2")
	other.Directory = "/elsewhere"
	assert.True(t, a.Equal(other))
	assert.False(t, a.Equal(nil))
}

func TestString(t *testing.T) {
	assert.Equal(t, `gcc '-DNAME=a b' -c a.c`, cmd("a.c", "gcc", "-DNAME=a b", "-c", "a.c").String())
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compile_commands.json")
	require.NoError(t, Save(path, []*CompileCommand{cmd("b.c", "gcc"), cmd("a.c", "gcc")}))

	s, err := Load(path)
	require.NoError(t, err)
	require.Len(t, s, 2)
	assert.True(t, s["a.c"].Equal(cmd("a.c", "gcc")))

	assert.NotNil(t, s.Take("a.c"))
	assert.Nil(t, s.Take("a.c"))
	assert.Len(t, s, 1)
}

func TestSaveEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compile_commands.json")
	require.NoError(t, Save(path, nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, s)

	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	s, err = Load(path)
	assert.True(t, errors.Is(err, ErrCorrupt))
	assert.NotNil(t, s)
	assert.Empty(t, s)
}
