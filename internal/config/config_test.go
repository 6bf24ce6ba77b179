package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"megaton-build-go/internal/flags"
	"megaton-build-go/internal/system"
)

const sample = `
[module]
name = "example"
title-id = 0x0100000000001000

[build]
entry = "main"
sources = ["src"]
includes = ["include"]
ldscripts = ["link.ld"]

[build.flags]
c = ["<default>", "-DBASE"]

[build.profiles.debug]
sources = ["debug"]
flags.c = ["-DDEBUG"]
flags.ld = ["-Wl,-Map=out.map"]

[check]
symbols = ["syms/main.syms"]
disallowed-instructions = ["^svc"]

[check.profiles.debug]
ignore = ["__debug_hook"]

[clangd]
output = ".clangd"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, system.ConfigFile), []byte(content), 0o644))
	return root
}

func TestLoad(t *testing.T) {
	cfg, unknown, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Empty(t, unknown)
	assert.Equal(t, "example", cfg.Module.Name)
	assert.Equal(t, uint64(0x0100000000001000), cfg.Module.TitleID)
	assert.Nil(t, cfg.Module.DefaultProfile)
	assert.Equal(t, []string{"src"}, cfg.Build.Sources)
	require.NotNil(t, cfg.Check)
	require.NotNil(t, cfg.Clangd)
	assert.Equal(t, ".clangd", cfg.Clangd.Output)
	assert.True(t, cfg.HasProfile("debug"))
	assert.False(t, cfg.HasProfile("release"))
}

func TestLoadUnknownKeys(t *testing.T) {
	_, unknown, err := Load(writeConfig(t, sample+"\n[extra]\nkey = 1\n"))
	require.NoError(t, err)
	assert.Contains(t, unknown, "extra.key")
}

func TestLoadInvalid(t *testing.T) {
	_, _, err := Load(writeConfig(t, "[module]\nname = \"x\"\n"))
	require.Error(t, err)
	assert.Equal(t, system.KindConfig, system.KindOf(err))

	_, _, err = Load(writeConfig(t, "[module\n"))
	require.Error(t, err)
	assert.Equal(t, system.KindConfig, system.KindOf(err))
}

func TestProfileMerge(t *testing.T) {
	cfg, _, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	base := cfg.Build.Profile(ProfileNone)
	assert.Equal(t, []string{"src"}, base.Sources)
	assert.Nil(t, base.Profiles)

	debug := cfg.Build.Profile("debug")
	assert.Equal(t, "main", debug.Entry)
	assert.Equal(t, []string{"src", "debug"}, debug.Sources)
	assert.Equal(t, flags.Parse([]string{flags.DefaultMarker, "-DBASE", "-DDEBUG"}), debug.Flags.C)
	assert.Equal(t, flags.Parse([]string{"-Wl,-Map=out.map", flags.DefaultMarker}), debug.Flags.LD)

	// a profile unknown to this section falls back to the base
	assert.Equal(t, base, cfg.Build.Profile("release"))

	check := cfg.Check.Profile("debug")
	assert.Equal(t, []string{"__debug_hook"}, check.Ignore)
	assert.Equal(t, []string{"syms/main.syms"}, check.Symbols)
}

func TestSelectProfile(t *testing.T) {
	cfg := &Config{}
	p, err := cfg.SelectProfile(ProfileNone)
	require.NoError(t, err)
	assert.Equal(t, ProfileNone, p)

	p, err = cfg.SelectProfile("release")
	require.NoError(t, err)
	assert.Equal(t, "release", p)

	def := "debug"
	cfg.Module.DefaultProfile = &def
	p, err = cfg.SelectProfile(ProfileNone)
	require.NoError(t, err)
	assert.Equal(t, "debug", p)

	empty := ""
	cfg.Module.DefaultProfile = &empty
	_, err = cfg.SelectProfile(ProfileNone)
	assert.True(t, errors.Is(err, system.ErrNoProfile))
}
