package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"megaton-build-go/internal/status"
)

func readFlags(args ...string) (*Options, int, string, string) {
	var stdout, stderr bytes.Buffer
	options := NewOptions()
	code := ReadFlags(append([]string{"megaton"}, args...), options, &stdout, &stderr)
	return options, code, stdout.String(), stderr.String()
}

func TestReadFlagsDefaults(t *testing.T) {
	options, code, _, _ := readFlags()
	assert.Equal(t, -1, code)
	assert.Equal(t, NewOptions(), options)
	assert.Equal(t, "none", options.Profile)
	assert.Equal(t, "build", options.Command)
}

func TestReadFlags(t *testing.T) {
	options, code, _, _ := readFlags("-C", "proj", "-p", "dev", "-j", "8", "-v", "-d", "explain", "-d", "stats", "clean")
	assert.Equal(t, -1, code)
	assert.Equal(t, &Options{
		WorkingDir: "proj",
		Profile:    "dev",
		Jobs:       8,
		Verbosity:  status.VERBOSE,
		Explain:    true,
		Stats:      true,
		Command:    "clean",
	}, options)

	options, code, _, _ = readFlags("-q", "watch")
	assert.Equal(t, -1, code)
	assert.Equal(t, status.NO_STATUS_UPDATE, options.Verbosity)
	assert.Equal(t, "watch", options.Command)
}

func TestReadFlagsErrors(t *testing.T) {
	_, code, _, stderr := readFlags("-j", "many")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid -j parameter")

	_, code, _, stderr = readFlags("-d", "expain")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "did you mean 'explain'?")

	_, code, _, stderr = readFlags("biuld")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "did you mean 'build'?")

	_, code, _, stderr = readFlags("build", "clean")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "too many arguments")

	_, code, _, _ = readFlags("-x")
	assert.Equal(t, 1, code)
}

func TestReadFlagsInfo(t *testing.T) {
	_, code, stdout, _ := readFlags("-d", "list")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "explain")

	_, code, stdout, _ = readFlags("-h")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "usage: megaton")

	_, code, stdout, _ = readFlags("-V")
	assert.Equal(t, 0, code)
	assert.Equal(t, kMegatonVersion+"\n", stdout)
}

func TestSpellcheckString(t *testing.T) {
	assert.Equal(t, "clean", SpellcheckString("claen", "build", "clean", "watch"))
	assert.Equal(t, "", SpellcheckString("deploy", "build", "clean", "watch"))
	assert.Equal(t, 0, EditDistance("build", "build", true, 0))
	assert.Equal(t, 2, EditDistance("build", "biuld", false, 0))
}
