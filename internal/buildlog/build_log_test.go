package buildlog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRapidhash(t *testing.T) {
	// exercise every length branch
	seen := make(map[uint64]int)
	buf := make([]byte, 200)
	for i := range buf {
		buf[i] = byte(i * 7)
	}
	for n := 0; n <= len(buf); n++ {
		h := Rapidhash(buf[:n])
		assert.Equal(t, h, Rapidhash(append([]byte(nil), buf[:n]...)))
		if prev, ok := seen[h]; ok {
			t.Fatalf("lengths %d and %d collide", prev, n)
		}
		seen[h] = n
	}
}

func TestHashCommand(t *testing.T) {
	assert.Equal(t, HashCommand([]string{"gcc", "-c", "a.c"}), HashCommand([]string{"gcc", "-c", "a.c"}))
	assert.NotEqual(t, HashCommand([]string{"a b"}), HashCommand([]string{"a", "b"}))
}

func TestBuildLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	log, err := Open(path)
	require.NoError(t, err)

	start := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, log.Record(Entry{BuildID: "b1", Output: "a.o", Kind: "compile", CommandHash: 0xabc, Start: start, End: start.Add(time.Second)}))
	require.NoError(t, log.Record(Entry{BuildID: "b1", Output: "b.o", Kind: "compile", CommandHash: 0xdef, Start: start, End: start.Add(3 * time.Second), ExitCode: 1}))
	require.NoError(t, log.Record(Entry{BuildID: "b2", Output: "a.o", Kind: "compile", Start: start, End: start}))

	slow, err := log.Slowest("b1", 10)
	require.NoError(t, err)
	require.Len(t, slow, 2)
	assert.Equal(t, "b.o", slow[0].Output)
	assert.Equal(t, 3*time.Second, slow[0].Duration())
	assert.Equal(t, 1, slow[0].ExitCode)
	assert.Equal(t, uint64(0xabc), slow[1].CommandHash)
	require.NoError(t, log.Close())

	// reopening keeps the history
	log, err = Open(path)
	require.NoError(t, err)
	defer log.Close()
	n, err := log.count("a.o")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
