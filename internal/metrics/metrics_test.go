package metrics

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitCounters(t *testing.T) {
	m := NewMetrics()
	m.Unit("compile", true, time.Second)
	m.Unit("compile", true, time.Second)
	m.Unit("compile", false, time.Second)
	m.Unit("link", true, 2*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.units_.WithLabelValues("compile", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.units_.WithLabelValues("compile", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.units_.WithLabelValues("link", "success")))
}

func TestReport(t *testing.T) {
	m := NewMetrics()
	m.Unit("compile", true, 2*time.Millisecond)
	m.Phase("scan")()

	var buf bytes.Buffer
	m.Report(&buf)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "metric"))
	assert.True(t, strings.HasPrefix(lines[1], "compile"))
	assert.True(t, strings.HasPrefix(lines[2], "scan"))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.Unit("link", true, time.Second)
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `megaton_units_total{kind="link",result="success"} 1`)
}
