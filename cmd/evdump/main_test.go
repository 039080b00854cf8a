package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"evdump"}, args...))
	return stdout.String(), stderr.String(), err
}

func writeSample(t *testing.T, count int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.bin")
	_, _, err := run(t, "sample", "--count", strconv.Itoa(count), "-o", path)
	require.NoError(t, err)
	return path
}

func TestDumpText(t *testing.T) {
	path := writeSample(t, 10)
	out, _, err := run(t, "dump", "--chunk", "5", "--schemas", path)
	require.NoError(t, err)

	assert.Contains(t, out, "HT_CallstackStringEvent#11{base=HT_Event#10{")
	assert.Contains(t, out, "v1 HT_SystemInfoEvent#12{")
	// 10 events and 3 klass definitions.
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 13)
}

func TestDumpJSON(t *testing.T) {
	path := writeSample(t, 10)
	out, _, err := run(t, "dump", "--format", "json", "--metadata", path)
	require.NoError(t, err)

	var first map[string]any
	dec := json.NewDecoder(strings.NewReader(out))
	require.NoError(t, dec.Decode(&first))
	assert.Equal(t, "HT_Event", first["klass"])
	assert.NotNil(t, first["schema"])
}

func TestDumpTruncatedExitCode(t *testing.T) {
	path := writeSample(t, 10)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-3], 0o644))

	_, stderr, err := run(t, "dump", path)
	var exitCoder cli.ExitCoder
	require.ErrorAs(t, err, &exitCoder)
	assert.Equal(t, exitStreamError, exitCoder.ExitCode())
	assert.Contains(t, stderr, "TruncatedStream")
}

func TestStatsConcurrentFiles(t *testing.T) {
	a, b := writeSample(t, 10), writeSample(t, 10)
	out, _, err := run(t, "stats", "--chunk", "3", a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "events=10"))
}

func TestStatsSameFileTwice(t *testing.T) {
	path := writeSample(t, 10)
	out, stderr, err := run(t, "stats", "--chunk", "7", path, path)
	require.NoError(t, err)
	assert.Empty(t, stderr)
	assert.Equal(t, 2, strings.Count(out, "frames=13 events=10 metadata=3 errors=0"))
}

func TestStatsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	out, stderr, err := run(t, "stats", path)
	require.NoError(t, err)
	assert.Empty(t, stderr)
	assert.Contains(t, out, "bytes=0 frames=0 events=0 metadata=0 errors=0")
}

func TestSchemasTruncatedExitCode(t *testing.T) {
	path := writeSample(t, 10)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-3], 0o644))

	out, stderr, err := run(t, "schemas", path)
	var exitCoder cli.ExitCoder
	require.ErrorAs(t, err, &exitCoder)
	assert.Equal(t, exitStreamError, exitCoder.ExitCode())
	assert.Contains(t, stderr, "TruncatedStream")
	assert.Contains(t, out, "HT_Event#10", "klasses seen before the error are still listed")
}

func TestCompressedInput(t *testing.T) {
	for _, ext := range []string{".zst", ".lz4"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sample"+ext)
			_, _, err := run(t, "sample", "-n", "6", "-o", path)
			require.NoError(t, err)

			out, _, err := run(t, "stats", path)
			require.NoError(t, err)
			assert.Contains(t, out, "frames=9 events=6 metadata=3 errors=0")
		})
	}
}

func TestSchemasWithConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "evstream.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("redefine: keep\nklasses:\n  - {id: 99, name: Preloaded}\n"), 0o644))

	out, _, err := run(t, "schemas", "--config", cfg, writeSample(t, 10))
	require.NoError(t, err)
	assert.Contains(t, out, "Preloaded#99{}")
	assert.Contains(t, out, "HT_Event#10{type:u32, timestamp:u64, id:u64}")
}

func TestUnknownFormat(t *testing.T) {
	_, _, err := run(t, "dump", "--format", "xml", writeSample(t, 10))
	assert.ErrorContains(t, err, "unknown format")
}
