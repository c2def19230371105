package feeder

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTransport_TruncatesOnConfigure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.log")
	require.NoError(t, os.WriteFile(path, []byte("stale\nstale\n"), 0o644))

	tr, err := newFileTransport(Config{"file": path})
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.Configure(context.Background())
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestFileTransport_Lines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.log")
	tr, err := newFileTransport(Config{"file": path})
	require.NoError(t, err)

	records := Records("first", []byte("second"), map[string]any{"seq": 3})
	res, err := Deliver(context.Background(), tr, records)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sent)
	assert.True(t, res.Verified)
	assert.Equal(t, []Row{{Label: "lines written", Value: 3}}, res.Report.Rows)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n{\"seq\":3}\n", string(data))
}

// Rotated backups are not counted, so verification undercounts once the
// file has rolled over.
func TestFileTransport_RotationUndercounts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feed.log")
	tr, err := newFileTransport(Config{"file": path, "max_bytes": 1, "backups_count": 2})
	require.NoError(t, err)

	line := strings.Repeat("x", 1023)
	const total = 1500
	res, err := Deliver(context.Background(), tr, func(yield func(Record) bool) {
		for range total {
			if !yield(line) {
				return
			}
		}
	})
	require.NoError(t, err)
	assert.Equal(t, total, res.Sent)

	// one megabyte holds exactly 1024 lines of 1024 bytes
	lines, ok := res.Report.Get("lines written")
	require.True(t, ok)
	assert.EqualValues(t, total-1024, lines)

	backups, err := filepath.Glob(filepath.Join(dir, "feed-*.log"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestFileTransport_RotationDisabled(t *testing.T) {
	for _, cfg := range []Config{
		{"max_bytes": 0, "backups_count": 5},
		{"max_bytes": 10, "backups_count": 0},
	} {
		tr, err := newFileTransport(cfg)
		require.NoError(t, err)
		assert.Equal(t, unboundedMB, tr.(*fileTransport).maxSizeMB())
	}

	tr, err := newFileTransport(Config{"max_bytes": 10000000})
	require.NoError(t, err)
	assert.Equal(t, 10, tr.(*fileTransport).maxSizeMB())
}

// Without backups the file is never rotated, it grows past max_bytes.
func TestFileTransport_NoBackupsGrows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.log")
	tr, err := newFileTransport(Config{"file": path, "max_bytes": 1, "backups_count": 0})
	require.NoError(t, err)

	line := strings.Repeat("x", 1023)
	const total = 1100
	res, err := Deliver(context.Background(), tr, func(yield func(Record) bool) {
		for range total {
			if !yield(line) {
				return
			}
		}
	})
	require.NoError(t, err)
	lines, _ := res.Report.Get("lines written")
	assert.EqualValues(t, total, lines)
}

func TestFileTransport_Defaults(t *testing.T) {
	tr, err := newFileTransport(Config{})
	require.NoError(t, err)
	f := tr.(*fileTransport)
	assert.Equal(t, "generated.log", f.path)
	assert.Equal(t, 10000000, f.maxBytes)
	assert.Equal(t, 20, f.backups)
}

func TestFileTransport_ConfigureFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "feed.log")
	tr, err := newFileTransport(Config{"file": path})
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.Configure(context.Background())
	assert.True(t, errors.Is(err, ErrConnection))
}

func TestFileTransport_ForeignClient(t *testing.T) {
	tr, err := newFileTransport(Config{"file": filepath.Join(t.TempDir(), "feed.log")})
	require.NoError(t, err)
	err = tr.Send(context.Background(), "not a writer", "x")
	assert.True(t, errors.Is(err, ErrDelivery))
}

func TestCountLines(t *testing.T) {
	testCases := map[string]int64{
		"":                                 0,
		"a\n":                              1,
		"a\nb\n":                           2,
		"a\nb":                             2,
		"\n\n\n":                           3,
		strings.Repeat("y", 10000) + "\nz": 2,
	}
	for in, want := range testCases {
		got, err := countLines(bytes.NewBufferString(in))
		require.NoError(t, err)
		assert.Equal(t, want, got, "%.20q", in)
	}
}
