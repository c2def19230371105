package generator

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	feeder "github.com/viruscoding/log-feeder"
)

func fixedNow() time.Time {
	return time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)
}

func collect(g *Generator) []feeder.Record {
	var out []feeder.Record
	for r := range g.Records() {
		out = append(out, r)
	}
	return out
}

func TestNew(t *testing.T) {
	t.Run("DefaultsToText", func(t *testing.T) {
		g, err := New(Options{Count: 1, Host: "h"})
		require.NoError(t, err)
		assert.Equal(t, Text, g.opts.Format)
	})

	t.Run("RejectsUnknownFormat", func(t *testing.T) {
		_, err := New(Options{Count: 1, Format: "xml"})
		assert.Error(t, err)
	})

	t.Run("RejectsNegativeCount", func(t *testing.T) {
		_, err := New(Options{Count: -1})
		assert.Error(t, err)
	})
}

func TestRecords_Text(t *testing.T) {
	g, err := New(Options{Count: 3, Host: "web-1", Now: fixedNow, Seed: 42})
	require.NoError(t, err)

	records := collect(g)
	require.Len(t, records, 3)
	for i, r := range records {
		line, ok := r.(string)
		require.True(t, ok, "record %d is %T", i, r)
		assert.True(t, strings.HasPrefix(line, "2024-03-07T10:00:00Z "))
		assert.Contains(t, line, " web-1 [")
		assert.Contains(t, line, fmt.Sprintf("seq=%d ", i))
	}
}

func TestRecords_JSON(t *testing.T) {
	g, err := New(Options{Count: 2, Format: JSON, Host: "web-1", Now: fixedNow, Seed: 7})
	require.NoError(t, err)

	records := collect(g)
	require.Len(t, records, 2)
	doc, ok := records[1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, doc["seq"])
	assert.Equal(t, "web-1", doc["host"])
	assert.NotEmpty(t, doc["id"])
	assert.Contains(t, levels, doc["level"])
}

func TestRecords_Restartable(t *testing.T) {
	g, err := New(Options{Count: 4, Host: "h", Now: fixedNow})
	require.NoError(t, err)

	assert.Len(t, collect(g), 4)
	assert.Len(t, collect(g), 4)
}

func TestRecords_StopsEarly(t *testing.T) {
	g, err := New(Options{Count: 10, Host: "h", Now: fixedNow})
	require.NoError(t, err)

	n := 0
	for range g.Records() {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}
