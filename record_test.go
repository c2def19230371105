package feeder

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRecord(t *testing.T) {
	testCases := []struct {
		name   string
		record Record
		want   string
	}{
		{"String", "hello", "hello"},
		{"Bytes", []byte("raw"), "raw"},
		{"RawJSON", json.RawMessage(`{"a":1}`), `{"a":1}`},
		{"Document", map[string]any{"a": 1}, `{"a":1}`},
		{"Struct", struct {
			Msg string `json:"msg"`
		}{"x"}, `{"msg":"x"}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := encodeRecord(tc.record)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))
		})
	}

	_, err := encodeRecord(nil)
	assert.Error(t, err)

	_, err = encodeRecord(make(chan int))
	assert.Error(t, err)
}

func TestEncodeDocument(t *testing.T) {
	t.Run("Text", func(t *testing.T) {
		doc, err := encodeDocument("hello")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"message": "hello"}, doc)
	})

	t.Run("Map", func(t *testing.T) {
		in := map[string]any{"level": "INFO"}
		doc, err := encodeDocument(in)
		require.NoError(t, err)
		assert.Equal(t, in, doc)
	})

	t.Run("JSONBytes", func(t *testing.T) {
		doc, err := encodeDocument([]byte(`{"level":"WARN","n":2}`))
		require.NoError(t, err)
		assert.Equal(t, "WARN", doc["level"])
		assert.Equal(t, float64(2), doc["n"])
	})

	t.Run("PlainBytes", func(t *testing.T) {
		doc, err := encodeDocument([]byte("not json"))
		require.NoError(t, err)
		assert.Equal(t, "not json", doc["message"])
	})

	t.Run("Null", func(t *testing.T) {
		_, err := encodeDocument([]byte("null"))
		assert.Error(t, err)
	})
}
