package feeder

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamTransport_Stdout(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	stdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	tr, err := newStreamTransport(Config{})
	require.NoError(t, err)
	_, isVerifier := tr.(Verifier)
	assert.False(t, isVerifier)

	res, err := Deliver(context.Background(), tr, Records("a", "b", "c"))
	require.NoError(t, err)
	assert.False(t, res.Verified)
	require.NoError(t, w.Close())

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", string(out))
}

func TestStreamTransport_Writer(t *testing.T) {
	var buf bytes.Buffer
	tr := &streamTransport{out: &buf}

	_, err := Deliver(context.Background(), tr, Records(map[string]any{"a": 1}, []byte("raw")))
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":1}\nraw\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, io.ErrClosedPipe
}

func TestStreamTransport_WriteFailure(t *testing.T) {
	tr := &streamTransport{out: failingWriter{}}
	res, err := Deliver(context.Background(), tr, Records("a", "b"))
	assert.True(t, errors.Is(err, ErrDelivery))
	assert.Zero(t, res.Sent)
}
