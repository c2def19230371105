package feeder

import (
	"context"
	"io"
	"os"
)

// streamTransport prints each record on its own line to standard output.
type streamTransport struct {
	out io.Writer
}

func newStreamTransport(Config) (Transport, error) {
	return &streamTransport{}, nil
}

func (s *streamTransport) Configure(context.Context) (Client, error) {
	if s.out == nil {
		s.out = os.Stdout
	}
	return s.out, nil
}

func (s *streamTransport) Send(_ context.Context, c Client, r Record) error {
	w, ok := c.(io.Writer)
	if !ok {
		return foreignClient("stream", c)
	}
	body, err := encodeRecord(r)
	if err != nil {
		return deliveryFailed(err, "could not encode record")
	}
	line := make([]byte, 0, len(body)+1)
	line = append(append(line, body...), '\n')
	if _, err := w.Write(line); err != nil {
		return deliveryFailed(err, "write failed")
	}
	return nil
}

func (s *streamTransport) Close() {}
