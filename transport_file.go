package feeder

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultFilePath     = "generated.log"
	defaultMaxBytes     = 10000000
	defaultBackupsCount = 20

	megabyte = 1024 * 1024
	// unboundedMB effectively disables rotation.
	unboundedMB = 1 << 20
)

// fileTransport writes one line per record to a size bounded, rotating file.
type fileTransport struct {
	path     string
	maxBytes int
	backups  int

	writer *lumberjack.Logger
	log    logrus.FieldLogger
}

func newFileTransport(cfg Config) (Transport, error) {
	path, err := cfg.String("file", defaultFilePath)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, missingKey("file")
	}
	maxBytes, err := cfg.Int("max_bytes", defaultMaxBytes)
	if err != nil {
		return nil, err
	}
	if maxBytes < 0 {
		return nil, invalidKey("max_bytes", errNegative)
	}
	backups, err := cfg.Int("backups_count", defaultBackupsCount)
	if err != nil {
		return nil, err
	}
	if backups < 0 {
		return nil, invalidKey("backups_count", errNegative)
	}
	return &fileTransport{
		path:     path,
		maxBytes: maxBytes,
		backups:  backups,
		log:      transportLog("file").WithField("file", path),
	}, nil
}

// maxSizeMB converts the byte bound to the whole megabytes the rotating
// writer works in. A zero bound or zero backups means never rotate: with no
// backups to keep, the file grows past max_bytes instead of being truncated
// in place at rollover.
func (f *fileTransport) maxSizeMB() int {
	if f.maxBytes == 0 || f.backups == 0 {
		return unboundedMB
	}
	mb := (f.maxBytes + megabyte - 1) / megabyte
	if mb < 1 {
		mb = 1
	}
	return mb
}

func (f *fileTransport) Configure(_ context.Context) (Client, error) {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return nil, connectionFailed(err, "could not remove previous file")
	}
	fd, err := os.Create(f.path)
	if err != nil {
		return nil, connectionFailed(err, "could not create file")
	}
	if err := fd.Close(); err != nil {
		return nil, connectionFailed(err, "could not create file")
	}

	f.writer = &lumberjack.Logger{
		Filename:   f.path,
		MaxSize:    f.maxSizeMB(),
		MaxBackups: f.backups,
	}
	f.log.WithFields(logrus.Fields{
		"max_size_mb": f.writer.MaxSize,
		"backups":     f.backups,
	}).Debug("file truncated")
	return f.writer, nil
}

func (f *fileTransport) Send(_ context.Context, c Client, r Record) error {
	w, ok := c.(*lumberjack.Logger)
	if !ok {
		return foreignClient("file", c)
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

func (f *fileTransport) Close() {
	if f.writer == nil {
		return
	}
	if err := f.writer.Close(); err != nil {
		f.log.WithError(err).Warn("close failed")
	}
	f.writer = nil
}

// Verify counts the lines of the current file. Rotated backups are not
// counted, so the figure is short by every line rotated away.
func (f *fileTransport) Verify(_ context.Context) (*Report, error) {
	fd, err := os.Open(f.path)
	if err != nil {
		return nil, errors.Wrap(ErrVerify, err.Error())
	}
	defer fd.Close()

	lines, err := countLines(fd)
	if err != nil {
		return nil, errors.Wrap(ErrVerify, err.Error())
	}
	return &Report{Rows: []Row{{Label: "lines written", Value: lines}}}, nil
}

// countLines counts newline terminated lines plus a trailing partial line.
func countLines(r io.Reader) (int64, error) {
	br := bufio.NewReader(r)
	var n int64
	var partial bool
	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			partial = chunk[len(chunk)-1] != '\n'
			if !partial {
				n++
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, bufio.ErrBufferFull):
		case errors.Is(err, io.EOF):
			if partial {
				n++
			}
			return n, nil
		default:
			return n, err
		}
	}
}
