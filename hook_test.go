package feeder

import (
	"context"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newHookLogger(h *Hook) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.DebugLevel)
	l.AddHook(h)
	return l
}

func TestHook_Synchronous(t *testing.T) {
	tr := &fakeTransport{}
	h, err := NewHook(context.Background(), HookOptions{
		Transport:   tr,
		Extra:       map[string]interface{}{"app": "feeder", "user": "nobody"},
		Synchronous: true,
	})
	require.NoError(t, err)

	l := newHookLogger(h)
	l.WithField("user", "bob").WithError(errors.New("boom")).Error("first line\nsecond")
	h.FlushAndClose()

	require.Len(t, tr.sent, 1)
	doc := tr.sent[0].(map[string]interface{})
	assert.Equal(t, "first line\nsecond", doc["message"])
	assert.Equal(t, "error", doc["level"])
	assert.Equal(t, int32(LogErr), doc["severity"])
	assert.Equal(t, "bob", doc["user"])
	assert.Equal(t, "feeder", doc["app"])
	assert.Equal(t, "boom", doc["error"])
	assert.Contains(t, doc[StackTraceKey], "TestHook_Synchronous")
	assert.NotEmpty(t, doc["host"])
	assert.NotEmpty(t, doc["timestamp"])
	assert.Equal(t, 1, tr.closed)
}

func TestHook_AsynchronousKeepsOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	tr := &fakeTransport{}
	h, err := NewHook(context.Background(), HookOptions{Transport: tr})
	require.NoError(t, err)

	l := newHookLogger(h)
	for i := range 100 {
		l.WithField("seq", i).Info("tick")
	}
	h.FlushAndClose()
	assert.Zero(t, h.Pending())

	require.Len(t, tr.sent, 100)
	for i, r := range tr.sent {
		assert.Equal(t, i, r.(map[string]interface{})["seq"])
	}
	assert.Equal(t, 1, tr.closed)
}

func TestHook_Levels(t *testing.T) {
	h, err := NewHook(context.Background(), HookOptions{
		Transport:   &fakeTransport{},
		Level:       logrus.WarnLevel,
		Synchronous: true,
	})
	require.NoError(t, err)
	defer h.FlushAndClose()

	assert.Equal(t, []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}, h.Levels())
}

func TestHook_ConfigureFailure(t *testing.T) {
	tr := &fakeTransport{configureErr: connectionFailed(nil, "refused")}
	h, err := NewHook(context.Background(), HookOptions{Transport: tr})
	assert.Nil(t, h)
	assert.True(t, errors.Is(err, ErrConnection))
	assert.Equal(t, 1, tr.closed)

	_, err = NewHook(context.Background(), HookOptions{})
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestHook_FireAfterClose(t *testing.T) {
	for _, sync := range []bool{true, false} {
		tr := &fakeTransport{}
		h, err := NewHook(context.Background(), HookOptions{Transport: tr, Synchronous: sync})
		require.NoError(t, err)
		h.FlushAndClose()
		h.FlushAndClose()

		err = h.Fire(logrus.NewEntry(logrus.New()))
		assert.True(t, errors.Is(err, ErrDelivery))
		assert.Empty(t, tr.sent)
		assert.Equal(t, 1, tr.closed)
	}
}

func TestHook_ThroughUDP(t *testing.T) {
	conn, port := listenUDP(t)
	tr, err := newUDPTransport(Config{"host": "127.0.0.1", "port": port})
	require.NoError(t, err)

	h, err := NewHook(context.Background(), HookOptions{Transport: tr, Synchronous: true})
	require.NoError(t, err)
	defer h.FlushAndClose()

	newHookLogger(h).Warn("disk almost full")
	assert.Contains(t, string(readDatagram(t, conn)), `"message":"disk almost full"`)
}

func TestExtractStackTrace(t *testing.T) {
	assert.Nil(t, extractStackTrace(nil))
	assert.Nil(t, extractStackTrace(io.EOF))
	assert.NotNil(t, extractStackTrace(errors.Wrap(io.EOF, "read")))
}
