package feeder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const StackTraceKey = "stacktrace"

// Hook is a logrus hook that ships every entry as a document record through
// a transport. Asynchronous hooks deliver from a single goroutine so the
// transport still sees one Send at a time, in order.
type Hook struct {
	extra       map[string]interface{}
	host        string
	level       logrus.Level
	transport   Transport
	client      Client
	synchronous bool

	mu     sync.Mutex
	queue  *entryQueue
	done   chan struct{}
	closed bool
}

type HookOptions struct {
	Transport Transport
	Extra     map[string]interface{}
	// Level is the least severe level fired, default DebugLevel.
	Level       logrus.Level
	Synchronous bool
}

// NewHook configures the transport and returns a hook sending through it.
// The transport is closed if configuration fails.
func NewHook(ctx context.Context, opts HookOptions) (*Hook, error) {
	if opts.Transport == nil {
		return nil, errors.Wrap(ErrConfig, "hook needs a transport")
	}
	if opts.Level == logrus.PanicLevel {
		opts.Level = logrus.DebugLevel
	}
	client, err := opts.Transport.Configure(ctx)
	if err != nil {
		opts.Transport.Close()
		return nil, err
	}

	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	hook := &Hook{
		extra:       opts.Extra,
		host:        host,
		level:       opts.Level,
		transport:   opts.Transport,
		client:      client,
		synchronous: opts.Synchronous,
	}
	if !opts.Synchronous {
		hook.queue = newEntryQueue()
		hook.done = make(chan struct{})
		go hook.run()
	}
	return hook, nil
}

func (h *Hook) run() {
	defer close(h.done)
	for {
		doc, ok := h.queue.pop()
		if !ok {
			return
		}
		if err := h.transport.Send(context.Background(), h.client, doc); err != nil {
			// logging here would fire the hook again
			fmt.Fprintln(os.Stderr, "feeder hook:", err)
		}
	}
}

// FlushAndClose delivers queued entries, then closes the transport. Entries
// fired afterwards are dropped.
func (h *Hook) FlushAndClose() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	if !h.synchronous {
		h.queue.close()
		<-h.done
	}
	h.transport.Close()
}

// Pending returns the number of entries waiting to be delivered.
func (h *Hook) Pending() int {
	if h.synchronous {
		return 0
	}
	return h.queue.len()
}

func (h *Hook) Levels() []logrus.Level {
	var levels []logrus.Level
	for _, level := range logrus.AllLevels {
		if level <= h.level {
			levels = append(levels, level)
		}
	}
	return levels
}

func (h *Hook) Fire(entry *logrus.Entry) error {
	doc := h.document(entry)
	if !h.synchronous {
		if !h.queue.push(doc) {
			return errors.Wrap(ErrDelivery, "hook is closed")
		}
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.Wrap(ErrDelivery, "hook is closed")
	}
	return h.transport.Send(context.Background(), h.client, doc)
}

// document flattens an entry. Entry fields win over the hook's extra fields,
// the message, level, host and time keys win over both.
func (h *Hook) document(entry *logrus.Entry) map[string]interface{} {
	doc := make(map[string]interface{}, len(h.extra)+len(entry.Data)+8)
	for k, v := range h.extra {
		doc[k] = v
	}
	for k, v := range entry.Data {
		if k != logrus.ErrorKey {
			doc[k] = v
			continue
		}
		asError, isError := v.(error)
		_, isMarshaler := v.(json.Marshaler)
		if isError && !isMarshaler {
			doc[k] = asError.Error()
		} else {
			doc[k] = v
		}
		if stackTrace := extractStackTrace(asError); stackTrace != nil {
			doc[StackTraceKey] = fmt.Sprintf("%+v", stackTrace)
		}
	}
	if entry.Caller != nil {
		doc["caller_file"] = entry.Caller.File
		doc["caller_line"] = entry.Caller.Line
		doc["caller_function"] = entry.Caller.Function
	}

	t := entry.Time
	if t.IsZero() {
		t = time.Now()
	}
	doc["message"] = entry.Message
	doc["level"] = entry.Level.String()
	doc["severity"] = logrusLevelToSyslog(entry.Level)
	doc["host"] = h.host
	doc["timestamp"] = t.UTC().Format(time.RFC3339Nano)
	return doc
}

type causer interface {
	Cause() error
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// extractStackTrace returns the innermost stack trace recorded along the
// cause chain of err.
func extractStackTrace(err error) errors.StackTrace {
	var tracer stackTracer
	for err != nil {
		if st, ok := err.(stackTracer); ok {
			tracer = st
		}
		cause, ok := err.(causer)
		if !ok {
			break
		}
		err = cause.Cause()
	}
	if tracer == nil {
		return nil
	}
	return tracer.StackTrace()
}

func logrusLevelToSyslog(level logrus.Level) int32 {
	// logrus has no equivalent of syslog LOG_NOTICE
	switch level {
	case logrus.PanicLevel:
		return LogAlert
	case logrus.FatalLevel:
		return LogCrit
	case logrus.ErrorLevel:
		return LogErr
	case logrus.WarnLevel:
		return LogWarning
	case logrus.InfoLevel:
		return LogInfo
	default:
		return LogDebug
	}
}
