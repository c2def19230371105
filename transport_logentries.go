package feeder

import (
	"bytes"
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultLogentriesHost    = "data.logentries.com"
	defaultLogentriesPort    = 80
	defaultLogentriesTLSPort = 443
	defaultLogentriesTimeout = 10 * time.Second
)

// logentriesTransport streams token prefixed lines to a Logentries style
// token-addressed TCP endpoint.
type logentriesTransport struct {
	token   string
	addr    string
	useTLS  bool
	timeout time.Duration

	handler *streamHandler
	log     logrus.FieldLogger
}

// streamHandler is the logentries client. The socket is dialed on the first
// write and kept open until the transport is closed.
type streamHandler struct {
	token string
	dial  func() (net.Conn, error)
	conn  net.Conn
}

func newLogentriesTransport(cfg Config) (Transport, error) {
	token, err := cfg.RequireString("token")
	if err != nil {
		return nil, err
	}
	host, err := cfg.String("host", defaultLogentriesHost)
	if err != nil {
		return nil, err
	}
	useTLS, err := cfg.Bool("tls", false)
	if err != nil {
		return nil, err
	}
	defPort := defaultLogentriesPort
	if useTLS {
		defPort = defaultLogentriesTLSPort
	}
	port, err := cfg.Int("port", defPort)
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.Seconds("timeout", defaultLogentriesTimeout)
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	return &logentriesTransport{
		token:   token,
		addr:    addr,
		useTLS:  useTLS,
		timeout: timeout,
		log:     transportLog("logentries").WithField("addr", addr),
	}, nil
}

func (l *logentriesTransport) Configure(context.Context) (Client, error) {
	dialer := &net.Dialer{Timeout: l.timeout}
	l.handler = &streamHandler{
		token: l.token,
		dial: func() (net.Conn, error) {
			if l.useTLS {
				return tls.DialWithDialer(dialer, "tcp", l.addr, &tls.Config{})
			}
			return dialer.Dial("tcp", l.addr)
		},
	}
	return l.handler, nil
}

func (l *logentriesTransport) Send(_ context.Context, c Client, r Record) error {
	h, ok := c.(*streamHandler)
	if !ok {
		return foreignClient("logentries", c)
	}
	body, err := encodeRecord(r)
	if err != nil {
		return deliveryFailed(err, "could not encode record")
	}
	return h.write(body)
}

// write sends body as one token prefixed line. Embedded newlines become
// U+2028 so a multi-line record stays one event.
func (h *streamHandler) write(body []byte) error {
	if h.conn == nil {
		conn, err := h.dial()
		if err != nil {
			return deliveryFailed(err, "could not connect to endpoint")
		}
		h.conn = conn
	}

	body = bytes.ReplaceAll(bytes.TrimSuffix(body, []byte("\n")), []byte("\n"), []byte("\u2028"))
	line := make([]byte, 0, len(h.token)+len(body)+2)
	line = append(line, h.token...)
	line = append(line, ' ')
	line = append(line, body...)
	line = append(line, '\n')

	// a broken socket is dropped so that a later Send dials afresh
	if _, err := h.conn.Write(line); err != nil {
		_ = h.conn.Close()
		h.conn = nil
		return deliveryFailed(err, "write failed")
	}
	return nil
}

func (l *logentriesTransport) Close() {
	if l.handler == nil || l.handler.conn == nil {
		return
	}
	if err := l.handler.conn.Close(); err != nil {
		l.log.WithError(err).Warn("close failed")
	}
	l.handler.conn = nil
}
