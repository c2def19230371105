package feeder

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type NetworkType string

var (
	UDP NetworkType = "udp"
	TCP NetworkType = "tcp"
)

// gelfTransport sends each record as one GELF message to a Graylog input.
// UDP messages are compressed and chunked, TCP messages are NUL framed.
type gelfTransport struct {
	networkType NetworkType
	addr        string
	host        string
	level       int32
	facility    string
	timeout     time.Duration

	conn *gelfConn
	log  logrus.FieldLogger
}

type gelfConn struct {
	net.Conn
	networkType NetworkType
	host        string
}

func newGelfTransport(cfg Config) (Transport, error) {
	address, err := cfg.RequireString("address")
	if err != nil {
		return nil, err
	}
	t := &gelfTransport{}
	switch {
	case strings.HasPrefix(address, "tcp://"):
		t.networkType = TCP
		t.addr = strings.TrimPrefix(address, "tcp://")
	case strings.HasPrefix(address, "udp://"):
		t.networkType = UDP
		t.addr = strings.TrimPrefix(address, "udp://")
	default:
		return nil, invalidKey("address", errors.Errorf("invalid protocol: %s", address))
	}
	if t.host, err = cfg.String("host", ""); err != nil {
		return nil, err
	}
	level, err := cfg.Int("level", LogInfo)
	if err != nil {
		return nil, err
	}
	if level < LogEmerg || level > LogDebug {
		return nil, invalidKey("level", errors.Errorf("%d is not a syslog severity", level))
	}
	t.level = int32(level)
	if t.facility, err = cfg.String("facility", ""); err != nil {
		return nil, err
	}
	if t.timeout, err = cfg.Seconds("timeout", 10*time.Second); err != nil {
		return nil, err
	}
	t.log = transportLog("gelf").WithField("addr", address)
	return t, nil
}

func (g *gelfTransport) Configure(ctx context.Context) (Client, error) {
	host := g.host
	if host == "" {
		var err error
		if host, err = os.Hostname(); err != nil {
			host = "localhost"
		}
	}
	d := net.Dialer{Timeout: g.timeout}
	conn, err := d.DialContext(ctx, string(g.networkType), g.addr)
	if err != nil {
		return nil, connectionFailed(err, "could not connect to graylog input")
	}
	g.conn = &gelfConn{Conn: conn, networkType: g.networkType, host: host}
	return g.conn, nil
}

func (g *gelfTransport) Send(_ context.Context, c Client, r Record) error {
	conn, ok := c.(*gelfConn)
	if !ok {
		return foreignClient("gelf", c)
	}
	m, err := newGELFMessage(r, conn.host, g.level, g.facility, time.Now())
	if err != nil {
		return deliveryFailed(err, "could not encode record")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return deliveryFailed(err, "could not encode record")
	}

	if conn.networkType == TCP {
		if err := conn.tcpWrite(data); err != nil {
			return deliveryFailed(err, "write failed")
		}
		return nil
	}

	compressed, err := compressGELF(data)
	if err != nil {
		return deliveryFailed(err, "could not compress message")
	}
	if err := writeChunked(conn, compressed); err != nil {
		return deliveryFailed(err, "write failed")
	}
	return nil
}

func (c *gelfConn) tcpWrite(bs []byte) error {
	bs = append(bs, '\x00')
	for len(bs) > 0 {
		n, err := c.Write(bs)
		if err != nil {
			return err
		}
		bs = bs[n:]
	}
	return nil
}

func (g *gelfTransport) Close() {
	if g.conn == nil {
		return
	}
	if err := g.conn.Close(); err != nil {
		g.log.WithError(err).Warn("close failed")
	}
	g.conn = nil
}
