package feeder

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/sirupsen/logrus"
)

// udpTransport fires one datagram per record. Nothing confirms delivery.
type udpTransport struct {
	addr string
	conn net.Conn
	log  logrus.FieldLogger
}

func newUDPTransport(cfg Config) (Transport, error) {
	host, err := cfg.RequireString("host")
	if err != nil {
		return nil, err
	}
	port, err := cfg.RequireInt("port")
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, invalidKey("port", strconv.ErrRange)
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	return &udpTransport{
		addr: addr,
		log:  transportLog("udp").WithField("addr", addr),
	}, nil
}

func (u *udpTransport) Configure(ctx context.Context) (Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", u.addr)
	if err != nil {
		return nil, connectionFailed(err, "could not open datagram socket")
	}
	u.conn = conn
	return conn, nil
}

func (u *udpTransport) Send(_ context.Context, c Client, r Record) error {
	conn, ok := c.(net.Conn)
	if !ok {
		return foreignClient("udp", c)
	}
	body, err := encodeRecord(r)
	if err != nil {
		return deliveryFailed(err, "could not encode record")
	}
	n, err := conn.Write(body)
	if err != nil {
		return deliveryFailed(err, "write failed")
	}
	if n != len(body) {
		return deliveryFailed(nil, fmt.Sprintf("write (%d/%d)", n, len(body)))
	}
	return nil
}

func (u *udpTransport) Close() {
	if u.conn == nil {
		return
	}
	if err := u.conn.Close(); err != nil {
		u.log.WithError(err).Warn("close failed")
	}
	u.conn = nil
}
