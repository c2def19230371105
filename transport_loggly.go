package feeder

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

const (
	defaultLogglyDomain  = "logs-01.loggly.com"
	defaultLogglyTag     = "feeder"
	defaultLogglyTimeout = 10 * time.Second
)

// logglyTransport posts each record to a token addressed HTTP input. Its
// client is the input URL, there is no connection to manage.
type logglyTransport struct {
	domain  string
	token   string
	tag     string
	timeout time.Duration

	http *fasthttp.Client
	log  logrus.FieldLogger
}

func newLogglyTransport(cfg Config) (Transport, error) {
	token, err := cfg.RequireString("token")
	if err != nil {
		return nil, err
	}
	t := &logglyTransport{token: token}
	if t.domain, err = cfg.String("url", defaultLogglyDomain); err != nil {
		return nil, err
	}
	if t.tag, err = cfg.String("tag", defaultLogglyTag); err != nil {
		return nil, err
	}
	if t.timeout, err = cfg.Seconds("timeout", defaultLogglyTimeout); err != nil {
		return nil, err
	}
	t.http = &fasthttp.Client{
		ReadTimeout:                   t.timeout,
		WriteTimeout:                  t.timeout,
		DisableHeaderNamesNormalizing: true,
	}
	t.log = transportLog("loggly").WithField("domain", t.domain)
	return t, nil
}

func (l *logglyTransport) Configure(context.Context) (Client, error) {
	return fmt.Sprintf("http://%s/inputs/%s/tag/%s/", l.domain, l.token, l.tag), nil
}

func (l *logglyTransport) Send(_ context.Context, c Client, r Record) error {
	endpoint, ok := c.(string)
	if !ok {
		return foreignClient("loggly", c)
	}
	body, err := encodeRecord(r)
	if err != nil {
		return deliveryFailed(err, "could not encode record")
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.SetBodyString("PLAINTEXT=" + url.QueryEscape(string(body)))

	if err := l.http.DoTimeout(req, resp, l.timeout); err != nil {
		return deliveryFailed(err, "request failed")
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return deliveryFailed(nil, fmt.Sprintf("unexpected status %d", code))
	}
	return nil
}

func (l *logglyTransport) Close() {
	l.http.CloseIdleConnections()
}
