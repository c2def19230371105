package feeder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultESPort      = 9200
	defaultESURLPrefix = ""
	defaultESTimeout   = 10 * time.Second
	defaultESDocType   = "doc"
	defaultESSleep     = 3 * time.Second
)

// searchIndex is the part of a search engine the elasticsearch transport
// talks to.
type searchIndex interface {
	// CreateIndex creates index, treating an existing index as success.
	CreateIndex(ctx context.Context, index string) error
	Count(ctx context.Context, index string) (int64, error)
	Index(ctx context.Context, index string, doc []byte) error
}

type elasticsearchTransport struct {
	address string
	timeout time.Duration
	index   string
	docType string
	sleep   time.Duration

	connect func(address string, timeout time.Duration) (searchIndex, error)
	client  searchIndex
	before  int64
	log     logrus.FieldLogger
}

func newElasticsearchTransport(cfg Config) (Transport, error) {
	host, err := cfg.RequireString("host")
	if err != nil {
		return nil, err
	}
	port, err := cfg.Int("port", defaultESPort)
	if err != nil {
		return nil, err
	}
	prefix, err := cfg.String("url_prefix", defaultESURLPrefix)
	if err != nil {
		return nil, err
	}
	// the dated default is filled in by Registry.Resolve
	index, err := cfg.RequireString("index")
	if err != nil {
		return nil, err
	}
	t := &elasticsearchTransport{
		address: esAddress(host, port, prefix),
		index:   index,
		connect: dialElasticsearch,
	}
	if t.timeout, err = cfg.Seconds("timeout", defaultESTimeout); err != nil {
		return nil, err
	}
	if t.docType, err = cfg.String("doc_type", defaultESDocType); err != nil {
		return nil, err
	}
	if t.sleep, err = cfg.Seconds("sleep", defaultESSleep); err != nil {
		return nil, err
	}
	t.log = transportLog("elasticsearch").WithFields(logrus.Fields{
		"address":  t.address,
		"index":    index,
		"doc_type": t.docType,
	})
	return t, nil
}

func esAddress(host string, port int, prefix string) string {
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if strings.Contains(host, "://") {
		return host + prefix
	}
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(host, fmt.Sprint(port)), prefix)
}

func (e *elasticsearchTransport) Configure(ctx context.Context) (Client, error) {
	client, err := e.connect(e.address, e.timeout)
	if err != nil {
		return nil, connectionFailed(err, "could not create search client")
	}
	if err := client.CreateIndex(ctx, e.index); err != nil {
		return nil, connectionFailed(err, "could not create index")
	}
	before, err := client.Count(ctx, e.index)
	if err != nil {
		return nil, connectionFailed(err, "could not count documents")
	}
	e.client = client
	e.before = before
	e.log.WithField("docs", before).Debug("baseline taken")
	return client, nil
}

func (e *elasticsearchTransport) Send(ctx context.Context, c Client, r Record) error {
	client, ok := c.(searchIndex)
	if !ok {
		return foreignClient("elasticsearch", c)
	}
	doc, err := encodeDocument(r)
	if err != nil {
		return deliveryFailed(err, "could not encode record")
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return deliveryFailed(err, "could not encode record")
	}
	if err := client.Index(ctx, e.index, body); err != nil {
		return deliveryFailed(err, "index failed")
	}
	return nil
}

func (e *elasticsearchTransport) Close() {
	if c, ok := e.client.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
	e.client = nil
}

func (e *elasticsearchTransport) Verify(ctx context.Context) (*Report, error) {
	if e.client == nil {
		return nil, errors.Wrap(ErrVerify, "transport is not configured")
	}
	if err := settle(ctx, e.sleep); err != nil {
		return nil, errors.Wrap(ErrVerify, err.Error())
	}
	after, err := e.client.Count(ctx, e.index)
	if err != nil {
		return nil, errors.Wrap(ErrVerify, err.Error())
	}
	return countReport("docs", e.before, after), nil
}

// settle waits d for writes to become visible to reads.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type esIndex struct {
	es   *elasticsearch.Client
	http *http.Transport
}

func dialElasticsearch(address string, timeout time.Duration) (searchIndex, error) {
	ht := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
		ResponseHeaderTimeout: timeout,
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{address},
		Transport: ht,
	})
	if err != nil {
		return nil, err
	}
	return &esIndex{es: es, http: ht}, nil
}

func (i *esIndex) CloseIdleConnections() {
	i.http.CloseIdleConnections()
}

func (i *esIndex) CreateIndex(ctx context.Context, index string) error {
	res, err := i.es.Indices.Create(index, i.es.Indices.Create.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	// 400 is resource_already_exists_exception
	if res.StatusCode == http.StatusBadRequest {
		return nil
	}
	return responseError(res)
}

func (i *esIndex) Count(ctx context.Context, index string) (int64, error) {
	res, err := i.es.Count(i.es.Count.WithContext(ctx), i.es.Count.WithIndex(index))
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if err := responseError(res); err != nil {
		return 0, err
	}
	var body struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return 0, errors.Wrap(err, "decode count response")
	}
	return body.Count, nil
}

func (i *esIndex) Index(ctx context.Context, index string, doc []byte) error {
	res, err := i.es.Index(index, bytes.NewReader(doc), i.es.Index.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return responseError(res)
}

func responseError(res *esapi.Response) error {
	if !res.IsError() {
		return nil
	}
	return errors.New(res.String())
}
