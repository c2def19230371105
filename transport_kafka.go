package feeder

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	defaultKafkaTopic   = "feeder"
	defaultKafkaAcks    = "all"
	defaultKafkaTimeout = 10 * time.Second
)

// kafkaTransport writes one message per record, waiting for the configured
// acknowledgements before Send returns.
type kafkaTransport struct {
	brokers []string
	topic   string
	acks    kafka.RequiredAcks
	timeout time.Duration

	writer *kafka.Writer
	log    logrus.FieldLogger
}

func newKafkaTransport(cfg Config) (Transport, error) {
	list, err := cfg.RequireString("brokers")
	if err != nil {
		return nil, err
	}
	t := &kafkaTransport{}
	for _, b := range strings.Split(list, ",") {
		if b = strings.TrimSpace(b); b != "" {
			t.brokers = append(t.brokers, b)
		}
	}
	if len(t.brokers) == 0 {
		return nil, missingKey("brokers")
	}
	if t.topic, err = cfg.String("topic", defaultKafkaTopic); err != nil {
		return nil, err
	}
	acks, err := cfg.String("required_acks", defaultKafkaAcks)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(acks) {
	case "all":
		t.acks = kafka.RequireAll
	case "one":
		t.acks = kafka.RequireOne
	case "none":
		t.acks = kafka.RequireNone
	default:
		return nil, invalidKey("required_acks", errors.Errorf("unknown value %q", acks))
	}
	if t.timeout, err = cfg.Seconds("timeout", defaultKafkaTimeout); err != nil {
		return nil, err
	}
	t.log = transportLog("kafka").WithFields(logrus.Fields{
		"brokers": t.brokers,
		"topic":   t.topic,
	})
	return t, nil
}

func (k *kafkaTransport) Configure(ctx context.Context) (Client, error) {
	dialer := &kafka.Dialer{Timeout: k.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", k.brokers[0])
	if err != nil {
		return nil, connectionFailed(err, "could not reach broker")
	}
	if err := conn.Close(); err != nil {
		k.log.WithError(err).Debug("probe close failed")
	}

	k.writer = &kafka.Writer{
		Addr:                   kafka.TCP(k.brokers...),
		Topic:                  k.topic,
		RequiredAcks:           k.acks,
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              1,
		WriteTimeout:           k.timeout,
		AllowAutoTopicCreation: true,
	}
	return k.writer, nil
}

func (k *kafkaTransport) Send(ctx context.Context, c Client, r Record) error {
	w, ok := c.(*kafka.Writer)
	if !ok {
		return foreignClient("kafka", c)
	}
	body, err := encodeRecord(r)
	if err != nil {
		return deliveryFailed(err, "could not encode record")
	}
	if err := w.WriteMessages(ctx, kafka.Message{Value: body, Time: time.Now()}); err != nil {
		return deliveryFailed(err, "write failed")
	}
	return nil
}

func (k *kafkaTransport) Close() {
	if k.writer == nil {
		return
	}
	if err := k.writer.Close(); err != nil {
		k.log.WithError(err).Warn("writer close failed")
	}
	k.writer = nil
}
