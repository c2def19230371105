package feeder

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	defaultAMQPPort       = 5672
	defaultAMQPUser       = "guest"
	defaultAMQPPassword   = "guest"
	defaultAMQPVhost      = "/"
	defaultAMQPQueue      = "myqueue"
	defaultAMQPExchange   = ""
	defaultAMQPRoutingKey = "myroutingkey"
	defaultAMQPTimeout    = 10 * time.Second
)

// amqpTransport publishes persistent messages to a broker after declaring a
// durable queue.
type amqpTransport struct {
	uri        amqp.URI
	timeout    time.Duration
	queue      string
	exchange   string
	routingKey string

	conn    *amqp.Connection
	channel *amqp.Channel
	log     logrus.FieldLogger
}

func newAMQPTransport(cfg Config) (Transport, error) {
	host, err := cfg.RequireString("host")
	if err != nil {
		return nil, err
	}
	t := &amqpTransport{uri: amqp.URI{Scheme: "amqp", Host: host}}
	if t.uri.Port, err = cfg.Int("port", defaultAMQPPort); err != nil {
		return nil, err
	}
	if t.uri.Username, err = cfg.String("user", defaultAMQPUser); err != nil {
		return nil, err
	}
	if t.uri.Password, err = cfg.String("password", defaultAMQPPassword); err != nil {
		return nil, err
	}
	if t.uri.Vhost, err = cfg.String("vhost", defaultAMQPVhost); err != nil {
		return nil, err
	}
	if t.timeout, err = cfg.Seconds("timeout", defaultAMQPTimeout); err != nil {
		return nil, err
	}
	if t.queue, err = cfg.String("queue", defaultAMQPQueue); err != nil {
		return nil, err
	}
	if t.exchange, err = cfg.String("exchange", defaultAMQPExchange); err != nil {
		return nil, err
	}
	if t.routingKey, err = cfg.String("routing_key", defaultAMQPRoutingKey); err != nil {
		return nil, err
	}
	t.log = transportLog("amqp").WithFields(logrus.Fields{
		"host":  host,
		"queue": t.queue,
	})
	return t, nil
}

func (a *amqpTransport) Configure(_ context.Context) (Client, error) {
	conn, err := amqp.DialConfig(a.uri.String(), amqp.Config{
		Dial: amqp.DefaultDial(a.timeout),
	})
	if err != nil {
		return nil, connectionFailed(err, "could not connect to host")
	}
	a.conn = conn

	ch, err := conn.Channel()
	if err != nil {
		return nil, connectionFailed(err, "could not open channel")
	}
	a.channel = ch

	if _, err := ch.QueueDeclare(a.queue, true, false, false, false, nil); err != nil {
		return nil, connectionFailed(err, "could not declare queue")
	}
	a.log.Debug("queue declared")
	return ch, nil
}

func (a *amqpTransport) Send(ctx context.Context, c Client, r Record) error {
	ch, ok := c.(*amqp.Channel)
	if !ok {
		return foreignClient("amqp", c)
	}
	body, err := encodeRecord(r)
	if err != nil {
		return deliveryFailed(err, "could not encode record")
	}
	err = ch.PublishWithContext(ctx, a.exchange, a.routingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "text/plain",
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return deliveryFailed(err, "publish failed")
	}
	return nil
}

func (a *amqpTransport) Close() {
	if a.channel != nil {
		if err := a.channel.Close(); err != nil {
			a.log.WithError(err).Warn("channel close failed")
		}
		a.channel = nil
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.log.WithError(err).Warn("connection close failed")
		}
		a.conn = nil
	}
}
