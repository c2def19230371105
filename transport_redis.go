package feeder

import (
	"bytes"
	"compress/gzip"
	"context"
	"net"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultRedisPort  = 6379
	defaultRedisQueue = "feeder"

	// RecordTaskType is the asynq task type every record is enqueued as.
	RecordTaskType = "feeder:record"
)

// redisTransport enqueues every record as an asynq task. Its count is the
// number of tasks still held in the queue, so a running consumer makes the
// report under-count.
type redisTransport struct {
	opts  asynq.RedisClientOpt
	queue string
	sleep time.Duration

	client    *asynq.Client
	inspector *asynq.Inspector
	before    int64
	log       logrus.FieldLogger
}

func newRedisTransport(cfg Config) (Transport, error) {
	host, err := cfg.RequireString("host")
	if err != nil {
		return nil, err
	}
	port, err := cfg.Int("port", defaultRedisPort)
	if err != nil {
		return nil, err
	}
	t := &redisTransport{opts: asynq.RedisClientOpt{Addr: net.JoinHostPort(host, strconv.Itoa(port))}}
	if t.opts.Username, err = cfg.String("username", ""); err != nil {
		return nil, err
	}
	if t.opts.Password, err = cfg.String("password", ""); err != nil {
		return nil, err
	}
	if t.opts.DB, err = cfg.Int("db", 0); err != nil {
		return nil, err
	}
	if t.queue, err = cfg.String("queue", defaultRedisQueue); err != nil {
		return nil, err
	}
	if t.sleep, err = cfg.Seconds("sleep", 0); err != nil {
		return nil, err
	}
	t.log = transportLog("redis").WithFields(logrus.Fields{
		"addr":  t.opts.Addr,
		"queue": t.queue,
	})
	return t, nil
}

func (r *redisTransport) Configure(_ context.Context) (Client, error) {
	r.client = asynq.NewClient(r.opts)
	r.inspector = asynq.NewInspector(r.opts)

	before, err := r.queueSize()
	if err != nil {
		return nil, connectionFailed(err, "could not inspect queue")
	}
	r.before = before
	r.log.WithField("tasks", before).Debug("baseline taken")
	return r.client, nil
}

func (r *redisTransport) queueSize() (int64, error) {
	queues, err := r.inspector.Queues()
	if err != nil {
		return 0, err
	}
	for _, q := range queues {
		if q != r.queue {
			continue
		}
		info, err := r.inspector.GetQueueInfo(q)
		if err != nil {
			return 0, err
		}
		return int64(info.Size), nil
	}
	return 0, nil
}

func (r *redisTransport) Send(ctx context.Context, c Client, rec Record) error {
	client, ok := c.(*asynq.Client)
	if !ok {
		return foreignClient("redis", c)
	}
	body, err := encodeRecord(rec)
	if err != nil {
		return deliveryFailed(err, "could not encode record")
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return deliveryFailed(err, "could not compress record")
	}
	if _, err = zw.Write(body); err != nil {
		return deliveryFailed(err, "could not compress record")
	}
	// ensure all data is written
	if err := zw.Close(); err != nil {
		return deliveryFailed(err, "could not compress record")
	}

	if _, err := client.EnqueueContext(ctx, asynq.NewTask(RecordTaskType, buf.Bytes()), asynq.Queue(r.queue)); err != nil {
		return deliveryFailed(err, "enqueue failed")
	}
	return nil
}

func (r *redisTransport) Close() {
	if r.client != nil {
		if err := r.client.Close(); err != nil {
			r.log.WithError(err).Warn("client close failed")
		}
		r.client = nil
	}
	if r.inspector != nil {
		if err := r.inspector.Close(); err != nil {
			r.log.WithError(err).Warn("inspector close failed")
		}
		r.inspector = nil
	}
}

func (r *redisTransport) Verify(ctx context.Context) (*Report, error) {
	if r.inspector == nil {
		return nil, errors.Wrap(ErrVerify, "transport is not configured")
	}
	if err := settle(ctx, r.sleep); err != nil {
		return nil, errors.Wrap(ErrVerify, err.Error())
	}
	after, err := r.queueSize()
	if err != nil {
		return nil, errors.Wrap(ErrVerify, err.Error())
	}
	return countReport("tasks", r.before, after), nil
}
