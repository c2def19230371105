package feeder

import (
	"context"
	"iter"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Result summarises one delivery run.
type Result struct {
	Sent int
	// Verified is false when the transport has no Verifier; Report is nil
	// in that case.
	Verified bool
	Report   *Report
}

type driver struct {
	attempts int
	backoff  time.Duration
	log      logrus.FieldLogger
}

type DriverOption func(*driver)

// WithRetry retries a failed Send up to attempts times in total, doubling
// backoff after each failure.
func WithRetry(attempts int, backoff time.Duration) DriverOption {
	return func(d *driver) {
		if attempts > 0 {
			d.attempts = attempts
		}
		d.backoff = backoff
	}
}

func WithDriverLogger(l logrus.FieldLogger) DriverOption {
	return func(d *driver) {
		if l != nil {
			d.log = l
		}
	}
}

// Records adapts a fixed list of records to a record sequence.
func Records(rs ...Record) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for _, r := range rs {
			if !yield(r) {
				return
			}
		}
	}
}

// Deliver configures t once, sends every record sequentially, collects a
// report when t is a Verifier and always closes t before returning. The
// first failed Send stops the run. A nil records is an empty sequence.
func Deliver(ctx context.Context, t Transport, records iter.Seq[Record], opts ...DriverOption) (*Result, error) {
	d := &driver{attempts: 1, log: logger}
	for _, opt := range opts {
		opt(d)
	}

	res := &Result{}
	defer func() {
		t.Close()
		d.log.WithField("sent", res.Sent).Debug("transport closed")
	}()

	client, err := t.Configure(ctx)
	if err != nil {
		return res, err
	}
	d.log.Debug("transport configured")

	if records == nil {
		records = Records()
	}
	for r := range records {
		if err := d.send(ctx, t, client, r); err != nil {
			return res, errors.WithMessagef(err, "record %d", res.Sent)
		}
		res.Sent++
	}
	d.log.WithField("sent", res.Sent).Info("records delivered")

	v, ok := t.(Verifier)
	if !ok {
		d.log.Debug("transport does not support verification")
		return res, nil
	}
	report, err := v.Verify(ctx)
	if err != nil {
		return res, err
	}
	res.Verified = true
	res.Report = report
	return res, nil
}

func (d *driver) send(ctx context.Context, t Transport, c Client, r Record) error {
	backoff := d.backoff
	var err error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if err = t.Send(ctx, c, r); err == nil {
			return nil
		}
		if attempt == d.attempts {
			break
		}
		d.log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"backoff": backoff,
		}).Warn("send failed, retrying")

		select {
		case <-ctx.Done():
			return errors.WithMessage(err, ctx.Err().Error())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
