// Package generator produces synthetic log records for the feeder.
package generator

import (
	"fmt"
	"iter"
	"math/rand/v2"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	feeder "github.com/viruscoding/log-feeder"
)

// Format selects the shape of generated records.
type Format string

const (
	// Text records are single log lines.
	Text Format = "text"
	// JSON records are documents.
	JSON Format = "json"
)

var levels = []string{"DEBUG", "INFO", "INFO", "INFO", "WARN", "ERROR"}

var messages = []string{
	"request completed",
	"cache miss",
	"connection reset by peer",
	"user logged in",
	"job scheduled",
	"retrying upstream call",
}

// Options configures a Generator.
type Options struct {
	Count  int
	Format Format
	// Host is stamped on every record, defaults to the hostname.
	Host string
	// Now defaults to time.Now.
	Now func() time.Time
	// Seed makes level and message selection reproducible when non-zero.
	Seed uint64
}

type Generator struct {
	opts Options
}

func New(opts Options) (*Generator, error) {
	if opts.Count < 0 {
		return nil, errors.Errorf("record count must not be negative, got %d", opts.Count)
	}
	switch opts.Format {
	case "":
		opts.Format = Text
	case Text, JSON:
	default:
		return nil, errors.Errorf("unknown record format %q", opts.Format)
	}
	if opts.Host == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "localhost"
		}
		opts.Host = host
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Generator{opts: opts}, nil
}

// Records yields Count records. Each call starts a fresh sequence.
func (g *Generator) Records() iter.Seq[feeder.Record] {
	return func(yield func(feeder.Record) bool) {
		rng := g.rand()
		for i := 0; i < g.opts.Count; i++ {
			if !yield(g.record(rng, i)) {
				return
			}
		}
	}
}

func (g *Generator) rand() *rand.Rand {
	seed := g.opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed>>1|1))
}

func (g *Generator) record(rng *rand.Rand, seq int) feeder.Record {
	ts := g.opts.Now().UTC()
	level := levels[rng.IntN(len(levels))]
	msg := messages[rng.IntN(len(messages))]
	id := uuid.NewString()

	if g.opts.Format == JSON {
		return map[string]any{
			"id":        id,
			"seq":       seq,
			"timestamp": ts.Format(time.RFC3339Nano),
			"level":     level,
			"host":      g.opts.Host,
			"message":   msg,
		}
	}
	return fmt.Sprintf("%s %s %s [%s] seq=%d %s",
		ts.Format(time.RFC3339Nano), level, g.opts.Host, id, seq, msg)
}
