package feeder

import (
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
)

type constructor func(cfg Config) (Transport, error)

type kind struct {
	build      constructor
	verifiable bool
	// defaults computes resolution-time defaults, such as date based names.
	defaults func(now time.Time) Config
}

var kinds = map[string]kind{
	"file":          {build: newFileTransport, verifiable: true},
	"amqp":          {build: newAMQPTransport},
	"udp":           {build: newUDPTransport},
	"stream":        {build: newStreamTransport},
	"elasticsearch": {build: newElasticsearchTransport, verifiable: true, defaults: elasticsearchDefaults},
	"logentries":    {build: newLogentriesTransport},
	"loggly":        {build: newLogglyTransport},
	"mongodb":       {build: newMongoDBTransport, verifiable: true},
	"gelf":          {build: newGelfTransport},
	"redis":         {build: newRedisTransport, verifiable: true},
	"kafka":         {build: newKafkaTransport},
}

// DefaultIndexName is the daily search index name, e.g. logstash-2024.3.7.
func DefaultIndexName(t time.Time) string {
	return fmt.Sprintf("logstash-%d.%d.%d", t.Year(), int(t.Month()), t.Day())
}

func elasticsearchDefaults(now time.Time) Config {
	return Config{"index": DefaultIndexName(now)}
}

// Registry maps transport names to constructors.
type Registry struct {
	now func() time.Time
}

type RegistryOption func(*Registry)

// WithClock sets the clock used to compute date derived defaults.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Kinds returns the supported transport names in sorted order.
func (r *Registry) Kinds() []string {
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Verifiable reports whether transports of the named kind implement Verifier.
func (r *Registry) Verifiable(name string) bool {
	return kinds[name].verifiable
}

// Resolve returns cfg with the kind's resolution-time defaults applied.
func (r *Registry) Resolve(name string, cfg Config) (Config, error) {
	k, ok := kinds[name]
	if !ok {
		return nil, errors.Wrapf(ErrConfig, "unknown transport %q", name)
	}
	if k.defaults == nil {
		return cfg.with(nil), nil
	}
	return cfg.with(k.defaults(r.now())), nil
}

// Build resolves cfg and constructs a transport of the named kind. No I/O is
// performed.
func (r *Registry) Build(name string, cfg Config) (Transport, error) {
	resolved, err := r.Resolve(name, cfg)
	if err != nil {
		return nil, err
	}
	t, err := kinds[name].build(resolved)
	if err != nil {
		return nil, errors.WithMessage(err, name)
	}
	return t, nil
}
