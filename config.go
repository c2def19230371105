package feeder

import (
	"math"
	"time"

	"github.com/spf13/cast"
)

// Config is the flat option map a transport is built from. It is read once
// by the transport constructor and never modified afterwards.
type Config map[string]any

// Has reports whether key is present with a non-nil value.
func (c Config) Has(key string) bool {
	v, ok := c[key]
	return ok && v != nil
}

// RequireString returns the value of key, failing with ErrConfig when it is
// absent or empty.
func (c Config) RequireString(key string) (string, error) {
	if !c.Has(key) {
		return "", missingKey(key)
	}
	s, err := cast.ToStringE(c[key])
	if err != nil {
		return "", invalidKey(key, err)
	}
	if s == "" {
		return "", missingKey(key)
	}
	return s, nil
}

func (c Config) String(key, def string) (string, error) {
	if !c.Has(key) {
		return def, nil
	}
	s, err := cast.ToStringE(c[key])
	if err != nil {
		return "", invalidKey(key, err)
	}
	return s, nil
}

// RequireInt is RequireString for integer keys such as ports.
func (c Config) RequireInt(key string) (int, error) {
	if !c.Has(key) {
		return 0, missingKey(key)
	}
	return c.Int(key, 0)
}

func (c Config) Int(key string, def int) (int, error) {
	if !c.Has(key) {
		return def, nil
	}
	if f, ok := c[key].(float64); ok && f != math.Trunc(f) {
		return 0, invalidKey(key, errFraction)
	}
	n, err := cast.ToIntE(c[key])
	if err != nil {
		return 0, invalidKey(key, err)
	}
	return n, nil
}

func (c Config) Float(key string, def float64) (float64, error) {
	if !c.Has(key) {
		return def, nil
	}
	f, err := cast.ToFloat64E(c[key])
	if err != nil {
		return 0, invalidKey(key, err)
	}
	return f, nil
}

func (c Config) Bool(key string, def bool) (bool, error) {
	if !c.Has(key) {
		return def, nil
	}
	b, err := cast.ToBoolE(c[key])
	if err != nil {
		return false, invalidKey(key, err)
	}
	return b, nil
}

// Seconds reads key as a (possibly fractional) number of seconds.
func (c Config) Seconds(key string, def time.Duration) (time.Duration, error) {
	if !c.Has(key) {
		return def, nil
	}
	f, err := c.Float(key, 0)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, invalidKey(key, errNegative)
	}
	return time.Duration(f * float64(time.Second)), nil
}

// with returns a copy of c with defaults filled in for absent keys.
func (c Config) with(defaults Config) Config {
	out := make(Config, len(c)+len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range c {
		if v != nil {
			out[k] = v
		}
	}
	return out
}
