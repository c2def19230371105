package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	feeder "github.com/viruscoding/log-feeder"
)

const envPrefix = "FEEDER_"

// runConfig is the YAML run description:
//
//	transport: elasticsearch
//	records: 1000
//	format: json
//	options:
//	  host: localhost
//	  sleep: 0
type runConfig struct {
	Transport string        `yaml:"transport"`
	Records   int           `yaml:"records"`
	Format    string        `yaml:"format"`
	Retries   int           `yaml:"retries"`
	Backoff   time.Duration `yaml:"backoff"`
	Options   feeder.Config `yaml:"options"`
}

func defaultRunConfig() *runConfig {
	return &runConfig{
		Transport: "stream",
		Records:   10,
		Format:    "text",
		Retries:   1,
		Backoff:   500 * time.Millisecond,
		Options:   feeder.Config{},
	}
}

// loadRunConfig reads path (when set) over the defaults, then applies
// FEEDER_* variables from the environment and envFile.
func loadRunConfig(path, envFile string) (*runConfig, error) {
	cfg := defaultRunConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if cfg.Options == nil {
			cfg.Options = feeder.Config{}
		}
	}

	if envFile != "" {
		// variables already set in the environment win over the file
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *runConfig) applyEnv() error {
	if v, ok := os.LookupEnv(envPrefix + "TRANSPORT"); ok && v != "" {
		c.Transport = v
	}
	if v, ok := os.LookupEnv(envPrefix + "FORMAT"); ok && v != "" {
		c.Format = v
	}
	if v, ok := os.LookupEnv(envPrefix + "RECORDS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sRECORDS: %w", envPrefix, err)
		}
		c.Records = n
	}
	return nil
}
