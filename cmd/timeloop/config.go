package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	tlerrors "github.com/InkSha/time-loop/pkg/common/errors"
	"github.com/InkSha/time-loop/pkg/common/validation"
	"github.com/InkSha/time-loop/pkg/logging"
)

const module = "timeloop-cli"

// FileConfig is the YAML document read by the run and validate commands.
type FileConfig struct {
	Name     string         `yaml:"name"`
	Delay    time.Duration  `yaml:"delay"`
	Pathname string         `yaml:"pathname"`
	Timezone string         `yaml:"timezone"`
	Workers  int            `yaml:"workers"`
	Log      logging.Config `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tasks    []TaskConfig   `yaml:"tasks"`
	Routes   []RouteConfig  `yaml:"routes"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr      string `yaml:"addr"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// TaskConfig describes a task that logs Message every time it runs.
type TaskConfig struct {
	Name      string        `yaml:"name"`
	Interval  time.Duration `yaml:"interval"`
	Cron      string        `yaml:"cron"`
	Delay     time.Duration `yaml:"delay"`
	Once      bool          `yaml:"once"`
	Count     int           `yaml:"count"`
	KeepAlive bool          `yaml:"keep_alive"`
	Replace   bool          `yaml:"replace"`
	Async     bool          `yaml:"async"`
	Message   string        `yaml:"message"`
	Fail      bool          `yaml:"fail"`
}

// RouteConfig switches the loop context to Pathname once After has elapsed.
type RouteConfig struct {
	After    time.Duration `yaml:"after"`
	Pathname string        `yaml:"pathname"`
}

// LoadConfig reads and validates the YAML file at path.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML document, rejecting unknown keys.
func ParseConfig(data []byte) (*FileConfig, error) {
	cfg := &FileConfig{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the loop itself does not check. Task schedules
// are validated on registration.
func (c *FileConfig) Validate() error {
	if err := validation.ValidateNonNegativeDuration(module, "delay", c.Delay); err != nil {
		return err
	}
	if c.Workers < 0 {
		return validation.ValidatePositive(module, "workers", c.Workers)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone %q: %w", c.Timezone, err)
		}
	}
	seen := make(map[string]struct{}, len(c.Tasks))
	for i, t := range c.Tasks {
		if err := validation.ValidateNotEmpty(module, fmt.Sprintf("tasks[%d].name", i), t.Name); err != nil {
			return err
		}
		if _, dup := seen[t.Name]; dup && !t.Replace && !t.KeepAlive {
			return tlerrors.NewRepeatTaskError(t.Name)
		}
		seen[t.Name] = struct{}{}
	}
	for i, r := range c.Routes {
		if err := validation.ValidateNotEmpty(module, fmt.Sprintf("routes[%d].pathname", i), r.Pathname); err != nil {
			return err
		}
		if err := validation.ValidateNonNegativeDuration(module, fmt.Sprintf("routes[%d].after", i), r.After); err != nil {
			return err
		}
	}
	return nil
}

// Location resolves Timezone, defaulting to the local zone.
func (c *FileConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
