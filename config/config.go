// Package config loads triage settings from a YAML file and maps them
// onto the per-package configuration types. Every field is optional;
// omitted values fall back to the package defaults so a partial file
// only overrides what it names.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/WebQx/triage/limiter"
	"github.com/WebQx/triage/queue"
	"github.com/WebQx/triage/traffic"
)

// QueueSection configures the priority queue.
type QueueSection struct {
	MaxQueueSize        int `yaml:"max_queue_size"`
	ProcessingTimeoutMs int `yaml:"processing_timeout_ms"`
	TerminalHistory     int `yaml:"terminal_history"`
}

// LimiterSection configures the adaptive admission controller and the
// traffic monitor it reads from.
type LimiterSection struct {
	LowTrafficThreshold   float64 `yaml:"low_traffic_threshold"`
	HighTrafficThreshold  float64 `yaml:"high_traffic_threshold"`
	MinCeiling            int     `yaml:"min_ceiling"`
	MaxCeiling            int     `yaml:"max_ceiling"`
	DefaultCeiling        int     `yaml:"default_ceiling"`
	MonitoringIntervalMs  int     `yaml:"monitoring_interval_ms"`
	AnalysisWindowMs      int     `yaml:"analysis_window_ms"`
	AdjustmentSensitivity float64 `yaml:"adjustment_sensitivity"`
}

// WorkerSection configures the worker pool.
type WorkerSection struct {
	Concurrency    int `yaml:"concurrency"`
	PollIntervalMs int `yaml:"poll_interval_ms"`
	MaxRetries     int `yaml:"max_retries"`
}

// Config is the root of the YAML file.
type Config struct {
	Queue   QueueSection   `yaml:"queue"`
	Limiter LimiterSection `yaml:"limiter"`
	Worker  WorkerSection  `yaml:"worker"`
}

// Default returns a Config mirroring the package defaults.
func Default() Config {
	qc := queue.DefaultConfig()
	lc := limiter.DefaultConfig()
	return Config{
		Queue: QueueSection{
			MaxQueueSize:        qc.MaxSize,
			ProcessingTimeoutMs: int(qc.ProcessingTimeout / time.Millisecond),
			TerminalHistory:     qc.TerminalHistory,
		},
		Limiter: LimiterSection{
			LowTrafficThreshold:   lc.LowTrafficThreshold,
			HighTrafficThreshold:  lc.HighTrafficThreshold,
			MinCeiling:            lc.MinCeiling,
			MaxCeiling:            lc.MaxCeiling,
			DefaultCeiling:        lc.DefaultCeiling,
			MonitoringIntervalMs:  int(lc.MonitoringInterval / time.Millisecond),
			AnalysisWindowMs:      int(traffic.DefaultAnalysisWindow / time.Millisecond),
			AdjustmentSensitivity: lc.Sensitivity,
		},
		Worker: WorkerSection{
			Concurrency:    4,
			PollIntervalMs: 50,
			MaxRetries:     3,
		},
	}
}

// Load reads path, fills omitted fields with defaults, and validates
// the result. Unknown keys in the file are an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes raw YAML the same way Load does.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the mapped per-package configurations.
func (c Config) Validate() error {
	if err := c.QueueConfig().Validate(); err != nil {
		return err
	}
	if err := c.LimiterConfig().Validate(); err != nil {
		return err
	}
	return nil
}

// QueueConfig maps the queue section onto queue.Config.
func (c Config) QueueConfig() queue.Config {
	return queue.Config{
		MaxSize:           c.Queue.MaxQueueSize,
		ProcessingTimeout: time.Duration(c.Queue.ProcessingTimeoutMs) * time.Millisecond,
		TerminalHistory:   c.Queue.TerminalHistory,
	}
}

// LimiterConfig maps the limiter section onto limiter.Config.
func (c Config) LimiterConfig() limiter.Config {
	return limiter.Config{
		LowTrafficThreshold:  c.Limiter.LowTrafficThreshold,
		HighTrafficThreshold: c.Limiter.HighTrafficThreshold,
		MinCeiling:           c.Limiter.MinCeiling,
		MaxCeiling:           c.Limiter.MaxCeiling,
		DefaultCeiling:       c.Limiter.DefaultCeiling,
		MonitoringInterval:   time.Duration(c.Limiter.MonitoringIntervalMs) * time.Millisecond,
		Sensitivity:          c.Limiter.AdjustmentSensitivity,
	}
}

// AnalysisWindow returns the traffic monitor window.
func (c Config) AnalysisWindow() time.Duration {
	return time.Duration(c.Limiter.AnalysisWindowMs) * time.Millisecond
}

// PollInterval returns the worker poll interval.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Worker.PollIntervalMs) * time.Millisecond
}
