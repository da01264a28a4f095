package config

import (
	"fmt"
	"time"
)

// Config holds all configuration
type Config struct {
	Input       InputConfig
	Output      OutputConfig
	HTTP        HTTPConfig
	Concurrency ConcurrencyConfig
	Classifier  ClassifierConfig
	Dedup       DedupConfig
	Report      ReportConfig
}

type InputConfig struct {
	File       string
	MaxDomains int
}

type OutputConfig struct {
	StatsDir    string
	ResultsFile string
	LogFile     string
	MetricsAddr string

	// Postgres result store, disabled when PostgresDSN is empty
	PostgresDSN   string
	PostgresTable string
	PostgresBatch int
}

type HTTPConfig struct {
	Scheme            string
	Timeout           time.Duration
	UserAgent         string
	Streaming         bool
	VerifyTLS         bool
	RejectErrorStatus bool
}

type ConcurrencyConfig struct {
	NumWorkers     int
	QueueSize      int
	RefillInterval time.Duration
}

type ClassifierConfig struct {
	MaxBytes    int
	CloseOnHead bool
}

type DedupConfig struct {
	Enabled                  bool
	BloomFilterSize          uint
	BloomFilterFalsePositive float64
}

type ReportConfig struct {
	Interval time.Duration
}

// DefaultMaxBytes is the size cap after which classification is forced
const DefaultMaxBytes = 512 * 1024

// Default returns the configuration of a full one-million-domain sweep
func Default() *Config {
	return &Config{
		Input: InputConfig{File: "./top-1m.csv"},
		Output: OutputConfig{
			StatsDir:      "stats",
			PostgresTable: "crawl_results",
			PostgresBatch: 200,
		},
		HTTP: HTTPConfig{
			Scheme:    "https",
			Timeout:   5 * time.Second,
			UserAgent: "Mozilla/5.0 (compatible; crawl-a-million-miles/1.0)",
			Streaming: true,
		},
		Concurrency: ConcurrencyConfig{
			NumWorkers:     50,
			QueueSize:      500,
			RefillInterval: 2 * time.Second,
		},
		Classifier: ClassifierConfig{
			MaxBytes:    DefaultMaxBytes,
			CloseOnHead: true,
		},
		Dedup: DedupConfig{
			Enabled:                  true,
			BloomFilterSize:          1 << 20,
			BloomFilterFalsePositive: 1e-6,
		},
		Report: ReportConfig{Interval: 30 * time.Second},
	}
}

// Validate ensures all configuration values are coherent
func (c *Config) Validate() error {
	if c.Input.File == "" {
		return fmt.Errorf("input file cannot be empty")
	}
	if c.Input.MaxDomains < 0 {
		return fmt.Errorf("max domains must be >= 0, got %d", c.Input.MaxDomains)
	}
	if c.Concurrency.NumWorkers <= 0 {
		return fmt.Errorf("concurrency must be > 0, got %d", c.Concurrency.NumWorkers)
	}
	if c.Concurrency.QueueSize < c.Concurrency.NumWorkers {
		return fmt.Errorf("queue size (%d) must be >= concurrency (%d)", c.Concurrency.QueueSize, c.Concurrency.NumWorkers)
	}
	if c.Concurrency.RefillInterval <= 0 {
		return fmt.Errorf("refill interval must be > 0, got %s", c.Concurrency.RefillInterval)
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("HTTP timeout must be > 0, got %s", c.HTTP.Timeout)
	}
	if c.HTTP.Scheme != "http" && c.HTTP.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", c.HTTP.Scheme)
	}
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.Classifier.MaxBytes <= 0 {
		return fmt.Errorf("max bytes must be > 0, got %d", c.Classifier.MaxBytes)
	}
	if c.Dedup.Enabled && (c.Dedup.BloomFilterFalsePositive <= 0 || c.Dedup.BloomFilterFalsePositive >= 1) {
		return fmt.Errorf("bloom filter false positive rate must be between 0 and 1, got %f", c.Dedup.BloomFilterFalsePositive)
	}
	if c.Report.Interval <= 0 {
		return fmt.Errorf("stats interval must be > 0, got %s", c.Report.Interval)
	}
	if c.Output.StatsDir == "" {
		return fmt.Errorf("stats directory cannot be empty")
	}
	if c.Output.PostgresDSN != "" {
		if c.Output.PostgresTable == "" {
			return fmt.Errorf("postgres table cannot be empty")
		}
		if c.Output.PostgresBatch <= 0 {
			return fmt.Errorf("postgres batch size must be > 0, got %d", c.Output.PostgresBatch)
		}
	}
	return nil
}
