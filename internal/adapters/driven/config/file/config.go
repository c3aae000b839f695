// Package file loads pipeline configuration from a TOML file.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
)

// Config is the full pipeline configuration. Zero values are filled
// with defaults by Load, so a partial file is fine.
type Config struct {
	Worker      WorkerConfig      `toml:"worker"`
	Queue       QueueConfig       `toml:"queue"`
	Quality     QualityConfig     `toml:"quality"`
	Chunker     ChunkerConfig     `toml:"chunker"`
	Outbox      OutboxConfig      `toml:"outbox"`
	Search      SearchConfig      `toml:"search"`
	Converter   ConverterConfig   `toml:"converter"`
	VectorIndex VectorIndexConfig `toml:"vector_index"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Callback    CallbackConfig    `toml:"callback"`
}

// WorkerConfig tunes the queue polling loop.
type WorkerConfig struct {
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	Concurrency         int `toml:"concurrency"`
}

// QueueConfig tunes retry and lease behaviour.
type QueueConfig struct {
	MaxAttempts        int `toml:"max_attempts"`
	BaseBackoffSeconds int `toml:"base_backoff_seconds"`
	LeaseSeconds       int `toml:"lease_seconds"`
}

// QualityConfig holds the extracted-text gate thresholds.
type QualityConfig struct {
	MinLength        int     `toml:"min_length"`
	MaxNoiseRatio    float64 `toml:"max_noise_ratio"`
	RejectNoiseRatio float64 `toml:"reject_noise_ratio"`
}

// ChunkerConfig tunes the local fallback chunker.
type ChunkerConfig struct {
	Size    int `toml:"size"`
	Overlap int `toml:"overlap"`
}

// OutboxConfig tunes vector synchronisation.
type OutboxConfig struct {
	BatchSize       int `toml:"batch_size"`
	IntervalSeconds int `toml:"interval_seconds"`
	DrainDelayMs    int `toml:"drain_delay_ms"`
	MaxAttempts     int `toml:"max_attempts"`
}

// SearchConfig holds retrieval defaults.
type SearchConfig struct {
	TopK  int     `toml:"top_k"`
	Alpha float64 `toml:"alpha"`
}

// ConverterConfig points at the external conversion worker.
type ConverterConfig struct {
	URL            string  `toml:"url"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	RatePerSecond  float64 `toml:"rate_per_second"`
}

// VectorIndexConfig points at the Qdrant instance. An empty URL
// disables vector search.
type VectorIndexConfig struct {
	URL        string `toml:"url"`
	APIKey     string `toml:"api_key"`
	Collection string `toml:"collection"`
	Dimensions int    `toml:"dimensions"`
}

// EmbeddingConfig points at the query embedding server. An empty URL
// disables vector search.
type EmbeddingConfig struct {
	URL string `toml:"url"`
}

// CallbackConfig configures the inbound callback listener.
type CallbackConfig struct {
	ListenAddr string `toml:"listen_addr"`
	// PublicURL is the callback address as seen by the worker; it
	// defaults to http://<listen_addr>/internal/callback.
	PublicURL string `toml:"public_url"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Worker: WorkerConfig{
			PollIntervalSeconds: 2,
			Concurrency:         1,
		},
		Queue: QueueConfig{
			MaxAttempts:        3,
			BaseBackoffSeconds: 5,
			LeaseSeconds:       300,
		},
		Quality: QualityConfig{
			MinLength:        100,
			MaxNoiseRatio:    0.3,
			RejectNoiseRatio: 0.5,
		},
		Chunker: ChunkerConfig{
			Size:    1000,
			Overlap: 200,
		},
		Outbox: OutboxConfig{
			BatchSize:       100,
			IntervalSeconds: 30,
			DrainDelayMs:    500,
			MaxAttempts:     3,
		},
		Search: SearchConfig{
			TopK:  10,
			Alpha: 0.5,
		},
		Converter: ConverterConfig{
			URL:            "http://localhost:8100",
			TimeoutSeconds: 30,
			RatePerSecond:  5,
		},
		VectorIndex: VectorIndexConfig{
			Collection: "chunks",
			Dimensions: domain.DefaultDenseDimensions,
		},
		Callback: CallbackConfig{
			ListenAddr: "127.0.0.1:9090",
		},
	}
}

// Load reads a TOML configuration file, filling unset fields with
// defaults. A missing file yields the defaults. If path is empty,
// ~/.sercha-pipeline/config.toml is used.
func Load(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".sercha-pipeline", "config.toml")
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills zero values left by a partial file.
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Worker.PollIntervalSeconds <= 0 {
		c.Worker.PollIntervalSeconds = d.Worker.PollIntervalSeconds
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = d.Worker.Concurrency
	}
	if c.Queue.MaxAttempts <= 0 {
		c.Queue.MaxAttempts = d.Queue.MaxAttempts
	}
	if c.Queue.BaseBackoffSeconds <= 0 {
		c.Queue.BaseBackoffSeconds = d.Queue.BaseBackoffSeconds
	}
	if c.Queue.LeaseSeconds <= 0 {
		c.Queue.LeaseSeconds = d.Queue.LeaseSeconds
	}
	if c.Quality.MinLength <= 0 {
		c.Quality.MinLength = d.Quality.MinLength
	}
	if c.Quality.MaxNoiseRatio <= 0 {
		c.Quality.MaxNoiseRatio = d.Quality.MaxNoiseRatio
	}
	if c.Quality.RejectNoiseRatio <= 0 {
		c.Quality.RejectNoiseRatio = d.Quality.RejectNoiseRatio
	}
	if c.Chunker.Size <= 0 {
		c.Chunker.Size = d.Chunker.Size
	}
	if c.Chunker.Overlap <= 0 {
		c.Chunker.Overlap = d.Chunker.Overlap
	}
	if c.Outbox.BatchSize <= 0 {
		c.Outbox.BatchSize = d.Outbox.BatchSize
	}
	if c.Outbox.IntervalSeconds <= 0 {
		c.Outbox.IntervalSeconds = d.Outbox.IntervalSeconds
	}
	if c.Outbox.DrainDelayMs <= 0 {
		c.Outbox.DrainDelayMs = d.Outbox.DrainDelayMs
	}
	if c.Outbox.MaxAttempts <= 0 {
		c.Outbox.MaxAttempts = d.Outbox.MaxAttempts
	}
	if c.Search.TopK <= 0 {
		c.Search.TopK = d.Search.TopK
	}
	if c.Search.Alpha <= 0 {
		c.Search.Alpha = d.Search.Alpha
	}
	if c.Converter.URL == "" {
		c.Converter.URL = d.Converter.URL
	}
	if c.Converter.TimeoutSeconds <= 0 {
		c.Converter.TimeoutSeconds = d.Converter.TimeoutSeconds
	}
	if c.Converter.RatePerSecond <= 0 {
		c.Converter.RatePerSecond = d.Converter.RatePerSecond
	}
	if c.VectorIndex.Collection == "" {
		c.VectorIndex.Collection = d.VectorIndex.Collection
	}
	if c.VectorIndex.Dimensions <= 0 {
		c.VectorIndex.Dimensions = d.VectorIndex.Dimensions
	}
	if c.Callback.ListenAddr == "" {
		c.Callback.ListenAddr = d.Callback.ListenAddr
	}
	if c.Callback.PublicURL == "" {
		c.Callback.PublicURL = "http://" + c.Callback.ListenAddr + "/internal/callback"
	}
}

// PollInterval returns the worker poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Worker.PollIntervalSeconds) * time.Second
}

// BaseBackoff returns the retry base backoff as a duration.
func (c *Config) BaseBackoff() time.Duration {
	return time.Duration(c.Queue.BaseBackoffSeconds) * time.Second
}

// Lease returns the queue lease duration.
func (c *Config) Lease() time.Duration {
	return time.Duration(c.Queue.LeaseSeconds) * time.Second
}

// OutboxInterval returns the outbox loop interval.
func (c *Config) OutboxInterval() time.Duration {
	return time.Duration(c.Outbox.IntervalSeconds) * time.Second
}

// OutboxDrainDelay returns the pause between outbox batches.
func (c *Config) OutboxDrainDelay() time.Duration {
	return time.Duration(c.Outbox.DrainDelayMs) * time.Millisecond
}

// ConverterTimeout returns the dispatch request timeout.
func (c *Config) ConverterTimeout() time.Duration {
	return time.Duration(c.Converter.TimeoutSeconds) * time.Second
}
