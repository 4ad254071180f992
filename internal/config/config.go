package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the plotpipe configuration, shared by the API server and the
// embedding worker.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Queue     QueueConfig     `yaml:"queue"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Backfill  BackfillConfig  `yaml:"backfill"`
	Consumer  ConsumerConfig  `yaml:"consumer"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds document store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// QueueConfig holds the embedding job stream settings.
type QueueConfig struct {
	Stream           string `yaml:"stream"`
	Group            string `yaml:"group"`
	DeadLetterStream string `yaml:"dead_letter_stream"`
	BatchSize        int    `yaml:"batch_size"`
	VisibilitySec    int    `yaml:"visibility_sec"` // pending entries idle this long become claimable
	MaxDeliveries    int    `yaml:"max_deliveries"` // dead-letter after this many deliveries
	BlockMillis      int    `yaml:"block_millis"`   // XREADGROUP block interval
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheTTLh  int    `yaml:"cache_ttl_hours"` // 0 disables the embedding cache
}

// BackfillConfig holds candidate selection settings.
type BackfillConfig struct {
	DefaultLimit int `yaml:"default_limit"`
}

// ConsumerConfig holds per-batch processing settings for the worker.
type ConsumerConfig struct {
	TimeSafetyMillis int `yaml:"time_safety_millis"` // skip a record when less budget remains
	BatchDeadlineSec int `yaml:"batch_deadline_sec"` // time budget for one received batch
}

// StorageConfig holds document key and index settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
	Index     string `yaml:"index"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Queue.Stream == "" {
		c.Queue.Stream = "plotpipe:jobs"
	}
	if c.Queue.Group == "" {
		c.Queue.Group = "embedders"
	}
	if c.Queue.DeadLetterStream == "" {
		c.Queue.DeadLetterStream = c.Queue.Stream + ":dead"
	}
	if c.Queue.BatchSize <= 0 {
		c.Queue.BatchSize = 10
	}
	if c.Queue.VisibilitySec <= 0 {
		c.Queue.VisibilitySec = 30
	}
	if c.Queue.MaxDeliveries <= 0 {
		c.Queue.MaxDeliveries = 3
	}
	if c.Queue.BlockMillis <= 0 {
		c.Queue.BlockMillis = 5000
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Backfill.DefaultLimit <= 0 {
		c.Backfill.DefaultLimit = 50
	}
	if c.Consumer.TimeSafetyMillis <= 0 {
		c.Consumer.TimeSafetyMillis = 1000
	}
	if c.Consumer.BatchDeadlineSec <= 0 {
		c.Consumer.BatchDeadlineSec = 25
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "plotpipe:"
	}
	if c.Storage.Index == "" {
		c.Storage.Index = "idx:movies"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Queue.DeadLetterStream == c.Queue.Stream {
		return fmt.Errorf("queue.dead_letter_stream must differ from queue.stream")
	}
	// The batch deadline must leave room for at least one record after the
	// safety check, otherwise the worker spins on retriable failures.
	if c.Consumer.BatchDeadlineSec*1000 <= c.Consumer.TimeSafetyMillis {
		return fmt.Errorf(
			"consumer.batch_deadline_sec (%ds) must exceed consumer.time_safety_millis (%dms)",
			c.Consumer.BatchDeadlineSec, c.Consumer.TimeSafetyMillis,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
