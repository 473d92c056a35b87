package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"TradeGate/pkg/util"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	CORS struct {
		AllowOrigins []string `yaml:"allow_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		BurstLimit      int           `yaml:"burst_limit"`
		BurstWindow     time.Duration `yaml:"burst_window"`
		SustainedLimit  int           `yaml:"sustained_limit"`
		SustainedWindow time.Duration `yaml:"sustained_window"`
		SweepInterval   time.Duration `yaml:"sweep_interval"`
	} `yaml:"ratelimit"`
	Validation struct {
		MaxPayloadBytes int64         `yaml:"max_payload_bytes"`
		MaxFieldLength  int           `yaml:"max_field_length"`
		TimestampSkew   time.Duration `yaml:"timestamp_skew"`
		SignatureSkew   time.Duration `yaml:"signature_skew"`
		ExemptPaths     []string      `yaml:"exempt_paths"`
	} `yaml:"validation"`
	Strikes struct {
		Enabled     bool          `yaml:"enabled"`
		Threshold   int           `yaml:"threshold"`
		Window      time.Duration `yaml:"window"`
		BanDuration time.Duration `yaml:"ban_duration"`
		Redis       struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"strikes"`
	Audit struct {
		Enabled      bool          `yaml:"enabled"`
		Backend      string        `yaml:"backend"`
		Topic        string        `yaml:"topic"`
		Table        string        `yaml:"table"`
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
	} `yaml:"audit"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := os.Getenv("AUDIT_BACKEND"); v != "" {
		c.Audit.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("AUDIT_TOPIC"); v != "" {
		c.Audit.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Strikes.Redis.Password = v
	}

	return c, nil
}

// applyDefaults fills zero values. Limits mirror the documented admission
// defaults: 10 req/s burst, 60 req/min sustained, 1 MB payload ceiling,
// 300 s general / 60 s trading timestamp tolerance.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.RateLimit.BurstLimit == 0 {
		c.RateLimit.BurstLimit = 10
	}
	if c.RateLimit.BurstWindow == 0 {
		c.RateLimit.BurstWindow = time.Second
	}
	if c.RateLimit.SustainedLimit == 0 {
		c.RateLimit.SustainedLimit = 60
	}
	if c.RateLimit.SustainedWindow == 0 {
		c.RateLimit.SustainedWindow = time.Minute
	}
	if c.RateLimit.SweepInterval == 0 {
		c.RateLimit.SweepInterval = 5 * time.Minute
	}
	if c.Validation.MaxPayloadBytes == 0 {
		c.Validation.MaxPayloadBytes = 1_000_000
	}
	if c.Validation.MaxFieldLength == 0 {
		c.Validation.MaxFieldLength = 10_000
	}
	if c.Validation.TimestampSkew == 0 {
		c.Validation.TimestampSkew = 300 * time.Second
	}
	if c.Validation.SignatureSkew == 0 {
		c.Validation.SignatureSkew = 60 * time.Second
	}
	if len(c.Validation.ExemptPaths) == 0 {
		c.Validation.ExemptPaths = []string{"/", "/health", "/metrics"}
	}
	if c.Strikes.Threshold == 0 {
		c.Strikes.Threshold = 5
	}
	if c.Strikes.Window == 0 {
		c.Strikes.Window = 10 * time.Minute
	}
	if c.Strikes.BanDuration == 0 {
		c.Strikes.BanDuration = 15 * time.Minute
	}
	if c.Audit.Topic == "" {
		c.Audit.Topic = "admission.denials"
	}
	if c.Audit.Table == "" {
		c.Audit.Table = "tradegate.admission_events"
	}
	if c.Audit.BatchSize == 0 {
		c.Audit.BatchSize = 100
	}
	if c.Audit.BatchTimeout == 0 {
		c.Audit.BatchTimeout = time.Second
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.RateLimit.BurstLimit < 1 {
		return fmt.Errorf("ratelimit.burst_limit must be positive")
	}
	if c.RateLimit.SustainedLimit < 1 {
		return fmt.Errorf("ratelimit.sustained_limit must be positive")
	}
	if c.RateLimit.BurstWindow >= c.RateLimit.SustainedWindow {
		return fmt.Errorf("ratelimit.burst_window must be shorter than ratelimit.sustained_window")
	}
	if c.Validation.MaxPayloadBytes < 1 {
		return fmt.Errorf("validation.max_payload_bytes must be positive")
	}
	if c.Audit.Enabled {
		if c.Audit.Backend != "kafka" && c.Audit.Backend != "clickhouse" {
			return fmt.Errorf("audit.backend must be 'kafka' or 'clickhouse', got '%s'", c.Audit.Backend)
		}
		if c.Audit.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when audit.backend is kafka")
		}
		if c.Audit.Backend == "clickhouse" && c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required when audit.backend is clickhouse")
		}
	}
	return nil
}
