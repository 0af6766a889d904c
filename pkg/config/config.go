package config

import (
	"fmt"
	"os"
	"strings"
	"time"

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
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Kafka struct {
		Brokers          []string `yaml:"brokers"`
		BarsTopic        string   `yaml:"bars_topic"`
		PredictionsTopic string   `yaml:"predictions_topic"`
		RequiredAcks     int      `yaml:"required_acks"`
		Compression      string   `yaml:"compression"`
		Producer         struct {
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
		CandlesTable     string        `yaml:"candles_table"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr        string        `yaml:"addr"`
		Password    string        `yaml:"password"`
		DB          int           `yaml:"db"`
		SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
		CacheTTL    time.Duration `yaml:"cache_ttl"`
	} `yaml:"redis"`
	Stream struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		BarInterval    time.Duration `yaml:"bar_interval"`
	} `yaml:"stream"`
	Macrofeed struct {
		Enabled bool          `yaml:"enabled"`
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"macrofeed"`
	Forecast struct {
		Timeframe            string        `yaml:"timeframe"`
		Lookback             int           `yaml:"lookback"`
		HistoryBars          int           `yaml:"history_bars"`
		RetrainCheckInterval time.Duration `yaml:"retrain_check_interval"`
		RetrainQueue         string        `yaml:"retrain_queue"`
		Ensemble             struct {
			PerformanceWindow int     `yaml:"performance_window"`
			MinPerfSamples    int     `yaml:"min_perf_samples"`
			MCSamples         int     `yaml:"mc_samples"`
			MCSeed            int64   `yaml:"mc_seed"`
			MacroWeight       float64 `yaml:"macro_weight"`
			SentimentWeight   float64 `yaml:"sentiment_weight"`
			AdjustmentCap     float64 `yaml:"adjustment_cap"`
		} `yaml:"ensemble"`
		Drift struct {
			Capacity        int `yaml:"capacity"`
			DetectionWindow int `yaml:"detection_window"`
			BaselineWindow  int `yaml:"baseline_window"`
			MinBaseline     int `yaml:"min_baseline"`
		} `yaml:"drift"`
	} `yaml:"forecast"`
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

	if v := os.Getenv("STREAM_API_KEY"); v != "" {
		c.Stream.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Stream.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Stream.Symbols) == 0 {
		return fmt.Errorf("stream.symbols cannot be empty")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Forecast.Lookback < 2 {
		return fmt.Errorf("forecast.lookback must be at least 2, got %d", c.Forecast.Lookback)
	}
	if c.Forecast.HistoryBars <= c.Forecast.Lookback {
		return fmt.Errorf("forecast.history_bars must exceed forecast.lookback")
	}
	return nil
}
