package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"CropCast/pkg/util"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"5000"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"1s"`
		DisableCORS     bool          `yaml:"disable_cors"`
		RateLimit       struct {
			Enabled bool    `yaml:"enabled"`
			RPS     float64 `yaml:"rps" default:"10"`
			Burst   int     `yaml:"burst" default:"20"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Disabled bool   `yaml:"disabled"`
		Path     string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Models struct {
		Dir           string        `yaml:"dir" default:"models"`
		Prefix        string        `yaml:"prefix" default:"prophet_model_"`
		Suffix        string        `yaml:"suffix" default:".json"`
		Watch         bool          `yaml:"watch"`
		WatchDebounce time.Duration `yaml:"watch_debounce" default:"500ms"`
	} `yaml:"models"`
	Forecast struct {
		DefaultDays int           `yaml:"default_days" default:"7"`
		MaxHorizon  int           `yaml:"max_horizon" default:"3650"`
		CacheTTL    time.Duration `yaml:"cache_ttl" default:"10m"`
	} `yaml:"forecast"`
	Cache struct {
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Backend struct {
		Type         string        `yaml:"type" default:"none"`
		BatchSize    int           `yaml:"batch_size" default:"1000"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"crop-prices"`
		ReportTopic  string   `yaml:"report_topic" default:"crop-prices-reports"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"500"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID  string        `yaml:"group_id" default:"cropcast-ingest"`
			MinBytes int           `yaml:"min_bytes" default:"1"`
			MaxBytes int           `yaml:"max_bytes" default:"10485760"`
			MaxWait  time.Duration `yaml:"max_wait" default:"1s"`
			Workers  int           `yaml:"workers" default:"2"`
			RetryMax int           `yaml:"retry_max" default:"3"`
			DLQTopic string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"default"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		AsyncInsert  bool          `yaml:"async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
	} `yaml:"clickhouse"`
	Collector struct {
		BaseURL    string        `yaml:"base_url" default:"https://api.data.gov.in/resource/9ef84268-d588-465a-a308-a864a43d0070"`
		APIKey     string        `yaml:"api_key"`
		PageSize   int           `yaml:"page_size" default:"500"`
		MaxRecords int           `yaml:"max_records" default:"20000"`
		RPS        float64       `yaml:"rps" default:"2"`
		Timeout    time.Duration `yaml:"timeout" default:"30s"`
		Commodity  string        `yaml:"commodity"`
		State      string        `yaml:"state"`
	} `yaml:"collector"`
	Cleaning struct {
		Dialect        string  `yaml:"dialect" default:"agmarknet_scrape"`
		DialectFile    string  `yaml:"dialect_file"`
		SkipFill       bool    `yaml:"skip_fill"`
		SkipDedup      bool    `yaml:"skip_dedup"`
		SkipSort       bool    `yaml:"skip_sort"`
		SkipOutliers   bool    `yaml:"skip_outliers"`
		DropOutliers   bool    `yaml:"drop_outliers"`
		DropPriceOrder bool    `yaml:"drop_price_order"`
		IQRFactor      float64 `yaml:"iqr_factor" default:"1.5"`
	} `yaml:"cleaning"`
	Training struct {
		SeasonalityMode string  `yaml:"seasonality_mode" default:"multiplicative"`
		IntervalWidth   float64 `yaml:"interval_width" default:"0.8"`
		Changepoints    int     `yaml:"changepoints" default:"25"`
		Regularization  float64 `yaml:"regularization" default:"0.1"`
		MinPoints       int     `yaml:"min_points" default:"14"`
		Workers         int     `yaml:"workers" default:"4"`
	} `yaml:"training"`
}

// Default returns a configuration holding only tag defaults.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads a YAML configuration file, fills defaults and validates it.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env when present, reads YAML, then applies environment overrides.
// An empty path skips the file and starts from defaults.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := read(path)
	if err != nil {
		return nil, err
	}

	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("API_KEY"); v != "" {
		c.Collector.APIKey = v
	}
	if v := getenv("MODEL_DIR"); v != "" {
		c.Models.Dir = v
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Enabled = true
		c.Cache.Redis.Addr = v
	}
	if v := getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend.Type {
	case "none":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty for backend kafka")
		}
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required for backend clickhouse")
		}
	default:
		return fmt.Errorf("backend.type must be 'none', 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if c.Forecast.MaxHorizon <= 0 {
		return fmt.Errorf("forecast.max_horizon must be positive")
	}
	if c.Forecast.DefaultDays <= 0 || c.Forecast.DefaultDays > c.Forecast.MaxHorizon {
		return fmt.Errorf("forecast.default_days must be in [1, %d]", c.Forecast.MaxHorizon)
	}
	if w := c.Training.IntervalWidth; w <= 0 || w >= 1 {
		return fmt.Errorf("training.interval_width must be in (0, 1), got %v", w)
	}
	if m := c.Training.SeasonalityMode; m != "additive" && m != "multiplicative" {
		return fmt.Errorf("training.seasonality_mode must be 'additive' or 'multiplicative', got '%s'", m)
	}
	if c.Models.Dir == "" {
		return fmt.Errorf("models.dir is required")
	}
	return nil
}
