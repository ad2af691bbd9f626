package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"VolMonitor/pkg/util"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"oneof=development test staging production"`
	Server      ServerConfig     `yaml:"server"`
	Log         LogConfig        `yaml:"log"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Grid        GridConfig       `yaml:"grid"`
	Analytics   AnalyticsConfig  `yaml:"analytics"`
	Source      SourceConfig     `yaml:"source"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Cache       CacheConfig      `yaml:"cache"`
	Kafka       KafkaConfig      `yaml:"kafka"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	// export endpoint limiter, requests per second per client
	ExportRPS   float64 `yaml:"export_rps" default:"2" validate:"gt=0"`
	ExportBurst int     `yaml:"export_burst" default:"4" validate:"gte=1"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type GridConfig struct {
	OptionTenors     []string `yaml:"option_tenors" default:"[\"1M\",\"3M\",\"6M\",\"1Y\",\"2Y\"]" validate:"min=1,dive,required"`
	UnderlyingTenors []string `yaml:"underlying_tenors" default:"[\"2Y\",\"5Y\",\"10Y\",\"30Y\"]" validate:"min=1,dive,required"`
}

// HorizonSet holds one value per change horizon.
type HorizonSet struct {
	Day   int `yaml:"day" validate:"gte=1"`
	Week  int `yaml:"week" validate:"gte=1"`
	Month int `yaml:"month" validate:"gte=1"`
}

type AnalyticsConfig struct {
	ZScoreWindow       int        `yaml:"zscore_window" default:"60" validate:"gte=2"`
	ExtremaWindow      int        `yaml:"extrema_window" default:"20" validate:"gte=1"`
	ChangeOffsets      HorizonSet `yaml:"change_offsets" default:"{\"Day\":1,\"Week\":5,\"Month\":20}"`
	MoverLookbacks     HorizonSet `yaml:"mover_lookbacks" default:"{\"Day\":10,\"Week\":20,\"Month\":120}"`
	RealizedHorizons   []int      `yaml:"realized_horizons" default:"[10,20,60,90,120,180]" validate:"min=1,dive,gte=2"`
	TradingDaysPerYear float64    `yaml:"trading_days_per_year" default:"252" validate:"gt=0"`
	RichCheapThreshold float64    `yaml:"rich_cheap_threshold" default:"1.3" validate:"gt=0"`
	RateUnits          string     `yaml:"rate_units" default:"percent" validate:"oneof=percent decimal bp"`
	RateAlignment      string     `yaml:"rate_alignment" default:"previous" validate:"oneof=previous exact"`
	// calendar days a previous rate observation may lag the as-of date
	RateMaxLagDays int `yaml:"rate_max_lag_days" default:"7" validate:"gte=0"`
	Workers        int `yaml:"workers" default:"4" validate:"gte=1,lte=64"`
}

type SourceConfig struct {
	Type       string `yaml:"type" default:"file" validate:"oneof=file clickhouse memory"`
	VolPattern string `yaml:"vol_pattern" default:"data/volcube/*.json"`
	RatesFile  string `yaml:"rates_file" default:"data/rates.csv"`
	// InitSchema creates the ClickHouse tables on startup.
	InitSchema bool `yaml:"init_schema" default:"true"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"volmon"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	VolTable         string        `yaml:"vol_table" default:"implied_vols"`
	RateTable        string        `yaml:"rate_table" default:"swap_rates"`
}

type CacheConfig struct {
	TTL   time.Duration `yaml:"ttl" default:"24h"`
	Redis RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"volmon:table:"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	TablesTopic  string   `yaml:"tables_topic" default:"analytics-tables"`
	UpdatesTopic string   `yaml:"updates_topic" default:"market-data-updates"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"100ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"20"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"volmon"`
		Workers    int           `yaml:"workers" default:"2"`
		BufferSize int           `yaml:"buffer_size" default:"64"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		DLQTopic   string        `yaml:"dlq_topic"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
	} `yaml:"consumer"`
}

var validate = validator.New()

// Load reads a YAML or TOML configuration file (chosen by extension), applies
// defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, filepath.Ext(path))
}

// Parse decodes raw config bytes. ext is ".yaml", ".yml" or ".toml".
func Parse(b []byte, ext string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	switch strings.ToLower(ext) {
	case ".toml":
		// TOML is re-encoded as YAML so durations and tags are handled in one place.
		var raw map[string]interface{}
		if err := toml.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		yb, err := yaml.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		b = yb
	case ".yaml", ".yml", "":
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Default returns a validated config built from defaults only.
func Default() *Config {
	c, err := Parse(nil, ".yaml")
	if err != nil {
		panic(err)
	}
	return c
}

// LoadWithEnv loads config from file and overrides with VOLMON_* environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv applies overrides from getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("VOLMON_ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := getenv("VOLMON_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VOLMON_PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v := getenv("VOLMON_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("VOLMON_SOURCE"); v != "" {
		c.Source.Type = v
	}
	if v := getenv("VOLMON_VOL_PATTERN"); v != "" {
		c.Source.VolPattern = v
	}
	if v := getenv("VOLMON_RATES_FILE"); v != "" {
		c.Source.RatesFile = v
	}
	if v := getenv("VOLMON_RATE_UNITS"); v != "" {
		c.Analytics.RateUnits = v
	}
	if v := getenv("VOLMON_CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("VOLMON_CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("VOLMON_REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Redis.Enabled = true
	}
	if v := getenv("VOLMON_REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v := getenv("VOLMON_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
		c.Kafka.Enabled = true
	}
	return nil
}

// Validate checks tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Source.Type == "file" && c.Source.VolPattern == "" {
		return fmt.Errorf("source.vol_pattern is required for file source")
	}
	seen := make(map[int]struct{}, len(c.Analytics.RealizedHorizons))
	for _, h := range c.Analytics.RealizedHorizons {
		if _, dup := seen[h]; dup {
			return fmt.Errorf("analytics.realized_horizons: duplicate horizon %d", h)
		}
		seen[h] = struct{}{}
	}
	return nil
}
