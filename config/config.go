package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Store      StoreConfig      `mapstructure:"store"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Reports    ReportsConfig    `mapstructure:"reports"`
	Fleet      FleetConfig      `mapstructure:"fleet"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Selections SelectionsConfig `mapstructure:"selections"`
}

type ServerConfig struct {
	Address  string `mapstructure:"address"`
	HTTPPort string `mapstructure:"http_port"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres|mysql|"" (no database)
	DSN    string `mapstructure:"dsn"`
}

const (
	BackendGorm       = "gorm"
	BackendClickHouse = "clickhouse"
	BackendMemory     = "memory"
)

type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

type ClickHouseConfig struct {
	Addr     string `mapstructure:"addr"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ReportsConfig struct {
	Timezone        string `mapstructure:"timezone"`
	MaxResults      int    `mapstructure:"max_results"`
	TimestampLayout string `mapstructure:"timestamp_layout"`
	DefaultField    string `mapstructure:"default_field"`
}

type FleetConfig struct {
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Topic    string `mapstructure:"topic"`
}

type SelectionsConfig struct {
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "")
	v.SetDefault("server.http_port", "8080")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")

	v.SetDefault("database.driver", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("store.backend", "")

	v.SetDefault("clickhouse.addr", "localhost:9000")
	v.SetDefault("clickhouse.database", "coinwatch")
	v.SetDefault("clickhouse.username", "default")
	v.SetDefault("clickhouse.password", "")

	v.SetDefault("reports.timezone", "Local")
	v.SetDefault("reports.max_results", 1000)
	v.SetDefault("reports.timestamp_layout", "02/01/2006 15:04:05")
	v.SetDefault("reports.default_field", "coin")

	v.SetDefault("fleet.heartbeat_timeout", "5m")

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "coinwatch")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic", "coinwatch/devices/+/data")

	v.SetDefault("selections.idle_ttl", "30m")
}

// Load reads .env, then the optional config file (path, or coinwatch.yaml in
// . and ./config), then COINWATCH_* environment variables.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("coinwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("COINWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fills the derived store backend and checks values that would
// otherwise fail late.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("reports.timezone: %w", err)
	}
	if c.Reports.MaxResults <= 0 {
		return fmt.Errorf("reports.max_results must be positive, got %d", c.Reports.MaxResults)
	}
	if c.Fleet.HeartbeatTimeout <= 0 {
		return fmt.Errorf("fleet.heartbeat_timeout must be positive")
	}

	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
		if c.Database.Driver != "" {
			c.Store.Backend = BackendGorm
		}
	}
	switch c.Store.Backend {
	case BackendMemory, BackendClickHouse:
	case BackendGorm:
		if c.Database.Driver == "" {
			return errors.New("store.backend gorm needs database.driver")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	return nil
}

// Location is the day-bucketing location for reports.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Reports.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}
