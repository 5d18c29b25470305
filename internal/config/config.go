package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	KV         KVConfig         `mapstructure:"kv"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Background BackgroundConfig `mapstructure:"background"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

// KVConfig selects the backend for the persistent key-value store that holds
// the watermark, the last window snapshot, the permission flag and cache entries.
type KVConfig struct {
	Backend   string      `mapstructure:"backend"`
	KeyPrefix string      `mapstructure:"key_prefix"`
	Redis     RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ProviderConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Token   string        `mapstructure:"token"`
}

type PipelineConfig struct {
	MaxConcurrentCalls int           `mapstructure:"max_concurrent_calls"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl"`
	Timezone           string        `mapstructure:"timezone"`
}

type BackgroundConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	MinimumFetchInterval time.Duration `mapstructure:"minimum_fetch_interval"`
	StopOnTerminate      bool          `mapstructure:"stop_on_terminate"`
	StartOnBoot          bool          `mapstructure:"start_on_boot"`
	EnableHeadless       bool          `mapstructure:"enable_headless"`
	DefaultLookback      time.Duration `mapstructure:"default_lookback"`
	TaskTimeout          time.Duration `mapstructure:"task_timeout"`
	HistoryLimit         int           `mapstructure:"history_limit"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 2)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("kv.backend", "db")
	v.SetDefault("kv.key_prefix", "")
	v.SetDefault("kv.redis.addr", "127.0.0.1:6379")
	v.SetDefault("kv.redis.password", "")
	v.SetDefault("kv.redis.db", 0)
	v.SetDefault("provider.base_url", "http://127.0.0.1:8787")
	v.SetDefault("provider.timeout", "15s")
	v.SetDefault("provider.token", "")
	v.SetDefault("pipeline.max_concurrent_calls", 3)
	v.SetDefault("pipeline.cache_ttl", "24h")
	v.SetDefault("pipeline.timezone", "Local")

	// Mirrors the mobile background-fetch registration: 15 minute cadence,
	// keep running after terminate, start on boot, accept headless events.
	v.SetDefault("background.enabled", true)
	v.SetDefault("background.minimum_fetch_interval", "15m")
	v.SetDefault("background.stop_on_terminate", false)
	v.SetDefault("background.start_on_boot", true)
	v.SetDefault("background.enable_headless", true)
	v.SetDefault("background.default_lookback", "24h")
	v.SetDefault("background.task_timeout", "10m")
	v.SetDefault("background.history_limit", 50)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Location resolves the pipeline timezone used to compute local day bounds.
func (c PipelineConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}
