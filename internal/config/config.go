package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/currency"
)

type Config struct {
	Log          LogConfig          `mapstructure:"log"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Data         DataConfig         `mapstructure:"data"`
	Remote       RemoteConfig       `mapstructure:"remote"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	Sync         SyncConfig         `mapstructure:"sync"`
	Checkout     CheckoutConfig     `mapstructure:"checkout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DataConfig selects the local store backend: sqlite, redis, mongo or memory.
type DataConfig struct {
	Backend    string `mapstructure:"backend"`
	SQLitePath string `mapstructure:"sqlite_path"`
	RedisAddr  string `mapstructure:"redis_addr"`
	RedisDB    int    `mapstructure:"redis_db"`
	MongoURI   string `mapstructure:"mongo_uri"`
	MongoDB    string `mapstructure:"mongo_db"`
}

type RemoteConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ConnectivityConfig struct {
	ProbeURL string        `mapstructure:"probe_url"`
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type SyncConfig struct {
	Interval           time.Duration `mapstructure:"interval"`
	PushTriesPerPass   uint          `mapstructure:"push_tries_per_pass"`
	PushInitialBackoff time.Duration `mapstructure:"push_initial_backoff"`
	PushMaxBackoff     time.Duration `mapstructure:"push_max_backoff"`
	PushMaxAttempts    int           `mapstructure:"push_max_attempts"`
}

type CheckoutConfig struct {
	Currency           string           `mapstructure:"currency"`
	DefaultShippingFee int64            `mapstructure:"default_shipping_fee"`
	ShippingFees       map[string]int64 `mapstructure:"shipping_fees"`
}

// Load reads storefront.yaml (optional) and STOREFRONT_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("storefront")
		v.AddConfigPath("./")
		v.AddConfigPath("./configs/")
		v.AddConfigPath("$HOME/.storefront/")
		v.AddConfigPath("/etc/storefront/")
	}

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Data.Backend {
	case "sqlite", "redis", "mongo", "memory":
	default:
		return fmt.Errorf("unknown data backend %q", c.Data.Backend)
	}
	if c.Remote.BaseURL == "" {
		return errors.New("remote.base_url is required")
	}
	if _, err := currency.ParseISO(c.Checkout.Currency); err != nil {
		return fmt.Errorf("checkout.currency %q is not valid: %w", c.Checkout.Currency, err)
	}
	if c.Sync.PushMaxAttempts < 1 {
		return errors.New("sync.push_max_attempts must be at least 1")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.request_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("data.backend", "sqlite")
	v.SetDefault("data.sqlite_path", "./storefront.db")
	v.SetDefault("data.redis_addr", "localhost:6379")
	v.SetDefault("data.redis_db", 0)
	v.SetDefault("data.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("data.mongo_db", "storefront")

	v.SetDefault("remote.base_url", "http://localhost:8090")
	v.SetDefault("remote.timeout", 5*time.Second)

	v.SetDefault("connectivity.probe_url", "")
	v.SetDefault("connectivity.interval", 5*time.Second)
	v.SetDefault("connectivity.timeout", 2*time.Second)

	v.SetDefault("sync.interval", time.Minute)
	v.SetDefault("sync.push_tries_per_pass", 3)
	v.SetDefault("sync.push_initial_backoff", 500*time.Millisecond)
	v.SetDefault("sync.push_max_backoff", 10*time.Second)
	v.SetDefault("sync.push_max_attempts", 10)

	v.SetDefault("checkout.currency", "KES")
	v.SetDefault("checkout.default_shipping_fee", 500)
	v.SetDefault("checkout.shipping_fees", map[string]int64{})
}

// ProbeURL falls back to the authority health endpoint when no explicit probe is set.
func (c *Config) ProbeURL() string {
	if c.Connectivity.ProbeURL != "" {
		return c.Connectivity.ProbeURL
	}
	return strings.TrimRight(c.Remote.BaseURL, "/") + "/health"
}
