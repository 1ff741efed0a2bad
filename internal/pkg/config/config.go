package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Host     string
		Port     string
		Env      string
		Timezone string
	} `mapstructure:"app"`

	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	} `mapstructure:"db"`

	Cache struct {
		Host     string
		Port     string
		Password string
	} `mapstructure:"cache"`

	JWT struct {
		Secret string
	} `mapstructure:"jwt"`

	Roster struct {
		DefaultCapacity int `mapstructure:"default_capacity"`
	} `mapstructure:"roster"`

	Reconcile struct {
		At      string
		Enabled bool
	} `mapstructure:"reconcile"`

	Billing struct {
		TrialDays     int    `mapstructure:"trial_days"`
		WebhookSecret string `mapstructure:"webhook_secret"`
	} `mapstructure:"billing"`

	RateLimit struct {
		Max int
	} `mapstructure:"rate_limit"`
}

// Load reads configuration from the environment. Keys map to upper-case
// variables with dots replaced by underscores, e.g. roster.default_capacity
// is ROSTER_DEFAULT_CAPACITY. The optional YAML file at path is read first.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", "4000")
	v.SetDefault("app.env", "prod")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("db.host", "127.0.0.1")
	v.SetDefault("db.port", "3306")
	v.SetDefault("db.user", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "fleetward")
	v.SetDefault("cache.host", "localhost")
	v.SetDefault("cache.port", "6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("roster.default_capacity", 4)
	v.SetDefault("reconcile.at", "02:00")
	v.SetDefault("reconcile.enabled", true)
	v.SetDefault("billing.trial_days", 14)
	v.SetDefault("billing.webhook_secret", "")
	v.SetDefault("rate_limit.max", 120)
}

func (c Config) validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	if _, _, err := c.ReconcileClock(); err != nil {
		return fmt.Errorf("RECONCILE_AT: %w", err)
	}
	if c.Roster.DefaultCapacity <= 0 {
		return fmt.Errorf("ROSTER_DEFAULT_CAPACITY must be positive, got %d", c.Roster.DefaultCapacity)
	}
	return nil
}

// Location is the zone the daily reconciliation time is interpreted in.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.App.Timezone)
}

// ReconcileClock parses RECONCILE_AT as HH:MM.
func (c Config) ReconcileClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(c.Reconcile.At))
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

func (c Config) IsDev() bool {
	return c.App.Env == "dev"
}

func (c Config) ListenAddr() string {
	return c.App.Host + ":" + c.App.Port
}
