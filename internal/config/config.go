package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Addr          string // API bind address, e.g., "127.0.0.1:8080" or ":8080" (Docker)
	LogDir        string // logs directory
	StorageDriver string // memory, sqlite or postgres
	StorageDSN    string // sqlite file path or postgres URL
	SlackWebhook  string // optional; notifications also go to the log

	BannerTTL        time.Duration // how long an in-app banner stays up
	InAppLimit       int           // max queued in-app notifications
	NotifyPermission bool          // whether system notifications are allowed

	PublicAPIKeys []string
	AdminAPIKeys  []string
	CORSOrigins   []string
	PublicRPM     int
	PublicBurst   int
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", "127.0.0.1:8080")
	v.SetDefault("log_dir", "logs")
	v.SetDefault("storage_driver", DriverMemory)
	v.SetDefault("storage_dsn", "")
	v.SetDefault("slack_webhook", "")
	v.SetDefault("banner_ttl_ms", 5000)
	v.SetDefault("inapp_limit", 50)
	v.SetDefault("notify_permission", true)
	v.SetDefault("public_api_keys", "")
	v.SetDefault("admin_api_keys", "")
	v.SetDefault("cors_origins", "")
	v.SetDefault("public_rpm", 120)
	v.SetDefault("public_burst", 60)
}

// Load reads the optional YAML file at path, then lets environment variables
// (ADDR, LOG_DIR, STORAGE_DRIVER, ...) override it. A missing file is not an
// error.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := fromViper(v)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds the config from environment variables alone. An invalid
// storage setup falls back to the in-memory store and negative knobs fall
// back to their defaults.
func FromEnv() Config {
	cfg := fromViper(newViper())
	if cfg.validateStorage() != nil {
		cfg.StorageDriver = DriverMemory
	}
	def := fromViper(defaultsOnly())
	if cfg.BannerTTL < 0 {
		cfg.BannerTTL = def.BannerTTL
	}
	if cfg.InAppLimit < 0 {
		cfg.InAppLimit = def.InAppLimit
	}
	if cfg.PublicRPM < 0 {
		cfg.PublicRPM = def.PublicRPM
	}
	if cfg.PublicBurst < 0 {
		cfg.PublicBurst = def.PublicBurst
	}
	return cfg
}

// defaultsOnly is newViper without the environment layer.
func defaultsOnly() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Addr:             v.GetString("addr"),
		LogDir:           v.GetString("log_dir"),
		StorageDriver:    strings.ToLower(v.GetString("storage_driver")),
		StorageDSN:       v.GetString("storage_dsn"),
		SlackWebhook:     v.GetString("slack_webhook"),
		BannerTTL:        time.Duration(v.GetInt("banner_ttl_ms")) * time.Millisecond,
		InAppLimit:       v.GetInt("inapp_limit"),
		NotifyPermission: v.GetBool("notify_permission"),
		PublicAPIKeys:    list(v, "public_api_keys"),
		AdminAPIKeys:     list(v, "admin_api_keys"),
		CORSOrigins:      list(v, "cors_origins"),
		PublicRPM:        v.GetInt("public_rpm"),
		PublicBurst:      v.GetInt("public_burst"),
	}
}

func (c Config) validate() error {
	err := c.validateStorage()
	if c.BannerTTL < 0 {
		err = multierr.Append(err, errors.New("BANNER_TTL_MS must not be negative"))
	}
	if c.InAppLimit < 0 {
		err = multierr.Append(err, errors.New("INAPP_LIMIT must not be negative"))
	}
	if c.PublicRPM < 0 || c.PublicBurst < 0 {
		err = multierr.Append(err, errors.New("PUBLIC_RPM and PUBLIC_BURST must not be negative"))
	}
	return err
}

func (c Config) validateStorage() error {
	switch c.StorageDriver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	if c.StorageDriver == DriverPostgres && c.StorageDSN == "" {
		return errors.New("postgres storage needs STORAGE_DSN")
	}
	return nil
}

// list accepts either a YAML sequence or a comma separated string.
func list(v *viper.Viper, key string) []string {
	var raw []string
	switch v.Get(key).(type) {
	case []any, []string:
		raw = v.GetStringSlice(key)
	default:
		raw = strings.Split(v.GetString(key), ",")
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
