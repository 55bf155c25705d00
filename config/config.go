// Package config loads server settings from defaults, an optional .env file,
// LIBRARY_* environment variables and command-line flags, in rising priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "LIBRARY"

// Config holds the settings shared by all commands.
type Config struct {
	Addr                  string        `mapstructure:"addr"`
	DBPath                string        `mapstructure:"db_path"`
	JWTSecret             string        `mapstructure:"jwt_secret"`
	BcryptCost            int           `mapstructure:"bcrypt_cost"`
	DefaultMemberPassword string        `mapstructure:"default_member_password"`
	LogLevel              string        `mapstructure:"log_level"`
	LogFormat             string        `mapstructure:"log_format"`
	ShutdownTimeout       time.Duration `mapstructure:"shutdown_timeout"`
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"addr":                    "addr",
	"db":                      "db_path",
	"jwt-secret":              "jwt_secret",
	"bcrypt-cost":             "bcrypt_cost",
	"default-member-password": "default_member_password",
	"log-level":               "log_level",
	"log-format":              "log_format",
	"shutdown-timeout":        "shutdown_timeout",
}

// RegisterFlags adds every configuration flag to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("addr", ":8080", "HTTP listen address")
	fs.String("db", "library.db", "path to the SQLite database file")
	fs.String("jwt-secret", "", "HMAC secret used to sign bearer tokens")
	fs.Int("bcrypt-cost", bcrypt.DefaultCost, "bcrypt work factor for password hashes")
	fs.String("default-member-password", "defaultpassword", "password given to members created without one")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("log-format", "json", "log format (json or console)")
	fs.Duration("shutdown-timeout", 10*time.Second, "grace period for in-flight requests on shutdown")
}

// Load resolves the configuration. Only flags the user actually set
// override environment values. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("addr", ":8080")
	v.SetDefault("db_path", "library.db")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("bcrypt_cost", bcrypt.DefaultCost)
	v.SetDefault("default_member_password", "defaultpassword")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("shutdown_timeout", 10*time.Second)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings every command depends on.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db path must not be empty")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost %d outside [%d, %d]", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// ValidateServe adds the checks needed before accepting HTTP traffic.
func (c *Config) ValidateServe() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required: pass --jwt-secret or set %s_JWT_SECRET", EnvPrefix)
	}
	if c.DefaultMemberPassword == "" {
		return errors.New("default member password must not be empty")
	}
	return nil
}
