// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads gatekeeper's YAML configuration. Values come from
// built-in defaults, then an optional file, then command-line flags.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/command"
	"github.com/holomush/gatekeeper/internal/gate"
	"github.com/holomush/gatekeeper/internal/logging"
	"github.com/holomush/gatekeeper/internal/store"
	"github.com/holomush/gatekeeper/internal/xdg"
)

// DatabaseURLEnv is consulted when the postgres backend has no DSN.
const DatabaseURLEnv = "DATABASE_URL"

// Config is the root of the configuration file.
type Config struct {
	Storage      Storage      `koanf:"storage" json:"storage"`
	Auth         Auth         `koanf:"auth" json:"auth"`
	Sessions     Sessions     `koanf:"sessions" json:"sessions"`
	Security     Security     `koanf:"security" json:"security"`
	Restrictions Restrictions `koanf:"restrictions" json:"restrictions"`
	Audit        Audit        `koanf:"audit" json:"audit"`
	Logging      Logging      `koanf:"logging" json:"logging"`
	Throttle     Throttle     `koanf:"throttle" json:"throttle"`
	Language     string       `koanf:"language" json:"language" validate:"oneof=en ru" jsonschema:"enum=en,enum=ru,description=Reply language"`
	MetricsAddr  string       `koanf:"metrics_addr" json:"metrics_addr" validate:"omitempty,hostname_port" jsonschema:"description=Observability listen address; empty disables"`
	ListenAddr   string       `koanf:"listen_addr" json:"listen_addr" validate:"omitempty,hostname_port" jsonschema:"description=Line protocol listen address; empty disables"`
}

// Storage selects and tunes the persistence backend.
type Storage struct {
	Backend         string        `koanf:"backend" json:"backend" validate:"oneof=sqlite postgres" jsonschema:"enum=sqlite,enum=postgres"`
	DSN             string        `koanf:"dsn" json:"dsn" validate:"required_if=Backend postgres" jsonschema:"description=PostgreSQL connection URL"`
	Path            string        `koanf:"path" json:"path" validate:"required_if=Backend sqlite" jsonschema:"description=SQLite database file"`
	TablePrefix     string        `koanf:"table_prefix" json:"table_prefix" validate:"omitempty,max=32"`
	Timeout         time.Duration `koanf:"timeout" json:"timeout" validate:"gt=0"`
	ConnectAttempts int           `koanf:"connect_attempts" json:"connect_attempts" validate:"gte=1"`
}

// Auth holds the login and registration policy.
type Auth struct {
	RegistrationEnabled bool          `koanf:"registration_enabled" json:"registration_enabled"`
	MinPasswordLength   int           `koanf:"min_password_length" json:"min_password_length" validate:"gte=1"`
	MaxPasswordLength   int           `koanf:"max_password_length" json:"max_password_length" validate:"gtefield=MinPasswordLength"`
	MaxLoginAttempts    int           `koanf:"max_login_attempts" json:"max_login_attempts" validate:"gte=1"`
	LockoutDuration     time.Duration `koanf:"lockout_duration" json:"lockout_duration" validate:"gte=0" jsonschema:"description=0 disables enforced lockout"`
	Captcha             Captcha       `koanf:"captcha" json:"captcha"`
}

// Captcha configures the login challenge.
type Captcha struct {
	Enabled       bool `koanf:"enabled" json:"enabled"`
	AfterAttempts int  `koanf:"after_attempts" json:"after_attempts" validate:"gte=1"`
}

// Sessions configures persistent login sessions.
type Sessions struct {
	Enabled       bool          `koanf:"enabled" json:"enabled"`
	Duration      time.Duration `koanf:"duration" json:"duration" validate:"gt=0"`
	Backend       string        `koanf:"backend" json:"backend" validate:"oneof=database redis" jsonschema:"enum=database,enum=redis"`
	RedisURL      string        `koanf:"redis_url" json:"redis_url" validate:"required_if=Backend redis"`
	SweepInterval time.Duration `koanf:"sweep_interval" json:"sweep_interval" validate:"gt=0"`
}

// Security holds password rules.
type Security struct {
	ForceSecurePassword bool   `koanf:"force_secure_password" json:"force_secure_password"`
	HashAlgorithm       string `koanf:"hash_algorithm" json:"hash_algorithm" validate:"oneof=argon2id sha256" jsonschema:"enum=argon2id,enum=sha256"`
}

// Restrictions lists what unauthenticated players may not do.
type Restrictions struct {
	BlockChat       bool     `koanf:"block_chat" json:"block_chat"`
	BlockMovement   bool     `koanf:"block_movement" json:"block_movement"`
	BlockCommands   bool     `koanf:"block_commands" json:"block_commands"`
	BlockInventory  bool     `koanf:"block_inventory" json:"block_inventory"`
	AllowedCommands []string `koanf:"allowed_commands" json:"allowed_commands" validate:"dive,required" jsonschema:"description=Glob patterns matched against the command name"`
}

// Audit selects which events reach the audit trail.
type Audit struct {
	Enabled          bool `koanf:"enabled" json:"enabled"`
	LogLoginAttempts bool `koanf:"log_login_attempts" json:"log_login_attempts"`
	LogRegistrations bool `koanf:"log_registrations" json:"log_registrations"`
}

// Logging selects the log format and level.
type Logging struct {
	Format string `koanf:"format" json:"format" validate:"oneof=json text" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Throttle limits how often unauthenticated players may run login commands.
type Throttle struct {
	Burst      int           `koanf:"burst" json:"burst" validate:"gte=1"`
	Rate       float64       `koanf:"rate" json:"rate" validate:"gt=0" jsonschema:"description=Tokens refilled per second"`
	IdleMaxAge time.Duration `koanf:"idle_max_age" json:"idle_max_age" validate:"gt=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	policy := auth.DefaultPolicy()
	restrictions := gate.DefaultRestrictions()
	audit := auth.DefaultAuditFilter()
	return Config{
		Storage: Storage{
			Backend:         string(store.DriverSQLite),
			Path:            filepath.Join(xdg.DataDir(), "gatekeeper.db"),
			Timeout:         auth.DefaultStorageTimeout,
			ConnectAttempts: 5,
		},
		Auth: Auth{
			RegistrationEnabled: policy.RegistrationEnabled,
			MinPasswordLength:   policy.MinPasswordLength,
			MaxPasswordLength:   policy.MaxPasswordLength,
			MaxLoginAttempts:    policy.MaxLoginAttempts,
			LockoutDuration:     policy.LockoutDuration,
			Captcha: Captcha{
				Enabled:       policy.CaptchaEnabled,
				AfterAttempts: policy.CaptchaAfterAttempts,
			},
		},
		Sessions: Sessions{
			Enabled:       policy.SessionsEnabled,
			Duration:      policy.SessionDuration,
			Backend:       store.SessionsDatabase,
			RedisURL:      "redis://localhost:6379/0",
			SweepInterval: auth.DefaultSweepInterval,
		},
		Security: Security{
			ForceSecurePassword: policy.RequireSecurePassword,
			HashAlgorithm:       auth.AlgorithmArgon2id,
		},
		Restrictions: Restrictions{
			BlockChat:       restrictions.BlockChat,
			BlockMovement:   restrictions.BlockMovement,
			BlockCommands:   restrictions.BlockCommands,
			BlockInventory:  restrictions.BlockInventory,
			AllowedCommands: restrictions.AllowedCommands,
		},
		Audit: Audit{
			Enabled:          audit.Enabled,
			LogLoginAttempts: audit.LogLoginAttempts,
			LogRegistrations: audit.LogRegistrations,
		},
		Logging: Logging{Format: "json", Level: "info"},
		Throttle: Throttle{
			Burst:      command.DefaultBurstCapacity,
			Rate:       command.DefaultSustainedRate,
			IdleMaxAge: command.DefaultIdleMaxAge,
		},
		Language:    "en",
		MetricsAddr: "127.0.0.1:9100",
	}
}

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"storage-backend": "storage.backend",
	"storage-dsn":     "storage.dsn",
	"storage-path":    "storage.path",
	"table-prefix":    "storage.table_prefix",
	"session-backend": "sessions.backend",
	"redis-url":       "sessions.redis_url",
	"log-format":      "logging.format",
	"log-level":       "logging.level",
	"language":        "language",
	"metrics-addr":    "metrics_addr",
	"listen-addr":     "listen_addr",
}

// RegisterFlags adds the overridable settings to fs. Only flags the user
// sets take effect; unset flags never mask file values.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("storage-backend", "", "storage backend (sqlite or postgres)")
	fs.String("storage-dsn", "", "PostgreSQL connection URL")
	fs.String("storage-path", "", "SQLite database file")
	fs.String("table-prefix", "", "prefix for table and key names")
	fs.String("session-backend", "", "session backend (database or redis)")
	fs.String("redis-url", "", "Redis URL for the redis session backend")
	fs.String("log-format", "", "log format (json or text)")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("language", "", "reply language (en or ru)")
	fs.String("metrics-addr", "", "observability listen address")
	fs.String("listen-addr", "", "line protocol listen address")
}

// Load builds a Config from defaults, the file at path (skipped when empty),
// and any changed flags in fs (skipped when nil). The result is validated.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, oops.Code("CONFIG_DECODE_FAILED").With("path", path).Wrap(err)
	}
	// Decoding into a populated slice keeps trailing defaults; lists replace.
	if k.Exists("restrictions.allowed_commands") {
		cfg.Restrictions.AllowedCommands = k.Strings("restrictions.allowed_commands")
	}

	if cfg.Storage.Backend == string(store.DriverPostgres) && cfg.Storage.DSN == "" {
		cfg.Storage.DSN = os.Getenv(DatabaseURLEnv)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field constraint and the derived auth policy.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields = append(fields, fe.Namespace()+" ("+fe.Tag()+")")
			}
			return oops.Code("CONFIG_INVALID").
				With("fields", fields).
				Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := c.Policy().Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return nil
}

// Policy converts the auth, sessions, and security sections.
func (c Config) Policy() auth.Policy {
	return auth.Policy{
		RegistrationEnabled:   c.Auth.RegistrationEnabled,
		MinPasswordLength:     c.Auth.MinPasswordLength,
		MaxPasswordLength:     c.Auth.MaxPasswordLength,
		MaxLoginAttempts:      c.Auth.MaxLoginAttempts,
		LockoutDuration:       c.Auth.LockoutDuration,
		CaptchaEnabled:        c.Auth.Captcha.Enabled,
		CaptchaAfterAttempts:  c.Auth.Captcha.AfterAttempts,
		SessionsEnabled:       c.Sessions.Enabled,
		SessionDuration:       c.Sessions.Duration,
		RequireSecurePassword: c.Security.ForceSecurePassword,
	}
}

// StoreConfig converts the storage and sessions sections.
func (c Config) StoreConfig(migrate bool) store.Config {
	return store.Config{
		Driver:          store.Driver(c.Storage.Backend),
		DSN:             c.Storage.DSN,
		Path:            c.Storage.Path,
		TablePrefix:     c.Storage.TablePrefix,
		ConnectAttempts: c.Storage.ConnectAttempts,
		SessionBackend:  c.Sessions.Backend,
		RedisURL:        c.Sessions.RedisURL,
		Migrate:         migrate,
	}
}

// AuditFilter converts the audit section.
func (c Config) AuditFilter() auth.AuditFilter {
	return auth.AuditFilter{
		Enabled:          c.Audit.Enabled,
		LogLoginAttempts: c.Audit.LogLoginAttempts,
		LogRegistrations: c.Audit.LogRegistrations,
	}
}

// GateRestrictions converts the restrictions section. A bare "?" is
// escaped so it matches the literal command rather than any single rune.
func (c Config) GateRestrictions() gate.Restrictions {
	allowed := make([]string, 0, len(c.Restrictions.AllowedCommands))
	for _, pattern := range c.Restrictions.AllowedCommands {
		if pattern == "?" {
			pattern = `\?`
		}
		allowed = append(allowed, pattern)
	}
	return gate.Restrictions{
		BlockChat:       c.Restrictions.BlockChat,
		BlockMovement:   c.Restrictions.BlockMovement,
		BlockCommands:   c.Restrictions.BlockCommands,
		BlockInventory:  c.Restrictions.BlockInventory,
		AllowedCommands: allowed,
	}
}

// ThrottleConfig converts the throttle section.
func (c Config) ThrottleConfig() command.ThrottleConfig {
	return command.ThrottleConfig{
		BurstCapacity: c.Throttle.Burst,
		SustainedRate: c.Throttle.Rate,
		IdleMaxAge:    c.Throttle.IdleMaxAge,
	}
}

// LoggingOptions converts the logging section.
func (c Config) LoggingOptions() logging.Options {
	return logging.Options{Format: c.Logging.Format, Level: c.Logging.Level}
}

// DefaultPath is the config file used when none is given, if it exists.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigDir(), "gatekeeper.yaml")
}
