package appconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/internal/httpapi"
	"github.com/MrEthical07/adminauth/store/sqlstore"
)

// EnvPrefix namespaces environment overrides, e.g. ADMINAUTH_DATABASE_DSN.
const EnvPrefix = "ADMINAUTH"

// Config is the daemon configuration read from adminauth.yaml and the
// environment.
type Config struct {
	Server   ServerConfig        `mapstructure:"server"`
	Log      LogConfig           `mapstructure:"log"`
	Database DatabaseConfig      `mapstructure:"database"`
	Redis    RedisConfig         `mapstructure:"redis"`
	JWT      JWTConfig           `mapstructure:"jwt"`
	Auth     AuthConfig          `mapstructure:"auth"`
	Audit    AuditConfig         `mapstructure:"audit"`
	Roles    map[string][]string `mapstructure:"roles"`
}

type ServerConfig struct {
	Addr                  string        `mapstructure:"addr"`
	ShutdownTimeout       time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins           []string      `mapstructure:"cors_origins"`
	MaxBodySize           int64         `mapstructure:"max_body_size"`
	AuthRequestsPerMinute int           `mapstructure:"auth_requests_per_minute"`
	Metrics               bool          `mapstructure:"metrics"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	NotifyStream string `mapstructure:"notify_stream"`
	NotifyMaxLen int64  `mapstructure:"notify_max_len"`
}

// JWTConfig selects the signing key. Secret is used for hs256; the key files
// hold raw or PEM ed25519 keys.
type JWTConfig struct {
	SigningMethod  string `mapstructure:"signing_method"`
	Secret         string `mapstructure:"secret"`
	PrivateKeyFile string `mapstructure:"private_key_file"`
	PublicKeyFile  string `mapstructure:"public_key_file"`
	Issuer         string `mapstructure:"issuer"`
	KeyID          string `mapstructure:"key_id"`
}

type AuthConfig struct {
	SessionLifetime         time.Duration `mapstructure:"session_lifetime"`
	InactivityCeiling       time.Duration `mapstructure:"inactivity_ceiling"`
	TOTPIssuer              string        `mapstructure:"totp_issuer"`
	RevealInactive          bool          `mapstructure:"reveal_inactive"`
	IPThrottle              bool          `mapstructure:"ip_throttle"`
	ResetBaseURL            string        `mapstructure:"reset_base_url"`
	ResetTokenTTL           time.Duration `mapstructure:"reset_token_ttl"`
	RevokeSessionsOnReset   bool          `mapstructure:"revoke_sessions_on_reset"`
	RequireDistinctReviewer bool          `mapstructure:"require_distinct_reviewer"`
}

// AuditConfig enables the activity_log sink.
type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
}

// SetDefaults registers every default on v so that env overrides work for
// keys absent from the config file.
func SetDefaults(v *viper.Viper) {
	server := httpapi.DefaultConfig()
	engine := adminauth.DefaultConfig()

	v.SetDefault("server.addr", server.Addr)
	v.SetDefault("server.shutdown_timeout", server.ShutdownTimeout)
	v.SetDefault("server.cors_origins", server.CORSOrigins)
	v.SetDefault("server.max_body_size", server.MaxBodySize)
	v.SetDefault("server.auth_requests_per_minute", server.AuthRequestsPerMinute)
	v.SetDefault("server.metrics", server.EnableMetrics)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("database.driver", sqlstore.DriverSQLite)
	v.SetDefault("database.dsn", "file:adminauth.db?_pragma=busy_timeout(5000)")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.notify_stream", "adminauth:notifications")
	v.SetDefault("redis.notify_max_len", 10000)

	v.SetDefault("jwt.signing_method", engine.JWT.SigningMethod)
	v.SetDefault("jwt.issuer", engine.JWT.Issuer)

	v.SetDefault("auth.session_lifetime", engine.Session.Lifetime)
	v.SetDefault("auth.inactivity_ceiling", engine.Session.InactivityCeiling)
	v.SetDefault("auth.totp_issuer", engine.TOTP.Issuer)
	v.SetDefault("auth.reveal_inactive", engine.Login.RevealInactive)
	v.SetDefault("auth.ip_throttle", engine.Login.EnableIPThrottle)
	v.SetDefault("auth.reset_base_url", engine.PasswordReset.BaseURL)
	v.SetDefault("auth.reset_token_ttl", engine.PasswordReset.TokenTTL)
	v.SetDefault("auth.revoke_sessions_on_reset", engine.PasswordReset.RevokeSessions)
	v.SetDefault("auth.require_distinct_reviewer", engine.Approval.RequireDistinctReviewer)

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.buffer_size", engine.Audit.BufferSize)
}

// Load reads path, or adminauth.yaml from the working directory and
// $HOME/.adminauth when path is empty, applies ADMINAUTH_* overrides and
// decodes the result. A missing default config file is not an error.
func Load(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("adminauth")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.adminauth")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Engine maps the daemon configuration onto the engine configuration,
// reading key files as needed.
func (c Config) Engine() (adminauth.Config, error) {
	cfg := adminauth.DefaultConfig()

	cfg.JWT.SigningMethod = strings.ToLower(c.JWT.SigningMethod)
	cfg.JWT.Issuer = c.JWT.Issuer
	cfg.JWT.KeyID = c.JWT.KeyID
	switch cfg.JWT.SigningMethod {
	case "ed25519":
		priv, err := os.ReadFile(c.JWT.PrivateKeyFile)
		if err != nil {
			return adminauth.Config{}, fmt.Errorf("read jwt private key: %w", err)
		}
		pub, err := os.ReadFile(c.JWT.PublicKeyFile)
		if err != nil {
			return adminauth.Config{}, fmt.Errorf("read jwt public key: %w", err)
		}
		cfg.JWT.PrivateKey = priv
		cfg.JWT.PublicKey = pub
	default:
		cfg.JWT.PrivateKey = []byte(c.JWT.Secret)
	}

	cfg.Session.Lifetime = c.Auth.SessionLifetime
	cfg.Session.InactivityCeiling = c.Auth.InactivityCeiling
	cfg.TOTP.Issuer = c.Auth.TOTPIssuer
	cfg.Login.RevealInactive = c.Auth.RevealInactive
	cfg.Login.EnableIPThrottle = c.Auth.IPThrottle
	cfg.PasswordReset.BaseURL = c.Auth.ResetBaseURL
	cfg.PasswordReset.TokenTTL = c.Auth.ResetTokenTTL
	cfg.PasswordReset.RevokeSessions = c.Auth.RevokeSessionsOnReset
	cfg.Approval.RequireDistinctReviewer = c.Auth.RequireDistinctReviewer

	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize
	cfg.Metrics.Enabled = c.Server.Metrics
	cfg.Metrics.EnableLatencyHistograms = c.Server.Metrics

	cfg.Redis.NotifyStream = c.Redis.NotifyStream
	cfg.Redis.NotifyMaxLen = c.Redis.NotifyMaxLen

	if err := cfg.Validate(); err != nil {
		return adminauth.Config{}, err
	}
	return cfg, nil
}

func (c Config) HTTP() httpapi.Config {
	return httpapi.Config{
		Addr:                  c.Server.Addr,
		ShutdownTimeout:       c.Server.ShutdownTimeout,
		CORSOrigins:           c.Server.CORSOrigins,
		MaxBodySize:           c.Server.MaxBodySize,
		AuthRequestsPerMinute: c.Server.AuthRequestsPerMinute,
		EnableMetrics:         c.Server.Metrics,
	}
}

func (c Config) Store() sqlstore.Config {
	return sqlstore.Config{
		Driver:          c.Database.Driver,
		DSN:             c.Database.DSN,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

func (c Config) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}

// Logger builds a JSON production logger, or a console development logger
// when Log.Development is set.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
