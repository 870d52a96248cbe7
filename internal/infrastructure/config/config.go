package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Gateway  GatewayConfig
	Sync     SyncConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds JWT settings for the admin HTTP surface
type JWTConfig struct {
	Secret                string
	AccessTokenExpiration time.Duration
	Issuer                string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// GatewayConfig holds remote ERP gateway settings: endpoints, per-call
// timeouts and the token/lock policy shared by all contracts.
type GatewayConfig struct {
	LoginURL          string
	QueryURL          string
	SaveURL           string
	KeyPrefix         string // cache store key prefix
	CallTimeout       time.Duration
	LoginTimeout      time.Duration
	TokenTTL          time.Duration // token validity window
	LockTTL           time.Duration // refresh lock TTL
	LockWaitBudget    time.Duration // max time to wait for the lock
	LockPollInterval  time.Duration
	LoginMaxRetries   int
	LoginRetryDelay   time.Duration
	RequestMaxRetries int
	RequestRetryDelay time.Duration
}

// SyncConfig holds reconciliation engine settings
type SyncConfig struct {
	BatchSize          int
	InterContractDelay time.Duration
	PartnerCacheTTL    time.Duration // pass-through search cache
	LookupCacheTTL     time.Duration // operation-type lookups
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ERP_ prefix (e.g. ERP_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("ERP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
			Issuer:                v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Gateway: GatewayConfig{
			LoginURL:          v.GetString("gateway.login_url"),
			QueryURL:          v.GetString("gateway.query_url"),
			SaveURL:           v.GetString("gateway.save_url"),
			KeyPrefix:         v.GetString("gateway.key_prefix"),
			CallTimeout:       v.GetDuration("gateway.call_timeout"),
			LoginTimeout:      v.GetDuration("gateway.login_timeout"),
			TokenTTL:          v.GetDuration("gateway.token_ttl"),
			LockTTL:           v.GetDuration("gateway.lock_ttl"),
			LockWaitBudget:    v.GetDuration("gateway.lock_wait_budget"),
			LockPollInterval:  v.GetDuration("gateway.lock_poll_interval"),
			LoginMaxRetries:   v.GetInt("gateway.login_max_retries"),
			LoginRetryDelay:   v.GetDuration("gateway.login_retry_delay"),
			RequestMaxRetries: v.GetInt("gateway.request_max_retries"),
			RequestRetryDelay: v.GetDuration("gateway.request_retry_delay"),
		},
		Sync: SyncConfig{
			BatchSize:          v.GetInt("sync.batch_size"),
			InterContractDelay: v.GetDuration("sync.inter_contract_delay"),
			PartnerCacheTTL:    v.GetDuration("sync.partner_cache_ttl"),
			LookupCacheTTL:     v.GetDuration("sync.lookup_cache_ttl"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "erp-gateway"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "erp_gateway"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = 15 * time.Minute
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "erp-gateway"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// Sync runs are slow; the handler streams the result at the end
		cfg.HTTP.WriteTimeout = 120 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.Gateway.KeyPrefix == "" {
		cfg.Gateway.KeyPrefix = "gateway:"
	}
	if cfg.Gateway.CallTimeout == 0 {
		cfg.Gateway.CallTimeout = 15 * time.Second
	}
	if cfg.Gateway.LoginTimeout == 0 {
		cfg.Gateway.LoginTimeout = 10 * time.Second
	}
	if cfg.Gateway.TokenTTL == 0 {
		cfg.Gateway.TokenTTL = 20 * time.Minute
	}
	if cfg.Gateway.LockTTL == 0 {
		cfg.Gateway.LockTTL = 30 * time.Second
	}
	if cfg.Gateway.LockWaitBudget == 0 {
		cfg.Gateway.LockWaitBudget = 25 * time.Second
	}
	if cfg.Gateway.LockPollInterval == 0 {
		cfg.Gateway.LockPollInterval = 500 * time.Millisecond
	}
	if cfg.Gateway.LoginMaxRetries == 0 {
		cfg.Gateway.LoginMaxRetries = 3
	}
	if cfg.Gateway.LoginRetryDelay == 0 {
		cfg.Gateway.LoginRetryDelay = time.Second
	}
	if cfg.Gateway.RequestMaxRetries == 0 {
		cfg.Gateway.RequestMaxRetries = 2
	}
	if cfg.Gateway.RequestRetryDelay == 0 {
		cfg.Gateway.RequestRetryDelay = time.Second
	}
	if cfg.Sync.BatchSize == 0 {
		cfg.Sync.BatchSize = 100
	}
	if cfg.Sync.InterContractDelay == 0 {
		cfg.Sync.InterContractDelay = 3 * time.Second
	}
	if cfg.Sync.PartnerCacheTTL == 0 {
		cfg.Sync.PartnerCacheTTL = 10 * time.Minute
	}
	if cfg.Sync.LookupCacheTTL == 0 {
		cfg.Sync.LookupCacheTTL = 60 * time.Minute
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync.batch_size must be positive")
	}
	if c.Gateway.LockPollInterval <= 0 {
		return fmt.Errorf("gateway.lock_poll_interval must be positive")
	}
	if c.Gateway.LockWaitBudget <= c.Gateway.LockPollInterval {
		return fmt.Errorf("gateway.lock_wait_budget must exceed gateway.lock_poll_interval")
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Gateway.LoginURL == "" || c.Gateway.QueryURL == "" || c.Gateway.SaveURL == "" {
			return fmt.Errorf("gateway.login_url, gateway.query_url and gateway.save_url are required in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
