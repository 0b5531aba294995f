package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Security     SecurityConfig     `mapstructure:"security"`
	Wallet       WalletConfig       `mapstructure:"wallet"`
	Payment      PaymentConfig      `mapstructure:"payment"`
	Delivery     DeliveryConfig     `mapstructure:"delivery"`
	Notification NotificationConfig `mapstructure:"notification"`
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit"`
	S3           S3Config           `mapstructure:"s3"`
	Log          LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"` // 32-byte hex-encoded key for AES-256
}

type WalletConfig struct {
	Currency      string  `mapstructure:"currency"`
	MinDeposit    float64 `mapstructure:"min_deposit"`
	MaxDeposit    float64 `mapstructure:"max_deposit"`
	MinWithdrawal float64 `mapstructure:"min_withdrawal"`
}

type PaymentConfig struct {
	DepositSuccessRate float64       `mapstructure:"deposit_success_rate"`
	OrderSuccessRate   float64       `mapstructure:"order_success_rate"`
	Latency            time.Duration `mapstructure:"latency"`
	LockTTL            time.Duration `mapstructure:"lock_ttl"`
}

type DeliveryConfig struct {
	Delay        time.Duration `mapstructure:"delay"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	StaleAfter   time.Duration `mapstructure:"stale_after"`
	FailureRate  float64       `mapstructure:"failure_rate"`
}

type NotificationConfig struct {
	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// Enabled reports whether report export has a bucket to write to.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from .env, file and environment variables.
// Environment variables override file values. Prefix: RCS_ (Recharge Store).
// Nested keys use underscore: RCS_DATABASE_HOST, RCS_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("RCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that defaults cannot express.
func (c *Config) Validate() error {
	if c.Wallet.MinDeposit <= 0 || c.Wallet.MaxDeposit < c.Wallet.MinDeposit {
		return fmt.Errorf("wallet deposit range [%v, %v] is invalid", c.Wallet.MinDeposit, c.Wallet.MaxDeposit)
	}
	if c.Payment.DepositSuccessRate < 0 || c.Payment.DepositSuccessRate > 1 ||
		c.Payment.OrderSuccessRate < 0 || c.Payment.OrderSuccessRate > 1 {
		return fmt.Errorf("payment success rates must be within [0, 1]")
	}
	if c.Delivery.MaxAttempts < 1 {
		return fmt.Errorf("delivery.max_attempts must be at least 1")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "recharge_store")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "720h")
	v.SetDefault("jwt.issuer", "recharge-store")
	v.SetDefault("security.encryption_key", "")
	v.SetDefault("wallet.currency", "SAR")
	v.SetDefault("wallet.min_deposit", 10)
	v.SetDefault("wallet.max_deposit", 5000)
	v.SetDefault("wallet.min_withdrawal", 50)
	v.SetDefault("payment.deposit_success_rate", 0.98)
	v.SetDefault("payment.order_success_rate", 0.95)
	v.SetDefault("payment.latency", "2s")
	v.SetDefault("payment.lock_ttl", "30s")
	v.SetDefault("delivery.delay", "3s")
	v.SetDefault("delivery.poll_interval", "1s")
	v.SetDefault("delivery.batch_size", 10)
	v.SetDefault("delivery.max_attempts", 5)
	v.SetDefault("delivery.stale_after", "5m")
	v.SetDefault("delivery.failure_rate", 0.0)
	v.SetDefault("notification.retention", "2160h")
	v.SetDefault("notification.sweep_interval", "1h")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.prefix", "reports")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}
