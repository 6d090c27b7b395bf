package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/aussiebroadwan/mentorlink/pkg/httpx"
	"github.com/aussiebroadwan/mentorlink/pkg/jwtx"
)

// Store drivers selectable with AUTH_STORE_DRIVER.
const (
	StoreDriverRedis  = "redis"
	StoreDriverSQLite = "sqlite"
	StoreDriverMemory = "memory"
)

// Config is resolved once at startup from the environment.
type Config struct {
	Issuer    string `env:"AUTH_ISSUER"    envDefault:"mentorlink-auth"`
	Algorithm string `env:"AUTH_ALGORITHM" envDefault:"EdDSA"`
	NumKeys   int    `env:"AUTH_NUM_KEYS"  envDefault:"3"`

	// KeyRotationInterval replaces the signing keys periodically. Zero
	// disables rotation. Retired keys verify for AUTH_REFRESH_TTL.
	KeyRotationInterval time.Duration `env:"AUTH_KEY_ROTATION_INTERVAL" envDefault:"0s"`

	AccessTTL      time.Duration `env:"AUTH_ACCESS_TTL"       envDefault:"15m"`
	RefreshTTL     time.Duration `env:"AUTH_REFRESH_TTL"      envDefault:"168h"`
	CodeTTL        time.Duration `env:"AUTH_CODE_TTL"         envDefault:"5m"`
	CodeBytes      int           `env:"AUTH_CODE_BYTES"       envDefault:"32"`
	PendingLinkTTL time.Duration `env:"AUTH_PENDING_LINK_TTL" envDefault:"10m"`

	// SealKey encrypts social provider tokens in pending links. Empty means
	// a random key per process, which strands links across restarts.
	SealKey string `env:"AUTH_SEAL_KEY"`

	// KeyEncryptionKey encrypts the signing keys stored in SQLite. Required
	// for every driver but memory; losing it means every stored key, and so
	// every issued token, is unreadable.
	KeyEncryptionKey string `env:"AUTH_KEY_ENCRYPTION_KEY"`

	StoreDriver  string `env:"AUTH_STORE_DRIVER"  envDefault:"sqlite"`
	KeyPrefix    string `env:"AUTH_KEY_PREFIX"    envDefault:"mentorlink"`
	DatabaseFile string `env:"AUTH_DATABASE_FILE" envDefault:"auth.db"`

	Redis RedisConfig `envPrefix:"REDIS_"`

	// Overrides for the built-in rate limit profiles. Unset fields keep the
	// profile's value.
	StrictLimit   httpx.RateLimitConfig `envPrefix:"RATE_LIMIT_STRICT_"`
	ModerateLimit httpx.RateLimitConfig `envPrefix:"RATE_LIMIT_MODERATE_"`

	Env                  string        `env:"ENV"                   envDefault:"dev"`
	LogLevel             string        `env:"LOG_LEVEL"             envDefault:"info"`
	LogFormat            string        `env:"LOG_FORMAT"            envDefault:"json"`
	Port                 int           `env:"PORT"                  envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"       envDefault:"0"`
	TLS      bool   `env:"TLS"      envDefault:"false"`
	PoolSize int    `env:"POOL_SIZE"`

	DialTimeout  time.Duration `env:"DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT"`
}

// LoadConfig parses the environment and validates the result.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case StoreDriverRedis, StoreDriverSQLite, StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("AUTH_STORE_DRIVER: unsupported driver %q", c.StoreDriver))
	}

	if c.PersistentKeys() && len(c.KeyEncryptionKey) < 16 {
		errs = append(errs, errors.New("AUTH_KEY_ENCRYPTION_KEY: must be at least 16 bytes when signing keys are stored"))
	}

	switch c.Algorithm {
	case jwtx.AlgorithmEdDSA, jwtx.AlgorithmES256:
	default:
		errs = append(errs, fmt.Errorf("AUTH_ALGORITHM: unsupported algorithm %q", c.Algorithm))
	}

	if c.Issuer == "" {
		errs = append(errs, errors.New("AUTH_ISSUER: must not be empty"))
	}
	if strings.Contains(c.KeyPrefix, " ") {
		errs = append(errs, errors.New("AUTH_KEY_PREFIX: must not contain spaces"))
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"AUTH_ACCESS_TTL", c.AccessTTL},
		{"AUTH_REFRESH_TTL", c.RefreshTTL},
		{"AUTH_CODE_TTL", c.CodeTTL},
		{"AUTH_PENDING_LINK_TTL", c.PendingLinkTTL},
	}
	for _, d := range durations {
		if d.d <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive", d.name))
		}
	}
	if c.RefreshTTL > 0 && c.AccessTTL >= c.RefreshTTL {
		errs = append(errs, errors.New("AUTH_ACCESS_TTL: must be shorter than AUTH_REFRESH_TTL"))
	}
	if c.KeyRotationInterval < 0 {
		errs = append(errs, errors.New("AUTH_KEY_ROTATION_INTERVAL: must not be negative"))
	}
	if c.CodeBytes < 16 {
		errs = append(errs, errors.New("AUTH_CODE_BYTES: must be at least 16"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT: %d out of range", c.Port))
	}

	return errors.Join(errs...)
}

// PersistentKeys reports whether signing keys are kept in the database.
func (c Config) PersistentKeys() bool { return c.StoreDriver != StoreDriverMemory }

// RateLimits returns the built-in profiles with any configured override
// applied.
func (c Config) RateLimits() httpx.RateLimits {
	limits := httpx.DefaultRateLimits()
	limits.Strict = limits.Strict.Merge(c.StrictLimit)
	limits.Moderate = limits.Moderate.Merge(c.ModerateLimit)
	return limits
}
