package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App        AppConfig
	API        APIConfig
	Storage    StorageConfig
	Redis      RedisConfig
	DB         DBConfig
	Onboarding OnboardingConfig
	JWT        JWTConfig
	Password   PasswordConfig
	Stub       StubConfig
}

// Load reads the portal configuration. The remote API base URL is required.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.API.BaseURL) == "" {
		return nil, fmt.Errorf("%s is required", EnvAPIBaseURL)
	}
	if _, err := url.ParseRequestURI(cfg.API.BaseURL); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", EnvAPIBaseURL, err)
	}
	return cfg, nil
}

// LoadStub reads the configuration used by the stub API server.
func LoadStub() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, fmt.Errorf("%s is required", EnvJWTSecret)
	}
	return cfg, nil
}

func load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LOYALTY_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"LOYALTY_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LOYALTY_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"LOYALTY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// APIConfig describes the remote loyalty API. A zero Timeout leaves the
// transport defaults in charge.
type APIConfig struct {
	BaseURL   string        `envconfig:"LOYALTY_API_BASE_URL"`
	Timeout   time.Duration `envconfig:"LOYALTY_API_TIMEOUT" default:"0s"`
	UserAgent string        `envconfig:"LOYALTY_API_USER_AGENT" default:"loyalty-portal"`
}

type StorageConfig struct {
	Driver     string `envconfig:"LOYALTY_STORAGE_DRIVER" default:"sqlite"`
	SQLitePath string `envconfig:"LOYALTY_STORAGE_SQLITE_PATH" default:"portal.db"`
	DSN        string `envconfig:"LOYALTY_STORAGE_DSN"`

	IdentityKey     string `envconfig:"LOYALTY_STORAGE_IDENTITY_KEY" default:"user"`
	AccessTokenKey  string `envconfig:"LOYALTY_STORAGE_ACCESS_TOKEN_KEY" default:"accessToken"`
	RefreshTokenKey string `envconfig:"LOYALTY_STORAGE_REFRESH_TOKEN_KEY" default:"refreshToken"`
	BusinessKey     string `envconfig:"LOYALTY_STORAGE_BUSINESS_KEY" default:"business"`
	// LegacyAccessTokenKey mirrors the access token for older clients; empty disables it.
	LegacyAccessTokenKey string `envconfig:"LOYALTY_STORAGE_LEGACY_TOKEN_KEY" default:"token"`
}

func (s StorageConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case StorageDriverMemory, StorageDriverSQLite, StorageDriverRedis:
		return nil
	case StorageDriverPostgres:
		if strings.TrimSpace(s.DSN) == "" {
			return fmt.Errorf("%s is required for the postgres storage driver", EnvStorageDSN)
		}
		return nil
	default:
		return fmt.Errorf("unsupported storage driver %q", s.Driver)
	}
}

type RedisConfig struct {
	URL          string        `envconfig:"LOYALTY_REDIS_URL"`
	Address      string        `envconfig:"LOYALTY_REDIS_ADDR"`
	Password     string        `envconfig:"LOYALTY_REDIS_PASSWORD"`
	DB           int           `envconfig:"LOYALTY_REDIS_DB" default:"0"`
	Namespace    string        `envconfig:"LOYALTY_REDIS_NAMESPACE" default:"lp"`
	PoolSize     int           `envconfig:"LOYALTY_REDIS_POOL_SIZE" default:"4"`
	MinIdleConns int           `envconfig:"LOYALTY_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"LOYALTY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LOYALTY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LOYALTY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type DBConfig struct {
	MaxOpenConns    int           `envconfig:"LOYALTY_DB_MAX_OPEN_CONNS" default:"4"`
	MaxIdleConns    int           `envconfig:"LOYALTY_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"LOYALTY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LOYALTY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type OnboardingConfig struct {
	LogoMaxBytes   int64         `envconfig:"LOYALTY_ONBOARDING_LOGO_MAX_BYTES" default:"5242880"`
	BannerMaxBytes int64         `envconfig:"LOYALTY_ONBOARDING_BANNER_MAX_BYTES" default:"10485760"`
	ResetDelay     time.Duration `envconfig:"LOYALTY_ONBOARDING_RESET_DELAY" default:"3s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"LOYALTY_JWT_SECRET"`
	Issuer                 string `envconfig:"LOYALTY_JWT_ISSUER" default:"loyalty-stub"`
	ExpirationMinutes      int    `envconfig:"LOYALTY_JWT_EXPIRATION_MINUTES" default:"15"`
	RefreshTokenTTLMinutes int    `envconfig:"LOYALTY_REFRESH_TOKEN_TTL_MINUTES" default:"10080"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LOYALTY_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"LOYALTY_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"LOYALTY_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"LOYALTY_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LOYALTY_ARGON_KEY_LEN" default:"32"`
}

type StubConfig struct {
	Port        string `envconfig:"LOYALTY_STUB_PORT" default:"8085"`
	AutoApprove bool   `envconfig:"LOYALTY_STUB_AUTO_APPROVE" default:"false"`
	AdminEmail  string `envconfig:"LOYALTY_STUB_ADMIN_EMAIL"`
	AdminPass   string `envconfig:"LOYALTY_STUB_ADMIN_PASSWORD"`
	// CORSOrigins is a comma separated list; empty allows local dev origins.
	CORSOrigins []string `envconfig:"LOYALTY_STUB_CORS_ORIGINS"`
}
