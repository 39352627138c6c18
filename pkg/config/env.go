package config

const (
	EnvPrefix = "LOYALTY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StorageDriverMemory   = "memory"
	StorageDriverSQLite   = "sqlite"
	StorageDriverPostgres = "postgres"
	StorageDriverRedis    = "redis"

	EnvAppEnv          = "LOYALTY_APP_ENV"
	EnvLogLevel        = "LOYALTY_LOG_LEVEL"
	EnvAPIBaseURL      = "LOYALTY_API_BASE_URL"
	EnvAPITimeout      = "LOYALTY_API_TIMEOUT"
	EnvStorageDriver   = "LOYALTY_STORAGE_DRIVER"
	EnvStorageDSN      = "LOYALTY_STORAGE_DSN"
	EnvStorageLegacy   = "LOYALTY_STORAGE_LEGACY_TOKEN_KEY"
	EnvRedisURL        = "LOYALTY_REDIS_URL"
	EnvResetDelay      = "LOYALTY_ONBOARDING_RESET_DELAY"
	EnvJWTSecret       = "LOYALTY_JWT_SECRET"
	EnvStubAutoApprove = "LOYALTY_STUB_AUTO_APPROVE"
)
