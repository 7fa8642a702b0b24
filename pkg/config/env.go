package config

// EnvPrefix is passed to envconfig; individual fields carry fully-qualified
// names so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv    = "KEYGATE_APP_ENV"
	EnvPort      = "KEYGATE_APP_PORT"
	EnvDBDSN     = "KEYGATE_DB_DSN"
	EnvDBDriver  = "KEYGATE_DB_DRIVER"
	EnvDBHost    = "KEYGATE_DB_HOST"
	EnvDBUser    = "KEYGATE_DB_USER"
	EnvDBName    = "KEYGATE_DB_NAME"
	EnvRedisURL  = "KEYGATE_REDIS_URL"
	EnvJWTSecret = "KEYGATE_JWT_SECRET"
	EnvJWTIssuer = "KEYGATE_JWT_ISSUER"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
