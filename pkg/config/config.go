package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	License       LicenseConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KEYGATE_APP_ENV" required:"true"`
	Port         string `envconfig:"KEYGATE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KEYGATE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KEYGATE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"KEYGATE_DB_DSN"`
	Driver string `envconfig:"KEYGATE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KEYGATE_DB_HOST"`
	LegacyPort     int    `envconfig:"KEYGATE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KEYGATE_DB_USER"`
	LegacyPassword string `envconfig:"KEYGATE_DB_PASSWORD"`
	LegacyName     string `envconfig:"KEYGATE_DB_NAME"`
	LegacySSLMode  string `envconfig:"KEYGATE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KEYGATE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KEYGATE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KEYGATE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KEYGATE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the embedded sqlite driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"KEYGATE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KEYGATE_REDIS_ADDR"`
	Password     string        `envconfig:"KEYGATE_REDIS_PASSWORD"`
	DB           int           `envconfig:"KEYGATE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KEYGATE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KEYGATE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KEYGATE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KEYGATE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KEYGATE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"KEYGATE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"KEYGATE_JWT_ISSUER" required:"true"`
	AdminExpirationMinutes int    `envconfig:"KEYGATE_JWT_ADMIN_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"KEYGATE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

// LicenseConfig carries the activation protocol tunables. These are passed
// explicitly into the ledger and token service at construction instead of
// living in ambient globals.
type LicenseConfig struct {
	HeartbeatTimeout    time.Duration `envconfig:"KEYGATE_HEARTBEAT_TIMEOUT" default:"120s"`
	SessionTTLMinutes   int           `envconfig:"KEYGATE_SESSION_TTL_MINUTES" default:"120"`
	OverwriteDeviceName bool          `envconfig:"KEYGATE_DEVICE_NAME_OVERWRITE" default:"false"`
}

// SessionTTL returns the session token TTL configured in minutes.
func (l LicenseConfig) SessionTTL() time.Duration {
	return time.Duration(l.SessionTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"KEYGATE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"KEYGATE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"KEYGATE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"KEYGATE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"KEYGATE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow      time.Duration `envconfig:"KEYGATE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit  int           `envconfig:"KEYGATE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit     int           `envconfig:"KEYGATE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	ActivateWindow   time.Duration `envconfig:"KEYGATE_AUTH_RATE_LIMIT_ACTIVATE_WINDOW" default:"1m"`
	ActivateKeyLimit int           `envconfig:"KEYGATE_AUTH_RATE_LIMIT_ACTIVATE_KEY_LIMIT" default:"10"`
	ActivateIPLimit  int           `envconfig:"KEYGATE_AUTH_RATE_LIMIT_ACTIVATE_IP_LIMIT" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"KEYGATE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required when the sqlite driver is selected", EnvDBDSN)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
