package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Cart         CartConfig
	RateLimit    RateLimitConfig
	Expiration   ExpirationConfig
	FeatureFlags FeatureFlagsConfig
	Analytics    AnalyticsConfig
	GCP          GCPConfig
	BigQuery     BigQueryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Analytics.validate(cfg.GCP, cfg.BigQuery); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TROLLEY_APP_ENV" required:"true"`
	Port         string `envconfig:"TROLLEY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TROLLEY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TROLLEY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TROLLEY_DB_DSN"`
	Driver string `envconfig:"TROLLEY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TROLLEY_DB_HOST"`
	LegacyPort     int    `envconfig:"TROLLEY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TROLLEY_DB_USER"`
	LegacyPassword string `envconfig:"TROLLEY_DB_PASSWORD"`
	LegacyName     string `envconfig:"TROLLEY_DB_NAME"`
	LegacySSLMode  string `envconfig:"TROLLEY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TROLLEY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TROLLEY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TROLLEY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TROLLEY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TROLLEY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TROLLEY_REDIS_ADDR"`
	Password     string        `envconfig:"TROLLEY_REDIS_PASSWORD"`
	DB           int           `envconfig:"TROLLEY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TROLLEY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TROLLEY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TROLLEY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TROLLEY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TROLLEY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CartConfig tunes the write path shared by both aggregates.
type CartConfig struct {
	RetryAttempts  int           `envconfig:"TROLLEY_CART_RETRY_ATTEMPTS" default:"3"`
	ReservationTTL time.Duration `envconfig:"TROLLEY_RESERVATION_TTL" default:"15m"`
}

// RateLimitConfig throttles the public API per client IP. Disabled unless
// both knobs are positive and redis is wired.
type RateLimitConfig struct {
	Requests int           `envconfig:"TROLLEY_RATE_LIMIT_REQUESTS" default:"120"`
	Window   time.Duration `envconfig:"TROLLEY_RATE_LIMIT_WINDOW" default:"1m"`
	Enabled  bool          `envconfig:"TROLLEY_RATE_LIMIT_ENABLED" default:"false"`
}

// ExpirationConfig drives the cart-expiration sweep.
type ExpirationConfig struct {
	Interval  time.Duration `envconfig:"TROLLEY_EXPIRATION_INTERVAL" default:"60s"`
	Timeout   time.Duration `envconfig:"TROLLEY_EXPIRATION_TIMEOUT" default:"15m"`
	LockTTL   time.Duration `envconfig:"TROLLEY_EXPIRATION_LOCK_TTL" default:"2m"`
	BatchSize int           `envconfig:"TROLLEY_EXPIRATION_BATCH_SIZE" default:"100"`
}

type FeatureFlagsConfig struct {
	AutoMigrate  bool `envconfig:"TROLLEY_AUTO_MIGRATE" default:"false"`
	SeedProducts bool `envconfig:"TROLLEY_SEED_PRODUCTS" default:"false"`
}

type AnalyticsConfig struct {
	Enabled   bool `envconfig:"TROLLEY_ANALYTICS_ENABLED" default:"false"`
	BatchSize int  `envconfig:"TROLLEY_ANALYTICS_BATCH_SIZE" default:"1"`
}

func (a AnalyticsConfig) validate(gcp GCPConfig, bq BigQueryConfig) error {
	if !a.Enabled {
		return nil
	}
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return fmt.Errorf("%s is required when %s is true", EnvGCPProjectID, EnvAnalyticsEnabled)
	}
	if strings.TrimSpace(bq.Dataset) == "" || strings.TrimSpace(bq.EventsTable) == "" {
		return fmt.Errorf("bigquery dataset and events table are required when %s is true", EnvAnalyticsEnabled)
	}
	return nil
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TROLLEY_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TROLLEY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TROLLEY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type BigQueryConfig struct {
	Dataset     string `envconfig:"TROLLEY_BIGQUERY_DATASET" default:"trolley"`
	EventsTable string `envconfig:"TROLLEY_BIGQUERY_EVENTS_TABLE" default:"domain_events"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
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
