package config

// EnvPrefix namespaces every environment variable consumed by the service.
const EnvPrefix = "trolley"

const (
	AppEnvDev     = "dev"
	AppEnvStaging = "staging"
	AppEnvProd    = "prod"
)

// Environment variable names referenced outside struct tags (error messages,
// tests, tooling).
const (
	EnvAppEnv   = "TROLLEY_APP_ENV"
	EnvPort     = "TROLLEY_APP_PORT"
	EnvDBDSN    = "TROLLEY_DB_DSN"
	EnvDBHost   = "TROLLEY_DB_HOST"
	EnvDBUser   = "TROLLEY_DB_USER"
	EnvDBName   = "TROLLEY_DB_NAME"
	EnvRedisURL = "TROLLEY_REDIS_URL"

	EnvExpirationInterval = "TROLLEY_EXPIRATION_INTERVAL"
	EnvExpirationTimeout  = "TROLLEY_EXPIRATION_TIMEOUT"

	EnvGCPProjectID     = "TROLLEY_GCP_PROJECT_ID"
	EnvAnalyticsEnabled = "TROLLEY_ANALYTICS_ENABLED"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
