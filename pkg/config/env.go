package config

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "DR"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv  = "DR_APP_ENV"
	EnvAppPort = "DR_APP_PORT"
	EnvDBDSN   = "DR_DB_DSN"
	EnvDBHost  = "DR_DB_HOST"
	EnvDBUser  = "DR_DB_USER"
	EnvDBName  = "DR_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
