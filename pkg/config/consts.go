package config

// EnvPrefix is empty because every variable carries the full VIDSTREAM_ name in
// its envconfig tag.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "VIDSTREAM_DB_DSN"
	EnvDBHost = "VIDSTREAM_DB_HOST"
	EnvDBUser = "VIDSTREAM_DB_USER"
	EnvDBName = "VIDSTREAM_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
