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
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Storage       StorageConfig
	Media         MediaConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
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
	Env          string `envconfig:"VIDSTREAM_APP_ENV" required:"true"`
	Port         string `envconfig:"VIDSTREAM_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VIDSTREAM_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VIDSTREAM_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VIDSTREAM_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VIDSTREAM_DB_DSN"`
	Driver string `envconfig:"VIDSTREAM_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VIDSTREAM_DB_HOST"`
	LegacyPort     int    `envconfig:"VIDSTREAM_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VIDSTREAM_DB_USER"`
	LegacyPassword string `envconfig:"VIDSTREAM_DB_PASSWORD"`
	LegacyName     string `envconfig:"VIDSTREAM_DB_NAME"`
	LegacySSLMode  string `envconfig:"VIDSTREAM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VIDSTREAM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VIDSTREAM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VIDSTREAM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VIDSTREAM_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VIDSTREAM_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VIDSTREAM_REDIS_ADDR"`
	Password     string        `envconfig:"VIDSTREAM_REDIS_PASSWORD"`
	DB           int           `envconfig:"VIDSTREAM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VIDSTREAM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VIDSTREAM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VIDSTREAM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VIDSTREAM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VIDSTREAM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"VIDSTREAM_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"VIDSTREAM_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"VIDSTREAM_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"VIDSTREAM_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"VIDSTREAM_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"VIDSTREAM_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"VIDSTREAM_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"VIDSTREAM_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"VIDSTREAM_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"VIDSTREAM_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"VIDSTREAM_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"VIDSTREAM_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"VIDSTREAM_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"VIDSTREAM_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"VIDSTREAM_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate  bool `envconfig:"VIDSTREAM_AUTO_MIGRATE" default:"false"`
	InprocWorker bool `envconfig:"VIDSTREAM_INPROC_WORKER" default:"false"`
}

type StorageConfig struct {
	Root string `envconfig:"VIDSTREAM_STORAGE_ROOT" default:"./uploads"`
}

type MediaConfig struct {
	MaxUploadMB     int           `envconfig:"VIDSTREAM_MAX_UPLOAD_MB" default:"100"`
	DispatchBuffer  int           `envconfig:"VIDSTREAM_DISPATCH_BUFFER" default:"64"`
	ProcessWorkers  int           `envconfig:"VIDSTREAM_PROCESS_WORKERS" default:"4"`
	ProcessDelay    time.Duration `envconfig:"VIDSTREAM_PROCESS_DELAY" default:"0s"`
	StreamChunkSize int           `envconfig:"VIDSTREAM_STREAM_CHUNK_SIZE" default:"32768"`
}

// MaxUploadBytes converts the configured ceiling into bytes.
func (m MediaConfig) MaxUploadBytes() int64 {
	if m.MaxUploadMB <= 0 {
		return 100 << 20
	}
	return int64(m.MaxUploadMB) << 20
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VIDSTREAM_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"VIDSTREAM_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VIDSTREAM_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ProcessingTopic        string `envconfig:"VIDSTREAM_PUBSUB_PROCESSING_TOPIC" default:"vs-processing-jobs"`
	ProcessingSubscription string `envconfig:"VIDSTREAM_PUBSUB_PROCESSING_SUBSCRIPTION" default:"vs-processing-jobs-worker"`
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
