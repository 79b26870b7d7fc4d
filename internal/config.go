package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

const (
	StoreBadger = "badger"
	StoreSQLite = "sqlite"
	StoreMySQL  = "mysql"

	ProviderLocal  = "local"
	ProviderRemote = "remote"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	Host       string `env:"HOST,default=0.0.0.0"`
	Port       int    `env:"PORT,default=8080" validate:"min=1,max=65535"`
	HealthPort int    `env:"HEALTH_PORT,default=8081" validate:"min=1,max=65535"`
	DebugPort  int    `env:"DEBUG_PORT,default=8082" validate:"min=1,max=65535"`

	AllowedOrigins  string        `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	CookieSecure    bool          `env:"COOKIE_SECURE,default=false"`
	MaxBodyBytes    int64         `env:"MAX_BODY_BYTES,default=1048576" validate:"min=1"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=1s"`

	HealthCheckInterval time.Duration `env:"HEALTH_CHECK_INTERVAL,default=10s"`
	HeartbeatInterval   time.Duration `env:"HEARTBEAT_INTERVAL,default=1m"`

	StoreDriver    string `env:"STORE_DRIVER,default=badger" validate:"oneof=badger sqlite mysql"`
	BadgerFilepath string `env:"BADGER_FILEPATH,default=./data/badger" validate:"required_if=StoreDriver badger"`
	SQLiteFilepath string `env:"SQLITE_FILEPATH,default=./data/relay.db" validate:"required_if=StoreDriver sqlite"`
	MySQLDSN       string `env:"MYSQL_DSN" validate:"required_if=StoreDriver mysql"`
	LimitMessages  *int   `env:"LIMIT_MESSAGES"`
	MaxTextLength  int    `env:"MAX_TEXT_LENGTH,default=2000" validate:"min=1"`

	AuthProvider      string        `env:"AUTH_PROVIDER,default=local" validate:"oneof=local remote"`
	AuthTokenSecret   string        `env:"AUTH_TOKEN_SECRET" validate:"required_if=AuthProvider local,omitempty,min=32"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	AuthProviderURL   string        `env:"AUTH_PROVIDER_URL" validate:"required_if=AuthProvider remote,omitempty,url"`
	AuthProviderKey   string        `env:"AUTH_PROVIDER_KEY"`
	AuthTimeout       time.Duration `env:"AUTH_TIMEOUT,default=5s"`
	AuthRetryAfter    time.Duration `env:"AUTH_RETRY_AFTER,default=5s"`

	CredentialCacheSize  int64         `env:"CREDENTIAL_CACHE_SIZE,default=10000" validate:"min=1"`
	CredentialCacheTTL   time.Duration `env:"CREDENTIAL_CACHE_TTL,default=1m"`
	RevalidateInterval   time.Duration `env:"REVALIDATE_INTERVAL,default=1m"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64" validate:"min=1"`
}

// LoadConfig decodes the environment and checks cross-field rules.
func LoadConfig() (Config, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (c Config) Address(port int) string {
	return fmt.Sprintf("%s:%d", c.Host, port)
}
