package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	_ "github.com/joho/godotenv/autoload"
)

// Config holds all application configuration
type Config struct {
	Server ServerConfig
	Mongo  MongoConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Blob   BlobConfig
	Admin  AdminConfig

	// StoreBackend selects "mongo" or the in-process "memory" store.
	StoreBackend string `env:"STORE_BACKEND" envDefault:"mongo"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
}

type ServerConfig struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	// SecureCookies marks the auth cookie Secure; enable behind TLS.
	SecureCookies  bool     `env:"SECURE_COOKIES" envDefault:"false"`
}

type MongoConfig struct {
	URI      string        `env:"MONGODB_URI"`
	Database string        `env:"MONGODB_DATABASE" envDefault:"civicsync"`
	Timeout  time.Duration `env:"MONGO_TIMEOUT" envDefault:"10s"`
}

type RedisConfig struct {
	// An empty address disables rate limiting and Redis notifications.
	Address  string `env:"REDIS_ADDRESS"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	IssueLimitPrefix    string `env:"REDIS_QUEUE_FOR_ISSUE_LIMIT" envDefault:"issue-limit"`
	IssueDailyLimit     int    `env:"ISSUE_DAILY_LIMIT" envDefault:"10"`
	NotificationChannel string `env:"NOTIFICATION_CHANNEL" envDefault:"notifications"`
}

type AuthConfig struct {
	JWTSecret  string        `env:"JWT_SECRET"`
	TokenTTL   time.Duration `env:"JWT_TTL" envDefault:"72h"`
	BcryptCost int           `env:"BCRYPT_COST" envDefault:"10"`
}

type BlobConfig struct {
	// Backend is "minio", "gcs" or "" to disable uploads.
	Backend string `env:"BLOB_BACKEND"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"civicsync"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	MinioPublicURL string `env:"MINIO_PUBLIC_URL"`

	GCSBucket          string `env:"GCS_BUCKET"`
	GCSCredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
}

type AdminConfig struct {
	Email    string `env:"ADMIN_EMAIL"`
	Password string `env:"ADMIN_PASSWORD"`
}

// NewConfig reads the environment (and .env, when present) into a Config.
func NewConfig() (*Config, error) {
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	switch c.StoreBackend {
	case "mongo":
		if c.Mongo.URI == "" {
			return fmt.Errorf("MONGODB_URI must be set for the mongo store")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.Blob.Backend {
	case "":
	case "minio":
		if c.Blob.MinioEndpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT must be set for the minio blob backend")
		}
	case "gcs":
		if c.Blob.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET must be set for the gcs blob backend")
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.Blob.Backend)
	}
	if (c.Admin.Email == "") != (c.Admin.Password == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}
