// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	DBDriver   string `mapstructure:"DB_DRIVER"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`
	DBPath     string `mapstructure:"DB_PATH"`

	RedisURL string `mapstructure:"REDIS_URL"`

	StorageDriver    string `mapstructure:"STORAGE_DRIVER"`
	StorageLocalDir  string `mapstructure:"STORAGE_LOCAL_DIR"`
	StoragePublicURL string `mapstructure:"STORAGE_PUBLIC_URL"`
	S3Bucket         string `mapstructure:"S3_BUCKET"`
	S3Region         string `mapstructure:"S3_REGION"`
	S3Endpoint       string `mapstructure:"S3_ENDPOINT"`
	S3AccessKey      string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey      string `mapstructure:"S3_SECRET_KEY"`
	S3UsePathStyle   bool   `mapstructure:"S3_USE_PATH_STYLE"`

	ImageMaxUploadMB int    `mapstructure:"IMAGE_MAX_UPLOAD_MB"`
	ImageFormat      string `mapstructure:"IMAGE_FORMAT"`
	ImageQuality     int    `mapstructure:"IMAGE_QUALITY"`

	TracingEnabled  bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampler  float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AddConfigPath("../..")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()

	// The base file may not exist.
	_ = v.ReadInConfig()

	env := v.GetString("APP_ENV")
	if env != "" && env != "development" && env != "test" {
		v.SetConfigName("config." + env)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// SetDefaults registers development defaults for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8375")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "user")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "snapshare")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_PATH", "snapshare.db")

	v.SetDefault("REDIS_URL", "localhost:6379")

	v.SetDefault("STORAGE_DRIVER", "local")
	v.SetDefault("STORAGE_LOCAL_DIR", "./data/media")
	v.SetDefault("STORAGE_PUBLIC_URL", "/media")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_USE_PATH_STYLE", false)

	v.SetDefault("IMAGE_MAX_UPLOAD_MB", 10)
	v.SetDefault("IMAGE_FORMAT", "jpeg")
	v.SetDefault("IMAGE_QUALITY", 80)

	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_EXPORTER", "stdout")
	v.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
}

// IsProduction reports whether the production profile is active.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}

	switch strings.ToLower(c.StorageDriver) {
	case "local":
		if c.StorageLocalDir == "" {
			return errors.New("STORAGE_LOCAL_DIR is required for the local storage driver")
		}
	case "s3":
		if c.S3Bucket == "" || c.S3Region == "" {
			return errors.New("S3_BUCKET and S3_REGION are required for the s3 storage driver")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be local or s3, got %q", c.StorageDriver)
	}

	switch strings.ToLower(c.ImageFormat) {
	case "jpeg", "webp":
	default:
		return fmt.Errorf("IMAGE_FORMAT must be jpeg or webp, got %q", c.ImageFormat)
	}
	if c.ImageQuality < 1 || c.ImageQuality > 100 {
		return errors.New("IMAGE_QUALITY must be between 1 and 100")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBDriver == "postgres" && (c.DBPassword == "password" || c.DBPassword == "") {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
