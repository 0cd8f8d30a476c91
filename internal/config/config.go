package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config structure represents the application configuration
type Config struct {
	Server struct {
		Port        string   `yaml:"port" env:"SERVER_PORT"`
		Mode        string   `yaml:"mode" env:"SERVER_MODE"`
		StoragePath string   `yaml:"storage_path" env:"SERVER_STORAGE_PATH"`
		PublicURL   string   `yaml:"public_url" env:"SERVER_PUBLIC_URL"`
		CORSOrigins []string `yaml:"cors_origins" env:"SERVER_CORS_ORIGINS"`
	} `yaml:"server"`

	Database struct {
		Driver          string `yaml:"driver" env:"DB_DRIVER"`
		Host            string `yaml:"host" env:"DB_HOST"`
		Port            string `yaml:"port" env:"DB_PORT"`
		User            string `yaml:"user" env:"DB_USER"`
		Password        string `yaml:"password" env:"DB_PASSWORD"`
		DBName          string `yaml:"dbname" env:"DB_NAME"`
		SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE"`
		MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
		MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
		MigrationsPath  string `yaml:"migrations_path" env:"DB_MIGRATIONS_PATH"`
	} `yaml:"database"`

	JWT struct {
		Secret                string `yaml:"secret" env:"JWT_SECRET"`
		AccessTokenExpiration string `yaml:"access_token_expiration" env:"JWT_ACCESS_TOKEN_EXPIRATION"`
		Issuer                string `yaml:"issuer" env:"JWT_ISSUER"`
	} `yaml:"jwt"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"logging"`

	Auth struct {
		AdminUserIDs []int64 `yaml:"admin_user_ids" env:"AUTH_ADMIN_USER_IDS"`
	} `yaml:"auth"`

	Progress struct {
		Policy string `yaml:"policy" env:"PROGRESS_POLICY"`
	} `yaml:"progress"`

	Ratings struct {
		CacheEnabled bool   `yaml:"cache_enabled" env:"RATINGS_CACHE_ENABLED"`
		CacheTTL     string `yaml:"cache_ttl" env:"RATINGS_CACHE_TTL"`
	} `yaml:"ratings"`

	Certificates struct {
		AutoIssue        bool   `yaml:"auto_issue" env:"CERTIFICATES_AUTO_ISSUE"`
		SealSecret       string `yaml:"seal_secret" env:"CERTIFICATES_SEAL_SECRET"`
		IDAttempts       int    `yaml:"id_attempts" env:"CERTIFICATES_ID_ATTEMPTS"`
		BatchConcurrency int    `yaml:"batch_concurrency" env:"CERTIFICATES_BATCH_CONCURRENCY"`
		Issuer           string `yaml:"issuer" env:"CERTIFICATES_ISSUER"`
	} `yaml:"certificates"`

	Catalog struct {
		Source  string `yaml:"source" env:"CATALOG_SOURCE"`
		File    string `yaml:"file" env:"CATALOG_FILE"`
		BaseURL string `yaml:"base_url" env:"CATALOG_BASE_URL"`
		Timeout string `yaml:"timeout" env:"CATALOG_TIMEOUT"`
		Retries int    `yaml:"retries" env:"CATALOG_RETRIES"`
		APIKey  string `yaml:"api_key" env:"CATALOG_API_KEY"`
	} `yaml:"catalog"`

	Jobs struct {
		Enabled          bool   `yaml:"enabled" env:"JOBS_ENABLED"`
		BackfillSchedule string `yaml:"backfill_schedule" env:"JOBS_BACKFILL_SCHEDULE"`
		RecalcSchedule   string `yaml:"recalc_schedule" env:"JOBS_RECALC_SCHEDULE"`
		BackfillLimit    int    `yaml:"backfill_limit" env:"JOBS_BACKFILL_LIMIT"`
	} `yaml:"jobs"`
}

// LoadConfig loads configuration from a file, an optional .env file and
// environment variables, in that order of increasing precedence.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	setDefaults(config)

	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Variables already present in the process environment win over .env
	if err := godotenv.Load(GetEnv("DOTENV_PATH", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	// Server defaults
	config.Server.Port = "8080"
	config.Server.Mode = "development"
	config.Server.StoragePath = "./storage"
	config.Server.CORSOrigins = []string{"*"}

	// Database defaults
	config.Database.Driver = "postgres"
	config.Database.Host = "localhost"
	config.Database.Port = "5432"
	config.Database.User = "postgres"
	config.Database.Password = "postgres"
	config.Database.DBName = "coursecred"
	config.Database.SSLMode = "disable"
	config.Database.MaxIdleConns = 5
	config.Database.MaxOpenConns = 20
	config.Database.ConnMaxLifetime = "1h"
	config.Database.MigrationsPath = "./migrations"

	// JWT defaults
	config.JWT.AccessTokenExpiration = "1h"
	config.JWT.Issuer = "coursecred"

	// Logging defaults
	config.Logging.Level = "info"
	config.Logging.Format = "json"

	config.Progress.Policy = "max"

	config.Ratings.CacheEnabled = true
	config.Ratings.CacheTTL = "30s"

	config.Certificates.AutoIssue = true
	config.Certificates.IDAttempts = 5
	config.Certificates.BatchConcurrency = 8
	config.Certificates.Issuer = "CourseCred"

	config.Catalog.Source = "static"
	config.Catalog.File = "./configs/catalog.yaml"
	config.Catalog.Timeout = "5s"
	config.Catalog.Retries = 2

	config.Jobs.BackfillSchedule = "@every 1h"
	config.Jobs.RecalcSchedule = "0 3 * * *"
	config.Jobs.BackfillLimit = 500
}

// loadFromEnv overrides configuration with environment variables
func loadFromEnv(config *Config) error {
	return processStructFields(config)
}

// validateConfig ensures that the configuration is valid
func validateConfig(config *Config) error {
	switch config.Database.Driver {
	case "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if _, err := time.ParseDuration(config.Database.ConnMaxLifetime); err != nil {
			return fmt.Errorf("invalid database connection max lifetime: %w", err)
		}
	case "memory":
	case "":
		return fmt.Errorf("database driver is required")
	default:
		return fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}

	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if _, err := time.ParseDuration(config.JWT.AccessTokenExpiration); err != nil {
		return fmt.Errorf("invalid JWT access token expiration format: %w", err)
	}

	switch config.Progress.Policy {
	case "max", "fraction":
	default:
		return fmt.Errorf("unsupported progress policy %q", config.Progress.Policy)
	}

	ttl, err := time.ParseDuration(config.Ratings.CacheTTL)
	if err != nil {
		return fmt.Errorf("invalid ratings cache ttl: %w", err)
	}
	// A zero ttl would keep moderated aggregates cached forever
	if config.Ratings.CacheEnabled && ttl <= 0 {
		return fmt.Errorf("ratings cache ttl must be positive when the cache is enabled")
	}

	if config.Certificates.SealSecret == "" {
		return fmt.Errorf("certificate seal secret is required")
	}
	if config.Certificates.IDAttempts < 1 {
		return fmt.Errorf("certificate id attempts must be at least 1")
	}
	if config.Certificates.BatchConcurrency < 1 {
		return fmt.Errorf("certificate batch concurrency must be at least 1")
	}

	if config.Jobs.BackfillLimit < 1 {
		return fmt.Errorf("jobs backfill limit must be at least 1")
	}

	switch config.Catalog.Source {
	case "static":
	case "http":
		if config.Catalog.BaseURL == "" {
			return fmt.Errorf("catalog base url is required for the http catalog")
		}
		if _, err := time.ParseDuration(config.Catalog.Timeout); err != nil {
			return fmt.Errorf("invalid catalog timeout: %w", err)
		}
	default:
		return fmt.Errorf("unsupported catalog source %q", config.Catalog.Source)
	}

	return nil
}

// GetPostgresConnectionString returns postgres connection string
func (c *Config) GetPostgresConnectionString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		sslMode,
	)
}

// GetEnv gets an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
