package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		IdleTimeout     time.Duration `yaml:"idle_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	// Crops lists the leaf types with a model behind them; the first is the default.
	Crops []string `yaml:"crops"`

	Classifier struct {
		Provider string `yaml:"provider"`
	} `yaml:"classifier"`

	Inference struct {
		BaseURL    string `yaml:"base_url"`
		Path       string `yaml:"path"`
		HealthPath string `yaml:"health_path"`
	} `yaml:"inference"`

	OpenAI struct {
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"openai"`

	Session struct {
		Store         string        `yaml:"store"`
		TTL           time.Duration `yaml:"ttl"`
		BusyTTL       time.Duration `yaml:"busy_ttl"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
		CookieSecure  bool          `yaml:"cookie_secure"`
	} `yaml:"session"`

	Images struct {
		Store string `yaml:"store"`
	} `yaml:"images"`

	Database struct {
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"database"`

	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	API struct {
		Keys        []string `yaml:"keys"`
		RateLimit   float64  `yaml:"rate_limit"`
		Burst       int      `yaml:"burst"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"api"`
}

// Store and provider names.
const (
	StoreMemory   = "memory"
	StoreMySQL    = "mysql"
	StorePostgres = "postgres"
	StoreMinio    = "minio"

	ProviderInference = "inference"
	ProviderOpenAI    = "openai"
)

var cropPattern = regexp.MustCompile(`^[a-z][a-z0-9-]{0,31}$`)

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 120 * time.Second
	cfg.Server.IdleTimeout = 60 * time.Second
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Crops = []string{"mango", "cashew"}
	cfg.Classifier.Provider = ProviderInference
	cfg.Inference.BaseURL = "http://localhost:8000"
	cfg.Inference.Path = "/predict"
	cfg.OpenAI.Model = "gpt-4o-mini"
	cfg.Session.Store = StoreMemory
	cfg.Session.TTL = 30 * time.Minute
	cfg.Session.BusyTTL = 24 * time.Hour
	cfg.Session.SweepInterval = time.Minute
	cfg.Images.Store = StoreMemory
	cfg.Database.Port = 3306
	cfg.Minio.BucketName = "leafscan"
	cfg.Minio.Region = "us-east-1"
	cfg.API.RateLimit = 2
	cfg.API.Burst = 5
	cfg.API.CORSOrigins = []string{"*"}
	return &cfg
}

// Load baca file config.yaml, lalu .env dan environment variable.
// A missing file is not an error; the defaults apply.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvAsInt("PORT", c.Server.Port)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Crops = getEnvAsList("CROPS", c.Crops)
	c.Classifier.Provider = getEnv("CLASSIFIER", c.Classifier.Provider)
	c.Inference.BaseURL = getEnv("INFERENCE_BASE_URL", c.Inference.BaseURL)
	c.Inference.Path = getEnv("INFERENCE_PATH", c.Inference.Path)
	c.OpenAI.APIKey = getEnv("OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.Model = getEnv("OPENAI_MODEL", c.OpenAI.Model)
	c.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", c.OpenAI.BaseURL)
	c.Session.Store = getEnv("SESSION_STORE", c.Session.Store)
	c.Session.TTL = getEnvAsDuration("SESSION_TTL", c.Session.TTL)
	c.Images.Store = getEnv("IMAGE_STORE", c.Images.Store)
	c.Database.DSN = getEnv("MYSQL_DSN", c.Database.DSN)
	c.Postgres.DSN = getEnv("POSTGRES_DSN", c.Postgres.DSN)
	c.Minio.Endpoint = getEnv("MINIO_ENDPOINT", c.Minio.Endpoint)
	c.Minio.AccessKey = getEnv("MINIO_ACCESS_KEY", c.Minio.AccessKey)
	c.Minio.SecretKey = getEnv("MINIO_SECRET_KEY", c.Minio.SecretKey)
	c.Minio.BucketName = getEnv("MINIO_BUCKET", c.Minio.BucketName)
	c.API.Keys = getEnvAsList("API_KEYS", c.API.Keys)
	c.API.RateLimit = getEnvAsFloat("RATE_LIMIT", c.API.RateLimit)
}

// Validate checks the combination of settings.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if len(c.Crops) == 0 {
		errs = append(errs, errors.New("crops must not be empty"))
	}
	seen := make(map[string]bool, len(c.Crops))
	for _, crop := range c.Crops {
		if !cropPattern.MatchString(crop) {
			errs = append(errs, fmt.Errorf("crop %q must be a lowercase path segment", crop))
		}
		if seen[crop] {
			errs = append(errs, fmt.Errorf("crop %q listed twice", crop))
		}
		seen[crop] = true
	}

	switch c.Classifier.Provider {
	case ProviderInference:
		if c.Inference.BaseURL == "" {
			errs = append(errs, errors.New("inference.base_url is required"))
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("openai.api_key is required for the openai classifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown classifier provider %q", c.Classifier.Provider))
	}

	switch c.Session.Store {
	case StoreMemory:
	case StoreMySQL:
		if c.Database.DSN == "" && c.Database.Host == "" {
			errs = append(errs, errors.New("database.dsn or database.host is required for the mysql store"))
		}
	case StorePostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session store %q", c.Session.Store))
	}

	switch c.Images.Store {
	case StoreMemory:
	case StoreMinio:
		if c.Minio.Endpoint == "" || c.Minio.BucketName == "" {
			errs = append(errs, errors.New("minio.endpoint and minio.bucketName are required for the minio store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown image store %q", c.Images.Store))
	}

	if c.Session.TTL < 0 {
		errs = append(errs, errors.New("session.ttl must not be negative"))
	}
	if c.Session.BusyTTL > 0 && c.Session.BusyTTL < c.Session.TTL {
		errs = append(errs, errors.New("session.busy_ttl must not be shorter than session.ttl"))
	}
	if c.API.RateLimit < 0 || c.API.Burst < 0 {
		errs = append(errs, errors.New("api.rate_limit and api.burst must not be negative"))
	}

	return errors.Join(errs...)
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
