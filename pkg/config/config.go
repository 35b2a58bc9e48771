package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/blastradius/pkg/export"
	"github.com/platinummonkey/blastradius/pkg/metadata"
	"github.com/platinummonkey/blastradius/pkg/sfapi"
)

// FileEnv names the optional YAML file loaded before environment overrides
const FileEnv = "BLASTRADIUS_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	Server ServerConfig `yaml:"server"`

	// Source selects the collaborator backend and its caches
	Source sfapi.Config `yaml:"source"`

	Analysis AnalysisConfig `yaml:"analysis"`

	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

// AnalysisConfig holds analyzer defaults
type AnalysisConfig struct {
	// BaseURL prefixes component links
	BaseURL     string `yaml:"baseURL"`
	BatchSize   int    `yaml:"batchSize"`
	Concurrency int    `yaml:"concurrency"`

	// Defaults apply to every request
	EnhanceReportData    bool `yaml:"enhanceReportData"`
	FieldInMetadataTypes bool `yaml:"fieldInMetadataTypes"`
	MaxDepth             int  `yaml:"maxDepth"`

	// ManifestAPIVersion is written into package.xml exports
	ManifestAPIVersion string `yaml:"manifestAPIVersion"`
}

// Options returns the per-request defaults
func (a AnalysisConfig) Options() metadata.Options {
	return metadata.Options{
		EnhanceReportData:    a.EnhanceReportData,
		FieldInMetadataTypes: a.FieldInMetadataTypes,
		MaxDepth:             a.MaxDepth,
	}
}

// ExportOptions returns the projection settings
func (a AnalysisConfig) ExportOptions() export.Options {
	return export.Options{APIVersion: a.ManifestAPIVersion}
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	// Metrics
	MetricsEnabled bool `yaml:"metricsEnabled"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otelEnabled"`
	OTelEndpoint       string `yaml:"otelEndpoint"`
	OTelServiceName    string `yaml:"otelServiceName"`
	OTelServiceVersion string `yaml:"otelServiceVersion"`
	OTelEnvironment    string `yaml:"otelEnvironment"`
	OTelInsecure       bool   `yaml:"otelInsecure"` // Use insecure gRPC connection

	// OTelSampleRatio is the fraction of root analyses traced
	OTelSampleRatio float64 `yaml:"otelSampleRatio"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Source: sfapi.DefaultConfig(),
		Analysis: AnalysisConfig{
			ManifestAPIVersion: export.DefaultAPIVersion,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			LogFormat:          "json",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "blastradius",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig loads the defaults, then the YAML file named by
// BLASTRADIUS_CONFIG_FILE, then environment variables
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadServerConfig()
	cfg.loadSourceConfig()
	cfg.loadAnalysisConfig()
	cfg.loadObservabilityConfig()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays the YAML file at path
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadServerConfig loads server configuration from environment
func (c *Config) loadServerConfig() {
	s := &c.Server
	s.Host = getEnv("BLASTRADIUS_HOST", s.Host)
	s.Port = getEnv("BLASTRADIUS_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("BLASTRADIUS_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("BLASTRADIUS_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("BLASTRADIUS_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("BLASTRADIUS_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.CORSOrigins = getEnvList("BLASTRADIUS_CORS_ORIGINS", s.CORSOrigins)
}

// loadSourceConfig loads backend configuration from environment
func (c *Config) loadSourceConfig() {
	s := &c.Source
	s.Type = getEnv("BLASTRADIUS_SOURCE", s.Type)

	s.Driver = getEnv("BLASTRADIUS_SQL_DRIVER", s.Driver)
	s.DSN = getEnv("BLASTRADIUS_SQL_DSN", s.DSN)
	s.MaxOpenConns = getEnvInt("BLASTRADIUS_SQL_MAX_CONNS", s.MaxOpenConns)

	s.InstanceURL = getEnv("BLASTRADIUS_INSTANCE_URL", s.InstanceURL)
	s.APIVersion = getEnv("BLASTRADIUS_API_VERSION", s.APIVersion)
	s.AccessToken = getEnv("BLASTRADIUS_ACCESS_TOKEN", s.AccessToken)
	s.ClientID = getEnv("BLASTRADIUS_CLIENT_ID", s.ClientID)
	s.ClientSecret = getEnv("BLASTRADIUS_CLIENT_SECRET", s.ClientSecret)
	s.TokenURL = getEnv("BLASTRADIUS_TOKEN_URL", s.TokenURL)
	s.ReadConcurrency = getEnvInt("BLASTRADIUS_READ_CONCURRENCY", s.ReadConcurrency)
	s.Timeout = getEnvDuration("BLASTRADIUS_API_TIMEOUT", s.Timeout)

	s.S3Endpoint = getEnv("BLASTRADIUS_S3_ENDPOINT", s.S3Endpoint)
	s.S3Region = getEnv("BLASTRADIUS_S3_REGION", s.S3Region)
	s.S3Bucket = getEnv("BLASTRADIUS_S3_BUCKET", s.S3Bucket)
	s.S3Prefix = getEnv("BLASTRADIUS_S3_PREFIX", s.S3Prefix)
	s.S3AccessKey = getEnv("BLASTRADIUS_S3_ACCESS_KEY", s.S3AccessKey)
	s.S3SecretKey = getEnv("BLASTRADIUS_S3_SECRET_KEY", s.S3SecretKey)
	s.S3UsePathStyle = getEnvBool("BLASTRADIUS_S3_USE_PATH_STYLE", s.S3UsePathStyle)

	s.RedisURL = getEnv("BLASTRADIUS_REDIS_URL", s.RedisURL)
	s.RedisPassword = getEnv("BLASTRADIUS_REDIS_PASSWORD", s.RedisPassword)
	s.RedisDB = getEnvInt("BLASTRADIUS_REDIS_DB", s.RedisDB)
	s.RedisMaxRetries = getEnvInt("BLASTRADIUS_REDIS_MAX_RETRIES", s.RedisMaxRetries)
	s.RedisPoolSize = getEnvInt("BLASTRADIUS_REDIS_POOL_SIZE", s.RedisPoolSize)
	s.RedisTTL = getEnvDuration("BLASTRADIUS_REDIS_TTL", s.RedisTTL)

	s.DescribeCacheSize = getEnvInt("BLASTRADIUS_DESCRIBE_CACHE_SIZE", s.DescribeCacheSize)
	s.DescribeCacheTTL = getEnvDuration("BLASTRADIUS_DESCRIBE_CACHE_TTL", s.DescribeCacheTTL)
	s.Tracing = getEnvBool("BLASTRADIUS_SOURCE_TRACING", s.Tracing)
}

// loadAnalysisConfig loads analyzer defaults from environment
func (c *Config) loadAnalysisConfig() {
	a := &c.Analysis
	a.BaseURL = getEnv("BLASTRADIUS_BASE_URL", a.BaseURL)
	a.BatchSize = getEnvInt("BLASTRADIUS_BATCH_SIZE", a.BatchSize)
	a.Concurrency = getEnvInt("BLASTRADIUS_CONCURRENCY", a.Concurrency)
	a.EnhanceReportData = getEnvBool("BLASTRADIUS_ENHANCE_REPORT_DATA", a.EnhanceReportData)
	a.FieldInMetadataTypes = getEnvBool("BLASTRADIUS_FIELD_IN_METADATA_TYPES", a.FieldInMetadataTypes)
	a.MaxDepth = getEnvInt("BLASTRADIUS_MAX_DEPTH", a.MaxDepth)
	a.ManifestAPIVersion = getEnv("BLASTRADIUS_MANIFEST_API_VERSION", a.ManifestAPIVersion)
}

// loadObservabilityConfig loads observability configuration from environment
func (c *Config) loadObservabilityConfig() {
	o := &c.Observability
	o.LogLevel = getEnv("BLASTRADIUS_LOG_LEVEL", o.LogLevel)
	o.LogFormat = getEnv("BLASTRADIUS_LOG_FORMAT", o.LogFormat)
	o.MetricsEnabled = getEnvBool("BLASTRADIUS_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("BLASTRADIUS_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("BLASTRADIUS_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("BLASTRADIUS_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("BLASTRADIUS_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelEnvironment = getEnv("BLASTRADIUS_OTEL_ENVIRONMENT", o.OTelEnvironment)
	o.OTelInsecure = getEnvBool("BLASTRADIUS_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("BLASTRADIUS_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("invalid source: %w", err)
	}

	if c.Analysis.MaxDepth < 0 {
		return fmt.Errorf("max depth must not be negative")
	}
	if c.Analysis.BatchSize < 0 {
		return fmt.Errorf("batch size must not be negative")
	}

	switch strings.ToLower(c.Observability.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Observability.LogLevel)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
