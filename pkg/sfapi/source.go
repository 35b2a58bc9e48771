package sfapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/sirupsen/logrus"
)

// Source types
const (
	SourceSQL  = "sql"
	SourceREST = "rest"
)

// Config selects and configures the collaborator backend and its caches
type Config struct {
	Type string `yaml:"type"` // "sql" or "rest"

	// SQL snapshot config
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"maxOpenConns"`

	// REST config
	InstanceURL     string        `yaml:"instanceURL"`
	APIVersion      string        `yaml:"apiVersion"`
	AccessToken     string        `yaml:"accessToken"`
	ClientID        string        `yaml:"clientID"`
	ClientSecret    string        `yaml:"clientSecret"`
	TokenURL        string        `yaml:"tokenURL"`
	ReadConcurrency int           `yaml:"readConcurrency"`
	Timeout         time.Duration `yaml:"timeout"`

	// S3 snapshot config; when a bucket is set, metadata bodies come from S3
	S3Endpoint     string `yaml:"s3Endpoint"`
	S3Region       string `yaml:"s3Region"`
	S3Bucket       string `yaml:"s3Bucket"`
	S3Prefix       string `yaml:"s3Prefix"`
	S3AccessKey    string `yaml:"s3AccessKey"`
	S3SecretKey    string `yaml:"s3SecretKey"`
	S3UsePathStyle bool   `yaml:"s3UsePathStyle"`

	// Redis read cache config; disabled when the URL is empty
	RedisURL        string        `yaml:"redisURL"`
	RedisPassword   string        `yaml:"redisPassword"`
	RedisDB         int           `yaml:"redisDB"`
	RedisMaxRetries int           `yaml:"redisMaxRetries"`
	RedisPoolSize   int           `yaml:"redisPoolSize"`
	RedisTTL        time.Duration `yaml:"redisTTL"`

	// Describe cache config; disabled when the size is zero
	DescribeCacheSize int           `yaml:"describeCacheSize"`
	DescribeCacheTTL  time.Duration `yaml:"describeCacheTTL"`

	// Tracing wraps every collaborator in OpenTelemetry spans
	Tracing bool `yaml:"tracing"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:              SourceSQL,
		Driver:            "postgres",
		MaxOpenConns:      20,
		APIVersion:        DefaultAPIVersion,
		ReadConcurrency:   DefaultReadConcurrency,
		Timeout:           60 * time.Second,
		RedisMaxRetries:   3,
		RedisPoolSize:     10,
		RedisTTL:          15 * time.Minute,
		DescribeCacheSize: 500,
		DescribeCacheTTL:  10 * time.Minute,
		Tracing:           true,
	}
}

// Validate checks the backend selection
func (c Config) Validate() error {
	switch c.Type {
	case SourceSQL:
		if _, err := DialectForDriver(c.Driver); err != nil {
			return err
		}
		if c.DSN == "" {
			return fmt.Errorf("DSN is required for the sql source")
		}
	case SourceREST:
		if c.InstanceURL == "" {
			return fmt.Errorf("instance URL is required for the rest source")
		}
		if c.AccessToken == "" && (c.ClientID == "" || c.ClientSecret == "") {
			return fmt.Errorf("an access token or client credentials are required for the rest source")
		}
	default:
		return fmt.Errorf("invalid source type: %s (must be sql or rest)", c.Type)
	}
	return nil
}

// Source is an opened collaborator bundle together with the handles health
// checks and metrics need
type Source struct {
	Services Services

	// DB is set for SQL sources
	DB *sql.DB

	// Redis is set when the read cache is enabled
	Redis *redis.Client

	// Describer is set when the describe cache is enabled
	Describer *CachingDescriber

	closers []func() error
}

// Open connects the configured backend and layers the S3 reader, the Redis
// read cache, the describe cache and tracing on top of it
func Open(ctx context.Context, cfg Config, logger logrus.FieldLogger) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	src := &Source{}
	switch cfg.Type {
	case SourceSQL:
		store, err := OpenSQLStore(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.MaxOpenConns > 0 {
			store.DB().SetMaxOpenConns(cfg.MaxOpenConns)
		}
		src.DB = store.DB()
		src.Services = store.Services()
		src.closers = append(src.closers, store.Close)
	case SourceREST:
		client, err := NewRESTClient(ctx, RESTConfig{
			InstanceURL:     cfg.InstanceURL,
			APIVersion:      cfg.APIVersion,
			AccessToken:     cfg.AccessToken,
			ClientID:        cfg.ClientID,
			ClientSecret:    cfg.ClientSecret,
			TokenURL:        cfg.TokenURL,
			ReadConcurrency: cfg.ReadConcurrency,
			Timeout:         cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		src.Services = client.Services()
	}

	if cfg.S3Bucket != "" {
		reader, err := NewS3ReadService(ctx, S3Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			Prefix:       cfg.S3Prefix,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			src.Close()
			return nil, err
		}
		src.Services.Read = reader
		logger.WithField("bucket", cfg.S3Bucket).Info("Reading metadata bodies from S3 snapshot")
	}

	if cfg.RedisURL != "" {
		client, err := NewRedisClient(RedisConfig{
			URL:        cfg.RedisURL,
			Password:   cfg.RedisPassword,
			DB:         cfg.RedisDB,
			MaxRetries: cfg.RedisMaxRetries,
			PoolSize:   cfg.RedisPoolSize,
		})
		if err != nil {
			src.Close()
			return nil, err
		}
		src.Redis = client
		src.Services.Read = NewRedisReadCache(src.Services.Read, client, cfg.RedisTTL, logger)
		src.closers = append(src.closers, client.Close)
	}

	if cfg.DescribeCacheSize > 0 {
		src.Describer = NewCachingDescriber(src.Services.Describe, cfg.DescribeCacheSize, cfg.DescribeCacheTTL)
		src.Services.Describe = src.Describer
	}

	if cfg.Tracing {
		src.Services = Trace(src.Services)
	}

	return src, nil
}

// Close releases every connection the source opened
func (s *Source) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
