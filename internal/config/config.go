// Package config provides configuration management for grant-insights.
// It loads settings from environment variables with sensible defaults,
// optionally layered over a YAML file, and validates them before any
// cache or client is constructed.
//
// Environment Variables:
//
// Logging:
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Log file path; empty logs to stderr
//
// Redis Configuration:
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Caches:
//   - LOOKUP_PREFIX: Prefix of the lookup cache hashes (default: lookup_)
//   - CACHE_PREFIX: Prefix of dataset blobs stored in Redis (default: file_)
//   - FILE_CACHE: Where enriched tables live, "redis" or "bucket" (default: redis)
//   - FILE_CACHE_BUCKET: gocloud bucket URL when FILE_CACHE=bucket
//   - UPLOAD_EXPIRY: How long an uploaded dataset stays cached (default: 1460h)
//
// External registries:
//   - FTC_URL: Organisation resolver URL template (default: findthatcharity.uk)
//   - CH_URL: Company registry URL template (default: data.companieshouse.gov.uk)
//   - PC_URL: Postcode resolver URL template (default: findthatpostcode.uk)
//   - PC_NAMES_URL: Bulk area names CSV (default: findthatpostcode.uk)
//   - FETCH_TIMEOUT: Per-request timeout (default: 30s)
//   - FETCH_RATE: Requests per second per registry host (default: 5)
//   - FETCH_BURST: Burst size per registry host (default: 5)
//   - FETCH_RETRIES: Attempts per key, including the first (default: 3)
//   - BREAKER_FAILURES: Consecutive failures that open a registry's breaker (default: 5)
//   - BREAKER_TIMEOUT: How long an open breaker waits before a trial request (default: 30s)
//   - COMPANY_LOOKUP_LIMIT: Skip company lookups above this many companies (default: 100)
//
// Jobs:
//   - JOB_TIMEOUT: Run-level timeout for one enrichment (default: 15m)
//   - JOB_STATUS_TTL: How long job status records are kept (default: 24h)
//   - WORKER_CONCURRENCY: Datasets enriched in parallel by a batch (default: 4)
//   - METRICS_ADDRESS: Serve Prometheus metrics on this address while running
//
// Example usage:
//
//	cfg, err := config.LoadFile(os.Getenv("INSIGHTS_CONFIG"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values. Fields carry yaml tags so the same
// structure can be read from a config file; environment variables always win.
type Config struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	RedisAddress  string `yaml:"redis_address"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPoolSize int    `yaml:"redis_pool_size"`

	LookupPrefix    string        `yaml:"lookup_prefix"`
	CachePrefix     string        `yaml:"cache_prefix"`
	FileCache       string        `yaml:"file_cache"`
	FileCacheBucket string        `yaml:"file_cache_bucket"`
	UploadExpiry    time.Duration `yaml:"upload_expiry"`

	FTCURL             string        `yaml:"ftc_url"`
	CHURL              string        `yaml:"ch_url"`
	PCURL              string        `yaml:"pc_url"`
	PCNamesURL         string        `yaml:"pc_names_url"`
	FetchTimeout       time.Duration `yaml:"fetch_timeout"`
	FetchRate          float64       `yaml:"fetch_rate"`
	FetchBurst         int           `yaml:"fetch_burst"`
	FetchRetries       int           `yaml:"fetch_retries"`
	BreakerFailures    int           `yaml:"breaker_failures"`
	BreakerTimeout     time.Duration `yaml:"breaker_timeout"`
	CompanyLookupLimit int           `yaml:"company_lookup_limit"`

	JobTimeout        time.Duration `yaml:"job_timeout"`
	JobStatusTTL      time.Duration `yaml:"job_status_ttl"`
	WorkerConcurrency int           `yaml:"worker_concurrency"`
	MetricsAddress    string        `yaml:"metrics_address"`

	// problems found while parsing, reported by Validate
	parseErrors []string
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		LogLevel:           "info",
		RedisAddress:       "localhost:6379",
		RedisPoolSize:      10,
		LookupPrefix:       "lookup_",
		CachePrefix:        "file_",
		FileCache:          "redis",
		UploadExpiry:       1460 * time.Hour,
		FTCURL:             "https://findthatcharity.uk/orgid/{}/canonical.json",
		CHURL:              "http://data.companieshouse.gov.uk/doc/company/{}.json",
		PCURL:              "https://findthatpostcode.uk/postcodes/{}.json",
		PCNamesURL:         "https://findthatpostcode.uk/areas/names.csv",
		FetchTimeout:       30 * time.Second,
		FetchRate:          5,
		FetchBurst:         5,
		FetchRetries:       3,
		BreakerFailures:    5,
		BreakerTimeout:     30 * time.Second,
		CompanyLookupLimit: 100,
		JobTimeout:         15 * time.Minute,
		JobStatusTTL:       24 * time.Hour,
		WorkerConcurrency:  4,
	}
}

// Load creates a Config from environment variables over Defaults.
//
// Malformed numeric or duration values keep their default and are reported
// by Validate.
func Load() *Config {
	cfg := Defaults()
	cfg.applyEnv()
	return cfg
}

// LoadFile reads a YAML config file, then applies environment overrides.
// An empty path behaves like Load.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)

	c.RedisAddress = getEnv("REDIS_ADDRESS", c.RedisAddress)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = c.getIntEnv("REDIS_DB", c.RedisDB)
	c.RedisPoolSize = c.getIntEnv("REDIS_POOL_SIZE", c.RedisPoolSize)

	c.LookupPrefix = getEnv("LOOKUP_PREFIX", c.LookupPrefix)
	c.CachePrefix = getEnv("CACHE_PREFIX", c.CachePrefix)
	c.FileCache = strings.ToLower(getEnv("FILE_CACHE", c.FileCache))
	c.FileCacheBucket = getEnv("FILE_CACHE_BUCKET", c.FileCacheBucket)
	c.UploadExpiry = c.getDurationEnv("UPLOAD_EXPIRY", c.UploadExpiry)

	c.FTCURL = getEnv("FTC_URL", c.FTCURL)
	c.CHURL = getEnv("CH_URL", c.CHURL)
	c.PCURL = getEnv("PC_URL", c.PCURL)
	c.PCNamesURL = getEnv("PC_NAMES_URL", c.PCNamesURL)
	c.FetchTimeout = c.getDurationEnv("FETCH_TIMEOUT", c.FetchTimeout)
	c.FetchRate = c.getFloatEnv("FETCH_RATE", c.FetchRate)
	c.FetchBurst = c.getIntEnv("FETCH_BURST", c.FetchBurst)
	c.FetchRetries = c.getIntEnv("FETCH_RETRIES", c.FetchRetries)
	c.BreakerFailures = c.getIntEnv("BREAKER_FAILURES", c.BreakerFailures)
	c.BreakerTimeout = c.getDurationEnv("BREAKER_TIMEOUT", c.BreakerTimeout)
	c.CompanyLookupLimit = c.getIntEnv("COMPANY_LOOKUP_LIMIT", c.CompanyLookupLimit)

	c.JobTimeout = c.getDurationEnv("JOB_TIMEOUT", c.JobTimeout)
	c.JobStatusTTL = c.getDurationEnv("JOB_STATUS_TTL", c.JobStatusTTL)
	c.WorkerConcurrency = c.getIntEnv("WORKER_CONCURRENCY", c.WorkerConcurrency)
	c.MetricsAddress = getEnv("METRICS_ADDRESS", c.MetricsAddress)
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *Config) getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be an integer, got %q", key, value))
		return defaultValue
	}
	return parsed
}

func (c *Config) getFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be a number, got %q", key, value))
		return defaultValue
	}
	return parsed
}

func (c *Config) getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be a valid duration (e.g., '30s', '15m'), got %q", key, value))
		return defaultValue
	}
	return parsed
}

// Validate checks every value and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.parseErrors) > 0 {
		return fmt.Errorf("%s", c.parseErrors[0])
	}

	if c.RedisAddress == "" {
		return fmt.Errorf("REDIS_ADDRESS is required")
	}
	if c.RedisDB < 0 || c.RedisDB > 15 {
		return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
	}
	if c.RedisPoolSize < 1 {
		return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
	}

	switch c.FileCache {
	case "redis":
	case "bucket":
		if c.FileCacheBucket == "" {
			return fmt.Errorf("FILE_CACHE_BUCKET is required when FILE_CACHE is 'bucket'")
		}
	default:
		return fmt.Errorf("FILE_CACHE must be 'redis' or 'bucket'")
	}
	if c.UploadExpiry < 0 {
		return fmt.Errorf("UPLOAD_EXPIRY must not be negative")
	}

	for key, tmpl := range map[string]string{"FTC_URL": c.FTCURL, "CH_URL": c.CHURL, "PC_URL": c.PCURL} {
		if !strings.Contains(tmpl, "{}") {
			return fmt.Errorf("%s must contain a {} placeholder", key)
		}
	}
	if c.PCNamesURL == "" {
		return fmt.Errorf("PC_NAMES_URL is required")
	}

	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}
	if c.FetchRate <= 0 || c.FetchBurst < 1 {
		return fmt.Errorf("FETCH_RATE and FETCH_BURST must be positive")
	}
	if c.FetchRetries < 1 {
		return fmt.Errorf("FETCH_RETRIES must be at least 1")
	}
	if c.BreakerFailures < 1 || c.BreakerTimeout <= 0 {
		return fmt.Errorf("BREAKER_FAILURES and BREAKER_TIMEOUT must be positive")
	}
	if c.CompanyLookupLimit < 0 {
		return fmt.Errorf("COMPANY_LOOKUP_LIMIT must not be negative")
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("JOB_TIMEOUT must be positive")
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}

	return nil
}
