// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the service.
type Config struct {
	Port         string
	DatabasePath string
	LogLevel     string

	DedupThreshold     float64
	DedupGlobalScope   bool
	RelevanceThreshold float64

	WorkerCount int
	QueueSize   int
	TaskTTL     time.Duration

	FeedMaxItems         int
	FeedFetchConcurrency int
	ExtractFullContent   bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BloomKey        string
	BloomTTL        time.Duration
	BloomCapacity   int
	BloomErrorRate  float64
	BloomNonScaling bool

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	S3Bucket    string
	S3Prefix    string
	S3Endpoint  string
	AWSRegion   string
	AWSProfile  string
	S3PathStyle bool

	CohereAPIKey string
	CohereModel  string
	CohereRPS    float64

	CronSchedule    string
	DefaultFeeds    []string
	DefaultCriteria string
}

// Load reads .env (when present) and the environment into a Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnvOrDefault("PORT", "8080"),
		DatabasePath: getEnvOrDefault("DATABASE_PATH", "newsagent.db"),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),

		DedupThreshold:     getEnvFloat("DEDUP_THRESHOLD", 0.85),
		DedupGlobalScope:   getEnvBool("DEDUP_GLOBAL_SCOPE", false),
		RelevanceThreshold: getEnvFloat("RELEVANCE_THRESHOLD", 0.5),

		WorkerCount: getEnvInt("WORKER_COUNT", 2),
		QueueSize:   getEnvInt("QUEUE_SIZE", 16),
		TaskTTL:     time.Duration(getEnvInt("TASK_TTL_SECONDS", 3600)) * time.Second,

		FeedMaxItems:         getEnvInt("FEED_MAX_ITEMS", 50),
		FeedFetchConcurrency: getEnvInt("FEED_FETCH_CONCURRENCY", 4),
		ExtractFullContent:   getEnvBool("EXTRACT_FULL_CONTENT", false),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASS"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		BloomKey:        getEnvOrDefault("BLOOM_KEY", "articles:bloom"),
		BloomTTL:        time.Duration(getEnvInt("BLOOM_TTL_SECONDS", 86400)) * time.Second,
		BloomCapacity:   getEnvInt("BLOOM_CAPACITY", 100000),
		BloomErrorRate:  getEnvFloat("BLOOM_ERROR_RATE", 0.001),
		BloomNonScaling: getEnvBool("BLOOM_NONSCALING", false),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS"), ","),
		KafkaTopic:   getEnvOrDefault("KAFKA_TOPIC", "newsagent.requests"),
		KafkaGroupID: getEnvOrDefault("KAFKA_GROUP_ID", "newsagent"),

		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3Prefix:    os.Getenv("S3_PREFIX"),
		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		AWSRegion:   getEnvOrDefault("AWS_REGION", "us-east-1"),
		AWSProfile:  os.Getenv("AWS_PROFILE"),
		S3PathStyle: getEnvBool("S3_PATH_STYLE", false),

		CohereAPIKey: os.Getenv("COHERE_API_KEY"),
		CohereModel:  getEnvOrDefault("COHERE_MODEL", "embed-english-v3.0"),
		CohereRPS:    getEnvFloat("COHERE_RPS", 2),

		CronSchedule:    os.Getenv("CRON_SCHEDULE"),
		DefaultFeeds:    ResolveFeedURLs(splitList(os.Getenv("DEFAULT_FEEDS"), ",")),
		DefaultCriteria: os.Getenv("DEFAULT_CRITERIA"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.DedupThreshold <= 0 || c.DedupThreshold > 1 {
		errs = append(errs, fmt.Errorf("DEDUP_THRESHOLD must be in (0, 1], got %v", c.DedupThreshold))
	}
	if c.RelevanceThreshold < 0 || c.RelevanceThreshold > 1 {
		errs = append(errs, fmt.Errorf("RELEVANCE_THRESHOLD must be in [0, 1], got %v", c.RelevanceThreshold))
	}
	if c.WorkerCount <= 0 {
		errs = append(errs, fmt.Errorf("WORKER_COUNT must be positive, got %d", c.WorkerCount))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("QUEUE_SIZE must be positive, got %d", c.QueueSize))
	}
	if c.TaskTTL <= 0 {
		errs = append(errs, errors.New("TASK_TTL_SECONDS must be positive"))
	}
	if c.FeedFetchConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("FEED_FETCH_CONCURRENCY must be positive, got %d", c.FeedFetchConcurrency))
	}
	if c.CohereRPS <= 0 {
		errs = append(errs, fmt.Errorf("COHERE_RPS must be positive, got %v", c.CohereRPS))
	}
	if c.CronSchedule != "" && len(c.DefaultFeeds) == 0 {
		errs = append(errs, errors.New("CRON_SCHEDULE requires DEFAULT_FEEDS"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// RedisEnabled reports whether a redis address is configured.
func (c *Config) RedisEnabled() bool { return c.RedisAddr != "" }

// KafkaEnabled reports whether the kafka consumer should start.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 && c.KafkaTopic != "" }

// ArchiveEnabled reports whether relevant articles are archived to S3.
func (c *Config) ArchiveEnabled() bool { return c.S3Bucket != "" }

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(raw, sep string) []string {
	var out []string
	for _, part := range strings.Split(raw, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
