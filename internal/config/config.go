package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	S3        S3Config
	Log       LogConfig
	Embedding EmbeddingConfig
	OCR       OCRConfig
	Vision    VisionConfig
	Merge     MergeConfig
	Chunking  ChunkingConfig
	Queue     QueueConfig
}

// QueueConfig holds job queue worker settings.
type QueueConfig struct {
	PollIntervalSecs int `mapstructure:"poll_interval_secs"`
	MaxAttempts      int `mapstructure:"max_attempts"`
	Concurrency      int `mapstructure:"concurrency"`
	JobTimeoutSecs   int `mapstructure:"job_timeout_secs"`
}

// EmbeddingConfig holds settings for the embedding backend.
type EmbeddingConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	Model             string  `mapstructure:"model"`
	Dimensions        int     `mapstructure:"dimensions"`
	BatchSize         int     `mapstructure:"batch_size"`
	Concurrency       int     `mapstructure:"concurrency"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	TimeoutSecs       int     `mapstructure:"timeout_secs"`
}

// OCRConfig holds settings for the optional OCR backend. An empty APIKey disables OCR.
type OCRConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	Model       string `mapstructure:"model"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
}

// Enabled reports whether an OCR backend has been configured.
func (o *OCRConfig) Enabled() bool {
	return o.APIKey != ""
}

// VisionProviderConfig holds settings for a single vision model provider.
type VisionProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
	MaxTokens    int    `mapstructure:"max_tokens"`
}

// VisionConfig holds the three independent vision backends used for takeoff analysis.
type VisionConfig struct {
	Primary   VisionProviderConfig `mapstructure:"primary"`
	Secondary VisionProviderConfig `mapstructure:"secondary"`
	Tertiary  VisionProviderConfig `mapstructure:"tertiary"`
}

// Providers returns the configured provider configs in primary, secondary, tertiary order,
// skipping any slot without a provider name.
func (v *VisionConfig) Providers() []*VisionProviderConfig {
	var out []*VisionProviderConfig
	for _, p := range []*VisionProviderConfig{&v.Primary, &v.Secondary, &v.Tertiary} {
		if p.Provider != "" {
			out = append(out, p)
		}
	}
	return out
}

// MergeConfig holds the tunable fuzzy-match thresholds of the takeoff merge engine.
type MergeConfig struct {
	NameSimilarity     float64 `mapstructure:"name_similarity"`
	BoxIoU             float64 `mapstructure:"box_iou"`
	BoxCenterDistance  float64 `mapstructure:"box_center_distance"`
	CorroborationBoost float64 `mapstructure:"corroboration_boost"`
	ProviderTimeoutSec int     `mapstructure:"provider_timeout_secs"`
}

// ChunkingConfig holds semantic chunker bounds.
type ChunkingConfig struct {
	MaxChars int `mapstructure:"max_chars"`
	MinChars int `mapstructure:"min_chars"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`

	// AllowedOrigins lists CORS origins; empty allows none.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region          string   `mapstructure:"region"`
	Bucket          string   `mapstructure:"bucket"`
	FallbackBuckets []string `mapstructure:"fallback_buckets"`
	ExportBucket    string   `mapstructure:"export_bucket"`
	Endpoint        string   `mapstructure:"endpoint"`
	AccessKey       string   `mapstructure:"access_key"`
	SecretKey       string   `mapstructure:"secret_key"`
	PresignExpiry   int64    `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load reads configuration from environment variables with the PLANBID_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PLANBID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "planbid")
	v.SetDefault("db.password", "planbid_secret")
	v.SetDefault("db.name", "planbid_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "plans")
	v.SetDefault("s3.fallback_buckets", "plan-uploads,uploads")
	v.SetDefault("s3.export_bucket", "takeoff-exports")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")

	// Embedding defaults
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("embedding.batch_size", 20)
	v.SetDefault("embedding.concurrency", 2)
	v.SetDefault("embedding.requests_per_second", 5.0)
	v.SetDefault("embedding.timeout_secs", 60)

	// OCR defaults
	v.SetDefault("ocr.api_key", "")
	v.SetDefault("ocr.base_url", "")
	v.SetDefault("ocr.model", "mistral-ocr-latest")
	v.SetDefault("ocr.timeout_secs", 180)

	// Vision defaults: one slot per backend
	v.SetDefault("vision.primary.provider", "claude")
	v.SetDefault("vision.primary.api_key", "")
	v.SetDefault("vision.primary.default_model", "")
	v.SetDefault("vision.primary.timeout_secs", 180)
	v.SetDefault("vision.primary.max_tokens", 16384)
	v.SetDefault("vision.secondary.provider", "openai")
	v.SetDefault("vision.secondary.api_key", "")
	v.SetDefault("vision.secondary.default_model", "")
	v.SetDefault("vision.secondary.timeout_secs", 180)
	v.SetDefault("vision.secondary.max_tokens", 16384)
	v.SetDefault("vision.tertiary.provider", "gemini")
	v.SetDefault("vision.tertiary.api_key", "")
	v.SetDefault("vision.tertiary.default_model", "")
	v.SetDefault("vision.tertiary.timeout_secs", 180)
	v.SetDefault("vision.tertiary.max_tokens", 16384)

	// Merge defaults
	v.SetDefault("merge.name_similarity", 0.6)
	v.SetDefault("merge.box_iou", 0.1)
	v.SetDefault("merge.box_center_distance", 0.15)
	v.SetDefault("merge.corroboration_boost", 0.15)
	v.SetDefault("merge.provider_timeout_secs", 240)

	// Chunking defaults
	v.SetDefault("chunking.max_chars", 900)
	v.SetDefault("chunking.min_chars", 250)

	// Queue defaults
	v.SetDefault("queue.poll_interval_secs", 5)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.concurrency", 2)
	v.SetDefault("queue.job_timeout_secs", 600)

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                    "PLANBID_SERVER_PORT",
		"server.read_timeout":            "PLANBID_SERVER_READ_TIMEOUT",
		"server.write_timeout":           "PLANBID_SERVER_WRITE_TIMEOUT",
		"server.environment":             "PLANBID_SERVER_ENVIRONMENT",
		"server.allowed_origins":         "PLANBID_SERVER_ALLOWED_ORIGINS",
		"db.host":                        "PLANBID_DB_HOST",
		"db.port":                        "PLANBID_DB_PORT",
		"db.user":                        "PLANBID_DB_USER",
		"db.password":                    "PLANBID_DB_PASSWORD",
		"db.name":                        "PLANBID_DB_NAME",
		"db.sslmode":                     "PLANBID_DB_SSLMODE",
		"db.max_open":                    "PLANBID_DB_MAX_OPEN",
		"db.max_idle":                    "PLANBID_DB_MAX_IDLE",
		"s3.region":                      "PLANBID_S3_REGION",
		"s3.bucket":                      "PLANBID_S3_BUCKET",
		"s3.fallback_buckets":            "PLANBID_S3_FALLBACK_BUCKETS",
		"s3.export_bucket":               "PLANBID_S3_EXPORT_BUCKET",
		"s3.endpoint":                    "PLANBID_S3_ENDPOINT",
		"s3.access_key":                  "PLANBID_S3_ACCESS_KEY",
		"s3.secret_key":                  "PLANBID_S3_SECRET_KEY",
		"s3.presign_expiry":              "PLANBID_S3_PRESIGN_EXPIRY",
		"log.level":                      "PLANBID_LOG_LEVEL",
		"log.format":                     "PLANBID_LOG_FORMAT",
		"log.file":                       "PLANBID_LOG_FILE",
		"embedding.api_key":              "PLANBID_EMBEDDING_API_KEY",
		"embedding.base_url":             "PLANBID_EMBEDDING_BASE_URL",
		"embedding.model":                "PLANBID_EMBEDDING_MODEL",
		"embedding.dimensions":           "PLANBID_EMBEDDING_DIMENSIONS",
		"embedding.batch_size":           "PLANBID_EMBEDDING_BATCH_SIZE",
		"embedding.concurrency":          "PLANBID_EMBEDDING_CONCURRENCY",
		"embedding.requests_per_second":  "PLANBID_EMBEDDING_REQUESTS_PER_SECOND",
		"embedding.timeout_secs":         "PLANBID_EMBEDDING_TIMEOUT_SECS",
		"ocr.api_key":                    "PLANBID_OCR_API_KEY",
		"ocr.base_url":                   "PLANBID_OCR_BASE_URL",
		"ocr.model":                      "PLANBID_OCR_MODEL",
		"ocr.timeout_secs":               "PLANBID_OCR_TIMEOUT_SECS",
		"vision.primary.provider":        "PLANBID_VISION_PRIMARY_PROVIDER",
		"vision.primary.api_key":         "PLANBID_VISION_PRIMARY_API_KEY",
		"vision.primary.default_model":   "PLANBID_VISION_PRIMARY_DEFAULT_MODEL",
		"vision.primary.timeout_secs":    "PLANBID_VISION_PRIMARY_TIMEOUT_SECS",
		"vision.primary.max_tokens":      "PLANBID_VISION_PRIMARY_MAX_TOKENS",
		"vision.secondary.provider":      "PLANBID_VISION_SECONDARY_PROVIDER",
		"vision.secondary.api_key":       "PLANBID_VISION_SECONDARY_API_KEY",
		"vision.secondary.default_model": "PLANBID_VISION_SECONDARY_DEFAULT_MODEL",
		"vision.secondary.timeout_secs":  "PLANBID_VISION_SECONDARY_TIMEOUT_SECS",
		"vision.secondary.max_tokens":    "PLANBID_VISION_SECONDARY_MAX_TOKENS",
		"vision.tertiary.provider":       "PLANBID_VISION_TERTIARY_PROVIDER",
		"vision.tertiary.api_key":        "PLANBID_VISION_TERTIARY_API_KEY",
		"vision.tertiary.default_model":  "PLANBID_VISION_TERTIARY_DEFAULT_MODEL",
		"vision.tertiary.timeout_secs":   "PLANBID_VISION_TERTIARY_TIMEOUT_SECS",
		"vision.tertiary.max_tokens":     "PLANBID_VISION_TERTIARY_MAX_TOKENS",
		"merge.name_similarity":          "PLANBID_MERGE_NAME_SIMILARITY",
		"merge.box_iou":                  "PLANBID_MERGE_BOX_IOU",
		"merge.box_center_distance":      "PLANBID_MERGE_BOX_CENTER_DISTANCE",
		"merge.corroboration_boost":      "PLANBID_MERGE_CORROBORATION_BOOST",
		"merge.provider_timeout_secs":    "PLANBID_MERGE_PROVIDER_TIMEOUT_SECS",
		"chunking.max_chars":             "PLANBID_CHUNKING_MAX_CHARS",
		"chunking.min_chars":             "PLANBID_CHUNKING_MIN_CHARS",
		"queue.poll_interval_secs":       "PLANBID_QUEUE_POLL_INTERVAL_SECS",
		"queue.max_attempts":             "PLANBID_QUEUE_MAX_ATTEMPTS",
		"queue.concurrency":              "PLANBID_QUEUE_CONCURRENCY",
		"queue.job_timeout_secs":         "PLANBID_QUEUE_JOB_TIMEOUT_SECS",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if PLANBID_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("PLANBID_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:           serverPort,
		ReadTimeout:    v.GetDuration("server.read_timeout"),
		WriteTimeout:   v.GetDuration("server.write_timeout"),
		Environment:    v.GetString("server.environment"),
		AllowedOrigins: splitCSV(v.GetString("server.allowed_origins")),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		Region:          v.GetString("s3.region"),
		Bucket:          v.GetString("s3.bucket"),
		FallbackBuckets: splitCSV(v.GetString("s3.fallback_buckets")),
		ExportBucket:    v.GetString("s3.export_bucket"),
		Endpoint:        v.GetString("s3.endpoint"),
		AccessKey:       v.GetString("s3.access_key"),
		SecretKey:       v.GetString("s3.secret_key"),
		PresignExpiry:   v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
		File:   v.GetString("log.file"),
	}
	cfg.Embedding = EmbeddingConfig{
		APIKey:            v.GetString("embedding.api_key"),
		BaseURL:           v.GetString("embedding.base_url"),
		Model:             v.GetString("embedding.model"),
		Dimensions:        v.GetInt("embedding.dimensions"),
		BatchSize:         v.GetInt("embedding.batch_size"),
		Concurrency:       v.GetInt("embedding.concurrency"),
		RequestsPerSecond: v.GetFloat64("embedding.requests_per_second"),
		TimeoutSecs:       v.GetInt("embedding.timeout_secs"),
	}
	cfg.OCR = OCRConfig{
		APIKey:      v.GetString("ocr.api_key"),
		BaseURL:     v.GetString("ocr.base_url"),
		Model:       v.GetString("ocr.model"),
		TimeoutSecs: v.GetInt("ocr.timeout_secs"),
	}
	cfg.Vision = VisionConfig{
		Primary:   loadVisionProvider(v, "vision.primary"),
		Secondary: loadVisionProvider(v, "vision.secondary"),
		Tertiary:  loadVisionProvider(v, "vision.tertiary"),
	}
	cfg.Merge = MergeConfig{
		NameSimilarity:     v.GetFloat64("merge.name_similarity"),
		BoxIoU:             v.GetFloat64("merge.box_iou"),
		BoxCenterDistance:  v.GetFloat64("merge.box_center_distance"),
		CorroborationBoost: v.GetFloat64("merge.corroboration_boost"),
		ProviderTimeoutSec: v.GetInt("merge.provider_timeout_secs"),
	}
	cfg.Chunking = ChunkingConfig{
		MaxChars: v.GetInt("chunking.max_chars"),
		MinChars: v.GetInt("chunking.min_chars"),
	}
	cfg.Queue = QueueConfig{
		PollIntervalSecs: v.GetInt("queue.poll_interval_secs"),
		MaxAttempts:      v.GetInt("queue.max_attempts"),
		Concurrency:      v.GetInt("queue.concurrency"),
		JobTimeoutSecs:   v.GetInt("queue.job_timeout_secs"),
	}

	if cfg.Chunking.MinChars >= cfg.Chunking.MaxChars {
		return nil, fmt.Errorf("chunking.min_chars (%d) must be below chunking.max_chars (%d)",
			cfg.Chunking.MinChars, cfg.Chunking.MaxChars)
	}

	return cfg, nil
}

func loadVisionProvider(v *viper.Viper, prefix string) VisionProviderConfig {
	return VisionProviderConfig{
		Provider:     v.GetString(prefix + ".provider"),
		APIKey:       v.GetString(prefix + ".api_key"),
		DefaultModel: v.GetString(prefix + ".default_model"),
		TimeoutSecs:  v.GetInt(prefix + ".timeout_secs"),
		MaxTokens:    v.GetInt(prefix + ".max_tokens"),
	}
}

// splitCSV parses a comma-separated list, dropping blanks.
func splitCSV(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
