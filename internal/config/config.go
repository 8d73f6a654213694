package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret loads FOO from the file named by FOO_FILE when FOO is unset.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Queue     QueueConfig
	Pipeline  PipelineConfig
	Transport TransportConfig
	Recommend RecommendConfig
	R2        R2Config
}

type ServerConfig struct {
	Port string
	Env  string
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig enables bearer auth on /api. Issuer or JWKSURL switches from the
// shared secret to asymmetric tokens.
type JWTConfig struct {
	Enabled  bool
	Secret   string
	Issuer   string
	Audience string
	JWKSURL  string
}

type RateLimitConfig struct {
	UploadPerHour int
}

type StorageConfig struct {
	UploadDir   string
	OutputDir   string
	MaxUploadMB int
	JobTTL      time.Duration
}

// QueueConfig selects how accepted uploads reach the pipeline: "memory" runs
// them in-process, "redis" enqueues asynq tasks and keeps job records in redis.
const (
	QueueMemory = "memory"
	QueueRedis  = "redis"
)

type QueueConfig struct {
	Backend     string
	Concurrency int
}

type PipelineConfig struct {
	StepDelay time.Duration
}

// TransportConfig selects the client transport: "simulated" or "http".
type TransportConfig struct {
	Mode         string
	BaseURL      string
	Timeout      time.Duration
	PollInterval time.Duration
}

type RecommendConfig struct {
	Decay    float64
	DefaultK int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// Configured reports whether artifact publishing to R2 is possible.
func (c R2Config) Configured() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

func Load() (*Config, error) {
	return LoadFrom(viper.GetViper(), "")
}

// LoadFrom reads configuration into v. An explicit file must exist; without
// one, config.yaml is looked up in the working directory and ./config.
func LoadFrom(v *viper.Viper, file string) (*Config, error) {
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.AutomaticEnv()

	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("log.level", "LOG_LEVEL")
	_ = v.BindEnv("log.file", "LOG_FILE")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("jwt.enabled", "JWT_ENABLED")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("jwt.issuer", "JWT_ISSUER")
	_ = v.BindEnv("jwt.audience", "JWT_AUDIENCE")
	_ = v.BindEnv("jwt.jwks_url", "JWT_JWKS_URL")
	_ = v.BindEnv("storage.upload_dir", "UPLOAD_DIR")
	_ = v.BindEnv("storage.output_dir", "OUTPUT_DIR")
	_ = v.BindEnv("storage.max_upload_mb", "MAX_UPLOAD_MB")
	_ = v.BindEnv("queue.backend", "QUEUE_BACKEND")
	_ = v.BindEnv("pipeline.step_delay", "PIPELINE_STEP_DELAY")
	_ = v.BindEnv("transport.mode", "SCORE_TRANSPORT_MODE")
	_ = v.BindEnv("transport.base_url", "SCORE_API_URL")
	_ = v.BindEnv("transport.poll_interval", "SCORE_POLL_INTERVAL")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return FromViper(v), nil
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.enabled", false)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("ratelimit.upload_per_hour", 50)
	v.SetDefault("storage.upload_dir", "./uploads")
	v.SetDefault("storage.output_dir", "./outputs")
	v.SetDefault("storage.max_upload_mb", 100)
	v.SetDefault("storage.job_ttl", 24*time.Hour)
	v.SetDefault("queue.backend", "memory")
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("pipeline.step_delay", 2*time.Second)
	v.SetDefault("transport.mode", "simulated")
	v.SetDefault("transport.base_url", "http://localhost:8000")
	v.SetDefault("transport.timeout", 60*time.Second)
	v.SetDefault("transport.poll_interval", 2*time.Second)
	v.SetDefault("recommend.decay", 8.0)
	v.SetDefault("recommend.default_k", 5)
}

// FromViper reads a Config out of v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port: v.GetString("server.port"),
			Env:  v.GetString("server.env"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
			Compress:   v.GetBool("log.compress"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Enabled:  v.GetBool("jwt.enabled"),
			Secret:   v.GetString("jwt.secret"),
			Issuer:   v.GetString("jwt.issuer"),
			Audience: v.GetString("jwt.audience"),
			JWKSURL:  v.GetString("jwt.jwks_url"),
		},
		RateLimit: RateLimitConfig{
			UploadPerHour: v.GetInt("ratelimit.upload_per_hour"),
		},
		Storage: StorageConfig{
			UploadDir:   v.GetString("storage.upload_dir"),
			OutputDir:   v.GetString("storage.output_dir"),
			MaxUploadMB: v.GetInt("storage.max_upload_mb"),
			JobTTL:      v.GetDuration("storage.job_ttl"),
		},
		Queue: QueueConfig{
			Backend:     v.GetString("queue.backend"),
			Concurrency: v.GetInt("queue.concurrency"),
		},
		Pipeline: PipelineConfig{
			StepDelay: v.GetDuration("pipeline.step_delay"),
		},
		Transport: TransportConfig{
			Mode:         v.GetString("transport.mode"),
			BaseURL:      v.GetString("transport.base_url"),
			Timeout:      v.GetDuration("transport.timeout"),
			PollInterval: v.GetDuration("transport.poll_interval"),
		},
		Recommend: RecommendConfig{
			Decay:    v.GetFloat64("recommend.decay"),
			DefaultK: v.GetInt("recommend.default_k"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
	}
}
