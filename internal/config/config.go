package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
		// Mode is "debug" or "release" and also selects the log level default.
		Mode string `yaml:"mode"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		// Duration is the time limit after which a started quiz completes. Empty disables it.
		Duration         string `yaml:"duration"`
		QuestionCacheTTL string `yaml:"question_cache_ttl"`
	} `yaml:"quiz"`
	Heartbeat struct {
		Interval string `yaml:"interval"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"heartbeat"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		TokenTTL  string `yaml:"token_ttl"`
	} `yaml:"auth"`
	Storage struct {
		// Type is "local" or "minio".
		Type           string `yaml:"type"`
		LocalPath      string `yaml:"local_path"`
		MinioEndpoint  string `yaml:"minio_endpoint"`
		MinioAccessKey string `yaml:"minio_access_key"`
		MinioSecretKey string `yaml:"minio_secret_key"`
		MinioBucket    string `yaml:"minio_bucket"`
		MinioUseSSL    bool   `yaml:"minio_use_ssl"`
		MinioPublicURL string `yaml:"minio_public_url"`
	} `yaml:"storage"`
}

// Load reads YAML config from path and applies environment overrides. A missing
// file is not an error; the service then runs on defaults and environment alone.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return cfg, err
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	override(&cfg.Server.Mode, "SERVER_MODE")
	override(&cfg.Log.Level, "LOG_LEVEL")
	override(&cfg.Log.File, "LOG_FILE")
	override(&cfg.Redis.Addr, "REDIS_ADDR")
	override(&cfg.Redis.Password, "REDIS_PASSWORD")
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		cfg.Redis.DB = n
	}
	override(&cfg.Postgres.URL, "DATABASE_URL")
	override(&cfg.Quiz.Duration, "QUIZ_DURATION")
	override(&cfg.Auth.JWTSecret, "JWT_SECRET")
	override(&cfg.Auth.TokenTTL, "TOKEN_TTL")
	override(&cfg.Storage.Type, "STORAGE_TYPE")
	override(&cfg.Storage.LocalPath, "STORAGE_LOCAL_PATH")
	override(&cfg.Storage.MinioEndpoint, "MINIO_ENDPOINT")
	override(&cfg.Storage.MinioAccessKey, "MINIO_ACCESS_KEY")
	override(&cfg.Storage.MinioSecretKey, "MINIO_SECRET_KEY")
	override(&cfg.Storage.MinioBucket, "MINIO_BUCKET")
	return nil
}

func override(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
		if cfg.Server.Mode == "debug" {
			cfg.Log.Level = "debug"
		}
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "uploads"
	}
	if cfg.Storage.MinioBucket == "" {
		cfg.Storage.MinioBucket = "quiz-images"
	}
}

// Duration parses a duration string or returns the fallback if empty or malformed.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
