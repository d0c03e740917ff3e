package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env        string `envconfig:"ENV" default:"local"`
	StatusHost string `envconfig:"STATUS_HOST" default:""`
	StatusPort string `envconfig:"STATUS_PORT" default:"3200"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat  string `envconfig:"LOG_FORMAT" default:"json"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"agenthub/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
}

type LifecycleEnv struct {
	SweepInterval  time.Duration `envconfig:"SWEEP_INTERVAL" default:"2m"`
	StaleThreshold time.Duration `envconfig:"STALE_THRESHOLD" default:"5m"`
}

type Env struct {
	BaseEnv
	StorageEnv
	LifecycleEnv
}

const namespace = "AGENTHUB"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if env.StorageEnv.BaseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		env.StorageEnv.BaseDir = filepath.Join(home, ".agenthub", "data")
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelInfo
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
