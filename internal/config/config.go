// Package config loads service configuration from a yaml file, a .env file
// and environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Model struct {
		OrtLibrary  string `yaml:"ort_library"`
		BundledPath string `yaml:"bundled_path"`
		CacheDir    string `yaml:"cache_dir"`
		InputSize   int    `yaml:"input_size"`
		InputName   string `yaml:"input_name"`
		OutputName  string `yaml:"output_name"`
	} `yaml:"model"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Remote struct {
		BaseURL    string        `yaml:"base_url"`
		StorageURL string        `yaml:"storage_url"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"remote"`

	Schedule struct {
		FeedbackSyncInterval time.Duration `yaml:"feedback_sync_interval"`
		ModelUpdateInterval  time.Duration `yaml:"model_update_interval"`
	} `yaml:"schedule"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Server.Addr = "127.0.0.1:8080"
	cfg.Model.BundledPath = "models/yolov8n.onnx"
	cfg.Model.CacheDir = "data/models"
	cfg.Model.InputSize = 640
	cfg.Storage.Path = "data/fridge.db"
	cfg.Remote.Timeout = 30 * time.Second
	cfg.Schedule.FeedbackSyncInterval = 24 * time.Hour
	cfg.Schedule.ModelUpdateInterval = 24 * time.Hour
	cfg.Log.Level = "info"
	return cfg
}

// Load reads path (optional), applies .env and environment overrides, and
// returns the effective configuration.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.Model.InputSize < 2 {
		return nil, fmt.Errorf("model input size %d is too small", cfg.Model.InputSize)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("FRIDGE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("FRIDGE_ORT_LIBRARY"); v != "" {
		cfg.Model.OrtLibrary = v
	}
	if v := os.Getenv("FRIDGE_MODEL_PATH"); v != "" {
		cfg.Model.BundledPath = v
	}
	if v := os.Getenv("FRIDGE_MODEL_CACHE_DIR"); v != "" {
		cfg.Model.CacheDir = v
	}
	if v := os.Getenv("FRIDGE_INPUT_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse FRIDGE_INPUT_SIZE %q: %w", v, err)
		}
		cfg.Model.InputSize = n
	}
	if v := os.Getenv("FRIDGE_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("FRIDGE_REMOTE_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := os.Getenv("FRIDGE_STORAGE_URL"); v != "" {
		cfg.Remote.StorageURL = v
	}
	if v := os.Getenv("FRIDGE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}
