package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir string       `yaml:"data_dir"`
	Server  ServerConfig `yaml:"server"`
	Vision  VisionConfig `yaml:"vision"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	BindAddr    string `yaml:"bind_addr"`
	BearerToken string `yaml:"bearer_token"`
}

// VisionConfig bundles model locations and inference thresholds for
// every ONNX-backed pipeline stage.
type VisionConfig struct {
	ModelsDir            string  `yaml:"models_dir"`
	WhisperBinaryPath    string  `yaml:"whisper_binary_path"`
	IntraOpThreads       int     `yaml:"intra_op_threads"`
	InterOpThreads       int     `yaml:"inter_op_threads"`
	DetectionThreshold   float64 `yaml:"detection_threshold"`
	FaceDetectThreshold  float64 `yaml:"face_detect_threshold"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads config from a YAML file and applies environment variable
// overrides, the same load-then-override shape used throughout this
// module's settings handling.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.BindAddr == "" {
		cfg.Server.BindAddr = "127.0.0.1"
	}
	if cfg.Vision.ModelsDir == "" {
		cfg.Vision.ModelsDir = "./models"
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.25
	}
	if cfg.Vision.FaceDetectThreshold == 0 {
		cfg.Vision.FaceDetectThreshold = 0.5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GAZE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("GAZE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GAZE_SERVER_BIND_ADDR"); v != "" {
		cfg.Server.BindAddr = v
	}
	if v := os.Getenv("GAZE_BEARER_TOKEN"); v != "" {
		cfg.Server.BearerToken = v
	}
	if v := os.Getenv("GAZE_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("GAZE_WHISPER_BINARY_PATH"); v != "" {
		cfg.Vision.WhisperBinaryPath = v
	}
	if v := os.Getenv("GAZE_INTRA_OP_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vision.IntraOpThreads = n
		}
	}
	if v := os.Getenv("GAZE_INTER_OP_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vision.InterOpThreads = n
		}
	}
	if v := os.Getenv("GAZE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
