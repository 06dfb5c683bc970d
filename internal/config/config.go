package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Vision   VisionConfig   `yaml:"vision"`
	Matching MatchingConfig `yaml:"matching"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	// Port serves /healthz and /metrics on the worker.
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type VisionConfig struct {
	ProviderURL  string        `yaml:"provider_url"`
	Timeout      time.Duration `yaml:"timeout"`
	EmbeddingDim int           `yaml:"embedding_dim"`
	WorkerCount  int           `yaml:"worker_count"`
}

type MatchingConfig struct {
	ClusterThreshold    float64 `yaml:"cluster_threshold"`
	FaceSearchThreshold float64 `yaml:"face_search_threshold"`
	MinFaceConfidence   float64 `yaml:"min_face_confidence"`
	MinBibConfidence    float64 `yaml:"min_bib_confidence"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
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
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Vision.Timeout == 0 {
		cfg.Vision.Timeout = 30 * time.Second
	}
	if cfg.Vision.EmbeddingDim == 0 {
		cfg.Vision.EmbeddingDim = 512
	}
	if cfg.Vision.WorkerCount == 0 {
		cfg.Vision.WorkerCount = 6
	}
	if cfg.Matching.ClusterThreshold == 0 {
		cfg.Matching.ClusterThreshold = 0.7
	}
	if cfg.Matching.FaceSearchThreshold == 0 {
		cfg.Matching.FaceSearchThreshold = 0.6
	}
	if cfg.Matching.MinFaceConfidence == 0 {
		cfg.Matching.MinFaceConfidence = 0.8
	}
	if cfg.Matching.MinBibConfidence == 0 {
		cfg.Matching.MinBibConfidence = 0.7
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SNAP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SNAP_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("SNAP_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("SNAP_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("SNAP_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("SNAP_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("SNAP_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("SNAP_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("SNAP_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("SNAP_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("SNAP_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("SNAP_VISION_PROVIDER_URL"); v != "" {
		cfg.Vision.ProviderURL = v
	}
	if v := os.Getenv("SNAP_VISION_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vision.WorkerCount = n
		}
	}
	if v := os.Getenv("SNAP_CLUSTER_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.ClusterThreshold = f
		}
	}
}
