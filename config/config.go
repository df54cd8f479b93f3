// Package config loads the server configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Upload    UploadConfig    `yaml:"upload" json:"upload"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
}

type ServerConfig struct {
	Address           string        `yaml:"address" json:"address"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout" json:"readHeaderTimeout"`
	// ReadTimeout and WriteTimeout bound whole uploads, so they default to 0 (none).
	ReadTimeout     time.Duration `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" json:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout" json:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
}

type UploadConfig struct {
	StorageRoot       string        `yaml:"storageRoot" json:"storageRoot"`
	RateLimitInterval time.Duration `yaml:"rateLimitInterval" json:"rateLimitInterval"`
	NotificationQueue int           `yaml:"notificationQueue" json:"notificationQueue"`
}

type StorageConfig struct {
	// Driver is one of disk, memory, blob or gcs.
	Driver    string `yaml:"driver" json:"driver"`
	BucketURL string `yaml:"bucketURL" json:"bucketURL"`
	Bucket    string `yaml:"bucket" json:"bucket"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type TelemetryConfig struct {
	ServiceName  string `yaml:"serviceName" json:"serviceName"`
	OTLPEndpoint string `yaml:"otlpEndpoint" json:"otlpEndpoint"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:           ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       30 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Upload: UploadConfig{
			StorageRoot:       "downloads",
			RateLimitInterval: 200 * time.Millisecond,
			NotificationQueue: 64,
		},
		Storage: StorageConfig{
			Driver: "disk",
		},
		Logging: LoggingConfig{
			Level:  "debug",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "go-upload-progress",
		},
	}
}

// Load reads path on top of the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("STORAGE_ROOT"); v != "" {
		c.Upload.StorageRoot = v
	}
	if v := os.Getenv("RATE_LIMIT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_INTERVAL: %w", err)
		}
		c.Upload.RateLimitInterval = d
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("STORAGE_BUCKET_URL"); v != "" {
		c.Storage.BucketURL = v
	}
	if v := os.Getenv("GCS_BUCKET"); v != "" {
		c.Storage.Bucket = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("OTLP_ENDPOINT"); v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Address == "" {
		errs = append(errs, errors.New("server.address is required"))
	}
	if c.Upload.RateLimitInterval < 0 {
		errs = append(errs, errors.New("upload.rateLimitInterval must not be negative"))
	}
	switch c.Storage.Driver {
	case "disk", "memory":
	case "blob":
		if c.Storage.BucketURL == "" {
			errs = append(errs, errors.New("storage.bucketURL is required for the blob driver"))
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.bucket is required for the gcs driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	return errors.Join(errs...)
}
