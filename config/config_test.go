package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrenagi/go-upload-progress/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), *cfg)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "downloads", cfg.Upload.StorageRoot)
	assert.Equal(t, 200*time.Millisecond, cfg.Upload.RateLimitInterval)
	assert.Equal(t, "disk", cfg.Storage.Driver)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9090"
upload:
  storageRoot: /var/uploads
  rateLimitInterval: 1s
storage:
  driver: blob
  bucketURL: mem://
logging:
  level: info
  format: json
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadHeaderTimeout)
	assert.Equal(t, "/var/uploads", cfg.Upload.StorageRoot)
	assert.Equal(t, time.Second, cfg.Upload.RateLimitInterval)
	assert.Equal(t, 64, cfg.Upload.NotificationQueue)
	assert.Equal(t, "blob", cfg.Storage.Driver)
	assert.Equal(t, "mem://", cfg.Storage.BucketURL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9090"
upload:
  storageRoot: /var/uploads
`)
	t.Setenv("LISTEN_ADDR", ":7070")
	t.Setenv("STORAGE_ROOT", "/tmp/uploads")
	t.Setenv("RATE_LIMIT_INTERVAL", "50ms")
	t.Setenv("STORAGE_DRIVER", "gcs")
	t.Setenv("GCS_BUCKET", "uploads")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("OTLP_ENDPOINT", "localhost:4317")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, "/tmp/uploads", cfg.Upload.StorageRoot)
	assert.Equal(t, 50*time.Millisecond, cfg.Upload.RateLimitInterval)
	assert.Equal(t, "gcs", cfg.Storage.Driver)
	assert.Equal(t, "uploads", cfg.Storage.Bucket)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.OTLPEndpoint)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, "server: ["))
		assert.Error(t, err)
	})

	t.Run("malformed interval", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_INTERVAL", "soon")
		_, err := config.Load("")
		assert.ErrorContains(t, err, "RATE_LIMIT_INTERVAL")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr []string
	}{
		{name: "defaults", mutate: func(c *config.Config) {}},
		{name: "memory driver", mutate: func(c *config.Config) { c.Storage.Driver = "memory" }},
		{
			name:    "empty address",
			mutate:  func(c *config.Config) { c.Server.Address = "" },
			wantErr: []string{"server.address"},
		},
		{
			name:    "negative interval",
			mutate:  func(c *config.Config) { c.Upload.RateLimitInterval = -time.Second },
			wantErr: []string{"rateLimitInterval"},
		},
		{
			name:    "blob without url",
			mutate:  func(c *config.Config) { c.Storage.Driver = "blob" },
			wantErr: []string{"bucketURL"},
		},
		{
			name:    "gcs without bucket",
			mutate:  func(c *config.Config) { c.Storage.Driver = "gcs" },
			wantErr: []string{"storage.bucket"},
		},
		{
			name: "every problem is reported",
			mutate: func(c *config.Config) {
				c.Server.Address = ""
				c.Storage.Driver = "ftp"
			},
			wantErr: []string{"server.address", `unknown storage.driver "ftp"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			for _, msg := range tt.wantErr {
				assert.ErrorContains(t, err, msg)
			}
		})
	}
}
