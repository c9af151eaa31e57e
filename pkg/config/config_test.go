package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-service/pkg/errno"
)

const sampleYAML = `
storage:
  endpoint: http://minio:9000
  bucket: lms-media
  access_key: AKID
  secret_key: from-file
transcode:
  hls:
    segment_duration: 4
    strict_segments: true
worker:
  max_concurrent_tasks: 3
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadAppliesFileAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "sigv4", cfg.Storage.Driver)
	assert.Equal(t, "us-east-1", cfg.Storage.Region)
	assert.Equal(t, 30*time.Second, cfg.Storage.RequestTimeout)
	assert.Equal(t, time.Hour, cfg.Storage.PresignExpiry)
	assert.Equal(t, 4, cfg.Transcode.HLS.SegmentDuration)
	assert.Equal(t, 48, cfg.Transcode.HLS.GOPSize)
	assert.True(t, cfg.Transcode.HLS.StrictSegments)
	assert.Equal(t, 80, cfg.Transcode.WebP.Quality)
	assert.Equal(t, 30, cfg.Worker.QueueCapacity)
	assert.Equal(t, "media.artifacts.stored", cfg.Kafka.Topics.ArtifactsStored)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("MEDIA_STORAGE_BUCKET", "from-env")
	t.Setenv("S3_SECRET_KEY", "from-s3-env")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Storage.Bucket)
	assert.Equal(t, "from-s3-env", cfg.Storage.SecretKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{Storage: StorageConfig{Driver: "sigv4", Endpoint: "http://minio:9000", Bucket: "b"}}
	}

	cases := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"missing endpoint", func(c *Config) { c.Storage.Endpoint = "" }, "storage.endpoint"},
		{"missing bucket", func(c *Config) { c.Storage.Bucket = " " }, "storage.bucket"},
		{"half credentials", func(c *Config) { c.Storage.AccessKey = "AKID" }, "storage.access_key/secret_key"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "gcs" }, "storage.driver"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.edit(cfg)
			var cfgErr *errno.ConfigError
			require.True(t, errors.As(cfg.Validate(), &cfgErr))
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}

	cfg := base()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Storage.HasCredentials())
}
