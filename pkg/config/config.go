package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"media-service/pkg/errno"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Transcode TranscodeConfig `mapstructure:"transcode"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// StorageConfig describes the S3-compatible bucket every artifact lands in.
type StorageConfig struct {
	Driver         string        `mapstructure:"driver"`
	Endpoint       string        `mapstructure:"endpoint"`
	Region         string        `mapstructure:"region"`
	Bucket         string        `mapstructure:"bucket"`
	AccessKey      string        `mapstructure:"access_key"`
	SecretKey      string        `mapstructure:"secret_key"`
	PublicBase     string        `mapstructure:"public_base"`
	UseSSL         bool          `mapstructure:"use_ssl"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PresignExpiry  time.Duration `mapstructure:"presign_expiry"`
}

// TranscodeConfig 转码配置
type TranscodeConfig struct {
	FFmpeg FFmpegConfig `mapstructure:"ffmpeg"`
	WebP   WebPConfig   `mapstructure:"webp"`
	HLS    HLSConfig    `mapstructure:"hls"`
}

// FFmpegConfig FFmpeg相关配置
type FFmpegConfig struct {
	BinaryPath  string        `mapstructure:"binary_path"`
	TempDir     string        `mapstructure:"temp_dir"`
	Timeout     time.Duration `mapstructure:"timeout"`
	GracePeriod time.Duration `mapstructure:"grace_period"`
}

// WebPConfig image encoding parameters.
type WebPConfig struct {
	Quality int `mapstructure:"quality"`
}

// HLSConfig video segmenting parameters.
type HLSConfig struct {
	SegmentDuration   int  `mapstructure:"segment_duration"`
	GOPSize           int  `mapstructure:"gop_size"`
	SceneCutThreshold int  `mapstructure:"scene_cut_threshold"`
	MaxSegments       int  `mapstructure:"max_segments"`
	UploadConcurrency int  `mapstructure:"upload_concurrency"`
	StrictSegments    bool `mapstructure:"strict_segments"`
}

// WorkerConfig bounds concurrent encoder processes. Zero keeps encoding on the caller.
type WorkerConfig struct {
	MaxConcurrentTasks int `mapstructure:"max_concurrent_tasks"`
	QueueCapacity      int `mapstructure:"queue_capacity"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Enabled          bool              `mapstructure:"enabled"`
	BootstrapServers []string          `mapstructure:"bootstrap_servers"`
	ClientID         string            `mapstructure:"client_id"`
	Topics           KafkaTopicsConfig `mapstructure:"topics"`
}

type KafkaTopicsConfig struct {
	ArtifactsStored string `mapstructure:"artifacts_stored"`
}

// ProfilingConfig pyroscope settings.
type ProfilingConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	ServerAddress   string `mapstructure:"server_address"`
	ApplicationName string `mapstructure:"application_name"`
}

var (
	globalMu     sync.RWMutex
	globalConfig *Config
)

// SetGlobalConfig 设置全局配置
func SetGlobalConfig(cfg *Config) {
	globalMu.Lock()
	globalConfig = cfg
	globalMu.Unlock()
}

// GetGlobalConfig 获取全局配置
func GetGlobalConfig() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8085)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.max_upload_bytes", 512<<20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("storage.driver", "sigv4")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.request_timeout", 30*time.Second)
	v.SetDefault("storage.presign_expiry", time.Hour)
	v.SetDefault("transcode.ffmpeg.binary_path", "ffmpeg")
	v.SetDefault("transcode.ffmpeg.timeout", 30*time.Minute)
	v.SetDefault("transcode.ffmpeg.grace_period", 5*time.Second)
	v.SetDefault("transcode.webp.quality", 80)
	v.SetDefault("transcode.hls.segment_duration", 6)
	v.SetDefault("transcode.hls.gop_size", 48)
	v.SetDefault("transcode.hls.scene_cut_threshold", 0)
	v.SetDefault("transcode.hls.max_segments", 1000)
	v.SetDefault("transcode.hls.upload_concurrency", 8)
	v.SetDefault("transcode.hls.strict_segments", false)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.client_id", "media-service")
	v.SetDefault("kafka.bootstrap_servers", []string{"localhost:29092"})
	v.SetDefault("kafka.topics.artifacts_stored", "media.artifacts.stored")
	v.SetDefault("profiling.application_name", "media-service")
}

// Load 加载配置. An empty path loads defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MEDIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return &cfg, nil
}

// normalize 补全配置的默认值
func (c *Config) normalize() {
	// 兼容 S3_* 环境变量覆盖
	if e := os.Getenv("S3_ENDPOINT"); e != "" {
		c.Storage.Endpoint = e
	}
	if a := os.Getenv("S3_ACCESS_KEY"); a != "" {
		c.Storage.AccessKey = a
	}
	if s := os.Getenv("S3_SECRET_KEY"); s != "" {
		c.Storage.SecretKey = s
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sigv4"
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}
	if c.Storage.RequestTimeout <= 0 {
		c.Storage.RequestTimeout = 30 * time.Second
	}
	if c.Storage.PresignExpiry <= 0 {
		c.Storage.PresignExpiry = time.Hour
	}

	if c.Transcode.FFmpeg.BinaryPath == "" {
		c.Transcode.FFmpeg.BinaryPath = "ffmpeg"
	}
	if c.Transcode.FFmpeg.TempDir == "" {
		c.Transcode.FFmpeg.TempDir = os.TempDir()
	}
	if c.Transcode.FFmpeg.Timeout <= 0 {
		c.Transcode.FFmpeg.Timeout = 30 * time.Minute
	}
	if c.Transcode.FFmpeg.GracePeriod <= 0 {
		c.Transcode.FFmpeg.GracePeriod = 5 * time.Second
	}
	if c.Transcode.WebP.Quality <= 0 || c.Transcode.WebP.Quality > 100 {
		c.Transcode.WebP.Quality = 80
	}
	if c.Transcode.HLS.SegmentDuration <= 0 {
		c.Transcode.HLS.SegmentDuration = 6
	}
	if c.Transcode.HLS.GOPSize <= 0 {
		c.Transcode.HLS.GOPSize = 48
	}
	if c.Transcode.HLS.SceneCutThreshold < 0 {
		c.Transcode.HLS.SceneCutThreshold = 0
	}
	if c.Transcode.HLS.MaxSegments <= 0 {
		c.Transcode.HLS.MaxSegments = 1000
	}
	if c.Transcode.HLS.UploadConcurrency <= 0 {
		c.Transcode.HLS.UploadConcurrency = 8
	}

	if c.Worker.MaxConcurrentTasks < 0 {
		c.Worker.MaxConcurrentTasks = 0
	}
	if c.Worker.QueueCapacity <= 0 {
		c.Worker.QueueCapacity = c.Worker.MaxConcurrentTasks * 10
		if c.Worker.QueueCapacity <= 0 {
			c.Worker.QueueCapacity = 100
		}
	}

	if len(c.Kafka.BootstrapServers) == 0 {
		c.Kafka.BootstrapServers = []string{"localhost:29092"}
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "media-service"
	}
	if c.Kafka.Topics.ArtifactsStored == "" {
		c.Kafka.Topics.ArtifactsStored = "media.artifacts.stored"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
}

// Validate reports configuration that would make the storage gateway unusable.
// Missing credentials are allowed: presigned reads then fall back to public URLs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.Endpoint) == "" {
		return &errno.ConfigError{Field: "storage.endpoint", Reason: "is required"}
	}
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return &errno.ConfigError{Field: "storage.bucket", Reason: "is required"}
	}
	if (c.Storage.AccessKey == "") != (c.Storage.SecretKey == "") {
		return &errno.ConfigError{Field: "storage.access_key/secret_key", Reason: "must be set together"}
	}
	switch c.Storage.Driver {
	case "sigv4", "minio":
	default:
		return &errno.ConfigError{Field: "storage.driver", Reason: fmt.Sprintf("unsupported driver %q", c.Storage.Driver)}
	}
	return nil
}

// HasCredentials reports whether requests can be signed.
func (c *StorageConfig) HasCredentials() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}
