package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	UploadDir      string        `mapstructure:"upload-dir"`
	LogDirectory   string        `mapstructure:"log-dir"`
	DatabasePath   string        `mapstructure:"database-path"`
	CaptureTimeout time.Duration `mapstructure:"capture-timeout"` // How long a trigger waits for an image
	CaptureWindow  time.Duration `mapstructure:"capture-window"`  // How long newcomers still get a start signal
	PingInterval   time.Duration `mapstructure:"ping-interval"`

	// Capture history
	HistoryFlushInterval time.Duration `mapstructure:"history-flush-interval"`

	// Vertex AI classifier
	CredentialsFile   string        `mapstructure:"google-application-credentials"`
	ProjectID         string        `mapstructure:"google-cloud-project"` // Overrides project_id from the credentials file
	VertexLocation    string        `mapstructure:"vertex-location"`
	VertexModel       string        `mapstructure:"vertex-model"`
	VertexEndpoint    string        `mapstructure:"vertex-endpoint"` // Full generateContent URL, overrides location/model
	ClassifierTimeout time.Duration `mapstructure:"classifier-timeout"`
	MaxImageDimension int           `mapstructure:"max-image-dimension"` // 0 sends the stored bytes untouched

	// Optional MQTT trigger bridge, disabled when the broker is empty
	MQTTBroker       string `mapstructure:"mqtt-broker"`
	MQTTClientID     string `mapstructure:"mqtt-client-id"`
	MQTTTriggerTopic string `mapstructure:"mqtt-trigger-topic"`
	MQTTResultTopic  string `mapstructure:"mqtt-result-topic"`
	MQTTQoS          int    `mapstructure:"mqtt-qos"`

	// Optional S3 archive of captured images, disabled when the bucket is empty
	S3Bucket string `mapstructure:"s3-bucket"`
	S3Region string `mapstructure:"s3-region"`
	S3Prefix string `mapstructure:"s3-prefix"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 3000)
	v.SetDefault("upload-dir", filepath.Join(".", "uploads"))
	v.SetDefault("log-dir", filepath.Join(".", "logs"))
	v.SetDefault("database-path", filepath.Join(".", "data", "captures.db"))
	v.SetDefault("capture-timeout", 30*time.Second)
	v.SetDefault("capture-window", 5*time.Second)
	v.SetDefault("ping-interval", 30*time.Second)
	v.SetDefault("history-flush-interval", 10*time.Second)

	v.SetDefault("google-application-credentials", "")
	v.SetDefault("google-cloud-project", "")
	v.SetDefault("vertex-location", "us-central1")
	v.SetDefault("vertex-model", "gemini-2.5-pro")
	v.SetDefault("vertex-endpoint", "")
	v.SetDefault("classifier-timeout", 60*time.Second)
	v.SetDefault("max-image-dimension", 1024)

	v.SetDefault("mqtt-broker", "")
	v.SetDefault("mqtt-client-id", "ecosort-server")
	v.SetDefault("mqtt-trigger-topic", "ecosort/trigger")
	v.SetDefault("mqtt-result-topic", "ecosort/result")
	v.SetDefault("mqtt-qos", 1)

	v.SetDefault("s3-bucket", "")
	v.SetDefault("s3-region", "us-east-1")
	v.SetDefault("s3-prefix", "captures/")
}

// Load reads .env, the environment and an optional config.yaml into a Config.
// Values bound from command line flags on the global viper take precedence.
func Load() (*Config, error) {
	// .env is optional, real environment variables win over it
	_ = godotenv.Load()

	return LoadFrom(viper.GetViper())
}

// LoadFrom fills a Config from the given viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.UploadDir == "" {
		return fmt.Errorf("upload-dir cannot be empty")
	}
	if c.CaptureTimeout <= 0 {
		return fmt.Errorf("capture-timeout must be positive")
	}
	if c.CaptureWindow <= 0 {
		return fmt.Errorf("capture-window must be positive")
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("ping-interval must be positive")
	}
	if c.HistoryFlushInterval <= 0 {
		return fmt.Errorf("history-flush-interval must be positive")
	}
	if c.ClassifierTimeout <= 0 {
		return fmt.Errorf("classifier-timeout must be positive")
	}
	if c.MaxImageDimension < 0 {
		return fmt.Errorf("max-image-dimension must be non-negative")
	}
	if c.MQTTQoS < 0 || c.MQTTQoS > 2 {
		return fmt.Errorf("invalid mqtt-qos: %d", c.MQTTQoS)
	}
	return nil
}

// ServerAddress returns the address the HTTP server listens on.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ClassifierEndpoint returns the generateContent URL for the configured model.
func (c *Config) ClassifierEndpoint(projectID string) string {
	if c.VertexEndpoint != "" {
		return c.VertexEndpoint
	}
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
		c.VertexLocation, projectID, c.VertexLocation, c.VertexModel)
}
