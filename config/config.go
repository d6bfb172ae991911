// Package config loads and validates the bridge configuration.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	MQTT    MQTTConfig    `json:"mqtt" yaml:"mqtt"`
	Zenoh   ZenohConfig   `json:"zenoh" yaml:"zenoh"`
	Bridge  BridgeConfig  `json:"bridge" yaml:"bridge"`
	Logging LogConfig     `json:"logging" yaml:"logging"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

type MQTTConfig struct {
	Broker         string   `json:"broker" yaml:"broker"`
	ClientID       string   `json:"clientId" yaml:"clientId"`
	Username       string   `json:"username" yaml:"username"`
	Password       string   `json:"password" yaml:"password"`
	Subscriptions  []string `json:"subscriptions" yaml:"subscriptions"`
	DefaultQoS     byte     `json:"defaultQos" yaml:"defaultQos"`
	ConnectTimeout string   `json:"connectTimeout" yaml:"connectTimeout"`
	PublishTimeout string   `json:"publishTimeout" yaml:"publishTimeout"`
	TLS            struct {
		Enable   bool   `json:"enable" yaml:"enable"`
		CertFile string `json:"certFile" yaml:"certFile"`
		KeyFile  string `json:"keyFile" yaml:"keyFile"`
		CAFile   string `json:"caFile" yaml:"caFile"`
	} `json:"tls" yaml:"tls"`
}

// ZenohScope is one key expression the bridge subscribes to on the Zenoh
// side. Retained marks samples from this scope so they are published to MQTT
// with the retain bit set.
type ZenohScope struct {
	KeyExpr  string `json:"keyExpr" yaml:"keyExpr"`
	Retained bool   `json:"retained" yaml:"retained"`
}

type ZenohConfig struct {
	RouterURL      string       `json:"routerUrl" yaml:"routerUrl"`
	Scopes         []ZenohScope `json:"scopes" yaml:"scopes"`
	Encoding       string       `json:"encoding" yaml:"encoding"`
	ConnectTimeout string       `json:"connectTimeout" yaml:"connectTimeout"`
}

type BackoffConfig struct {
	InitialDelay string  `json:"initialDelay" yaml:"initialDelay"`
	MaxDelay     string  `json:"maxDelay" yaml:"maxDelay"`
	Multiplier   float64 `json:"multiplier" yaml:"multiplier"`
}

type BridgeConfig struct {
	QueueSize int           `json:"queueSize" yaml:"queueSize"`
	Backoff   BackoffConfig `json:"backoff" yaml:"backoff"`
}

type LogConfig struct {
	Level      string `json:"level" yaml:"level"`           // debug, info, warn, error
	Encoding   string `json:"encoding" yaml:"encoding"`     // json or console
	OutputPath string `json:"outputPath" yaml:"outputPath"` // file path or "stdout"
	MaxSizeMB  int    `json:"maxSizeMb" yaml:"maxSizeMb"`
	MaxBackups int    `json:"maxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `json:"maxAgeDays" yaml:"maxAgeDays"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

type MetricsConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	Address        string `json:"address" yaml:"address"`
	Path           string `json:"path" yaml:"path"`
	UpdateInterval string `json:"updateInterval" yaml:"updateInterval"` // Duration string
}

// Load reads and parses the configuration file. JSON and YAML are both
// accepted, selected by file extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.setDefaults()

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) setDefaults() {
	// Relay everything at QoS 0 unless told otherwise.
	if len(c.MQTT.Subscriptions) == 0 {
		c.MQTT.Subscriptions = []string{"#"}
	}
	if c.MQTT.ConnectTimeout == "" {
		c.MQTT.ConnectTimeout = "10s"
	}
	if c.MQTT.PublishTimeout == "" {
		c.MQTT.PublishTimeout = "5s"
	}

	if c.Zenoh.Encoding == "" {
		c.Zenoh.Encoding = "application/octet-stream"
	}
	if c.Zenoh.ConnectTimeout == "" {
		c.Zenoh.ConnectTimeout = "10s"
	}

	if c.Bridge.QueueSize <= 0 {
		c.Bridge.QueueSize = 100
	}
	if c.Bridge.Backoff.InitialDelay == "" {
		c.Bridge.Backoff.InitialDelay = "1s"
	}
	if c.Bridge.Backoff.MaxDelay == "" {
		c.Bridge.Backoff.MaxDelay = "30s"
	}
	if c.Bridge.Backoff.Multiplier == 0 {
		c.Bridge.Backoff.Multiplier = 2.0
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Encoding == "" {
		c.Logging.Encoding = "json"
	}
	if c.Logging.OutputPath == "" {
		c.Logging.OutputPath = "stdout"
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAgeDays <= 0 {
		c.Logging.MaxAgeDays = 28
	}

	if c.Metrics.Address == "" {
		c.Metrics.Address = ":2112"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.UpdateInterval == "" {
		c.Metrics.UpdateInterval = "15s"
	}
}

// validateConfig performs validation of all configuration values
func validateConfig(cfg *Config) error {
	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt broker address is required")
	}
	if cfg.MQTT.DefaultQoS > 2 {
		return fmt.Errorf("mqtt default qos must be 0, 1, or 2")
	}
	for _, sub := range cfg.MQTT.Subscriptions {
		if sub == "" {
			return fmt.Errorf("mqtt subscription filter cannot be empty")
		}
	}
	if _, err := time.ParseDuration(cfg.MQTT.ConnectTimeout); err != nil {
		return fmt.Errorf("invalid mqtt connect timeout: %w", err)
	}
	if _, err := time.ParseDuration(cfg.MQTT.PublishTimeout); err != nil {
		return fmt.Errorf("invalid mqtt publish timeout: %w", err)
	}

	if cfg.MQTT.TLS.Enable {
		if cfg.MQTT.TLS.CertFile == "" {
			return fmt.Errorf("tls cert file is required when tls is enabled")
		}
		if cfg.MQTT.TLS.KeyFile == "" {
			return fmt.Errorf("tls key file is required when tls is enabled")
		}
		if cfg.MQTT.TLS.CAFile == "" {
			return fmt.Errorf("tls ca file is required when tls is enabled")
		}
	}

	if cfg.Zenoh.RouterURL == "" {
		return fmt.Errorf("zenoh router url is required")
	}
	u, err := url.Parse(cfg.Zenoh.RouterURL)
	if err != nil {
		return fmt.Errorf("invalid zenoh router url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("zenoh router url must use http or https, got %q", u.Scheme)
	}
	for _, scope := range cfg.Zenoh.Scopes {
		if scope.KeyExpr == "" {
			return fmt.Errorf("zenoh scope key expression cannot be empty")
		}
	}
	if _, err := time.ParseDuration(cfg.Zenoh.ConnectTimeout); err != nil {
		return fmt.Errorf("invalid zenoh connect timeout: %w", err)
	}

	if cfg.Bridge.QueueSize < 1 {
		return fmt.Errorf("bridge queue size must be greater than 0")
	}
	if _, err := time.ParseDuration(cfg.Bridge.Backoff.InitialDelay); err != nil {
		return fmt.Errorf("invalid backoff initial delay: %w", err)
	}
	if _, err := time.ParseDuration(cfg.Bridge.Backoff.MaxDelay); err != nil {
		return fmt.Errorf("invalid backoff max delay: %w", err)
	}
	if cfg.Bridge.Backoff.Multiplier < 1 {
		return fmt.Errorf("backoff multiplier must be at least 1")
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	switch cfg.Logging.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log encoding: %s", cfg.Logging.Encoding)
	}

	if cfg.Metrics.Enabled {
		if _, err := time.ParseDuration(cfg.Metrics.UpdateInterval); err != nil {
			return fmt.Errorf("invalid metrics update interval: %w", err)
		}
	}

	return nil
}

// ApplyOverrides applies command line flag overrides to the configuration
func (c *Config) ApplyOverrides(queueSize int, metricsAddr, metricsPath string, metricsInterval time.Duration) {
	if queueSize > 0 {
		c.Bridge.QueueSize = queueSize
	}
	if metricsAddr != "" {
		c.Metrics.Address = metricsAddr
	}
	if metricsPath != "" {
		c.Metrics.Path = metricsPath
	}
	if metricsInterval > 0 {
		c.Metrics.UpdateInterval = metricsInterval.String()
	}
}
