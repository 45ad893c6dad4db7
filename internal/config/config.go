package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Receiver ReceiverConfig `toml:"receiver"`
	API      APIConfig      `toml:"api"`
	Bundler  BundlerConfig  `toml:"bundler"`
	Display  DisplayConfig  `toml:"display"`
	Storage  StorageConfig  `toml:"storage"`
	MQTT     MQTTConfig     `toml:"mqtt"`
	Kafka    KafkaConfig    `toml:"kafka"`
}

type ReceiverConfig struct {
	GRPCPort int    `toml:"grpc_port"`
	HTTPPort int    `toml:"http_port"`
	Bind     string `toml:"bind"`
}

type APIConfig struct {
	Enabled bool   `toml:"enabled"`
	Port    int    `toml:"port"`
	Bind    string `toml:"bind"`
}

type BundlerConfig struct {
	WindowSeconds int `toml:"window_seconds"`
	// MaxResults caps bundled output; 0 means no cap.
	MaxResults int `toml:"max_results"`
}

// Window returns the bundling window as a duration.
func (b BundlerConfig) Window() time.Duration {
	return time.Duration(b.WindowSeconds) * time.Second
}

type DisplayConfig struct {
	EventBufferSize int `toml:"event_buffer_size"`
	RefreshRateMS   int `toml:"refresh_rate_ms"`
}

type StorageConfig struct {
	DBPath             string `toml:"db_path"`
	RetentionDays      int    `toml:"retention_days"`
	MaxEventsPerDevice int    `toml:"max_events_per_device"`
}

type MQTTConfig struct {
	Broker   string `toml:"broker"`
	Topic    string `toml:"topic"`
	ClientID string `toml:"client_id"`
	QoS      int    `toml:"qos"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// Enabled reports whether a broker is configured.
func (m MQTTConfig) Enabled() bool {
	return strings.TrimSpace(m.Broker) != ""
}

type KafkaConfig struct {
	// Brokers is a comma separated host:port list.
	Brokers string `toml:"brokers"`
	Topic   string `toml:"topic"`
	GroupID string `toml:"group_id"`
}

// Enabled reports whether at least one broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.BrokerList()) > 0
}

// BrokerList splits Brokers, dropping empty entries.
func (k KafkaConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

type LoadResult struct {
	Config   Config
	Warnings []string
}

// DefaultConfigPath is ~/.config/fleetwatch/config.toml, or "" when the
// home directory is unknown.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "fleetwatch", "config.toml")
}

func Load() (*LoadResult, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom reads the TOML file at path. A missing file yields the defaults.
func LoadFrom(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &LoadResult{Config: DefaultConfig()}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	result, err := parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return result, nil
}

func LoadFromString(data string) (*LoadResult, error) {
	return parse(data)
}

var knownSections = map[string]bool{
	"receiver": true,
	"api":      true,
	"bundler":  true,
	"display":  true,
	"storage":  true,
	"mqtt":     true,
	"kafka":    true,
}

// parse decodes data over the defaults, so only keys present in the file
// override them.
func parse(data string) (*LoadResult, error) {
	result := &LoadResult{Config: DefaultConfig()}
	if strings.TrimSpace(data) == "" {
		return result, nil
	}

	md, err := toml.Decode(data, &result.Config)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	reported := make(map[string]bool)
	for _, key := range md.Undecoded() {
		top := key[0]
		if !knownSections[top] {
			if !reported[top] {
				reported[top] = true
				result.Warnings = append(result.Warnings, fmt.Sprintf("unknown config key: %q", top))
			}
			continue
		}
		result.Warnings = append(result.Warnings, fmt.Sprintf("unknown config key: %q", key.String()))
	}

	if err := validate(&result.Config); err != nil {
		return nil, err
	}
	return result, nil
}

func validate(cfg *Config) error {
	var errs []string

	checkPort := func(name string, port int) {
		if port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("%s must be 1-65535, got %d", name, port))
		}
	}
	checkPort("grpc_port", cfg.Receiver.GRPCPort)
	checkPort("http_port", cfg.Receiver.HTTPPort)
	if cfg.API.Enabled {
		checkPort("api port", cfg.API.Port)
	}

	if cfg.Bundler.WindowSeconds < 1 {
		errs = append(errs, fmt.Sprintf("bundler window_seconds must be positive, got %d", cfg.Bundler.WindowSeconds))
	}
	if cfg.Bundler.MaxResults < 0 {
		errs = append(errs, fmt.Sprintf("bundler max_results must not be negative, got %d", cfg.Bundler.MaxResults))
	}

	if cfg.Display.EventBufferSize < 1 {
		errs = append(errs, fmt.Sprintf("event_buffer_size must be positive, got %d", cfg.Display.EventBufferSize))
	}
	if cfg.Display.RefreshRateMS < 1 {
		errs = append(errs, fmt.Sprintf("refresh_rate_ms must be positive, got %d", cfg.Display.RefreshRateMS))
	}

	if cfg.Storage.RetentionDays <= 0 {
		errs = append(errs, fmt.Sprintf("storage retention_days must be positive, got %d", cfg.Storage.RetentionDays))
	}
	if cfg.Storage.MaxEventsPerDevice <= 0 {
		errs = append(errs, fmt.Sprintf("storage max_events_per_device must be positive, got %d", cfg.Storage.MaxEventsPerDevice))
	}

	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		errs = append(errs, fmt.Sprintf("mqtt qos must be 0-2, got %d", cfg.MQTT.QoS))
	}
	if cfg.MQTT.Enabled() && strings.TrimSpace(cfg.MQTT.Topic) == "" {
		errs = append(errs, "mqtt topic must be set when broker is configured")
	}
	if cfg.Kafka.Enabled() && strings.TrimSpace(cfg.Kafka.Topic) == "" {
		errs = append(errs, "kafka topic must be set when brokers are configured")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation error: %s", strings.Join(errs, "; "))
	}
	return nil
}
