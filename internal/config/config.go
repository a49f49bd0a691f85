// Package config loads the node configuration from YAML with environment overrides.
//
// Precedence, lowest first: built-in defaults, the YAML file, SENSORCLUSTER_*
// environment variables. Command-line flags are applied by main afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/sensorcluster/internal/gpio"
	"github.com/sweeney/sensorcluster/internal/mqtt"
)

// Config is the full node configuration.
type Config struct {
	Device   string         `yaml:"device"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	GPIO     GPIOConfig     `yaml:"gpio"`
	OneWire  OneWireConfig  `yaml:"onewire"`
	HTTP     HTTPConfig     `yaml:"http"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`

	// LoopIntervalMS is the scheduler step period.
	LoopIntervalMS int `yaml:"loop_interval_ms"`
}

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	Server    string `yaml:"server"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	BaseTopic string `yaml:"base_topic"`
	// ClientID overrides the MAC-derived client identifier.
	ClientID  string `yaml:"client_id"`
	InboxSize int    `yaml:"inbox_size"`
}

// GPIOConfig holds pin assignments (BCM numbering).
type GPIOConfig struct {
	Chip        string `yaml:"chip"`
	PresencePin int    `yaml:"presence_pin"`
	AlertPin    int    `yaml:"alert_pin"`
	RedPin      int    `yaml:"red_pin"`
	GreenPin    int    `yaml:"green_pin"`
	BluePin     int    `yaml:"blue_pin"`
}

// OneWireConfig locates the temperature probe.
type OneWireConfig struct {
	// DevicesPath is the sysfs directory holding w1 slave devices.
	DevicesPath string `yaml:"devices_path"`
	// DeviceID selects a probe; empty means the first DS18B20 found.
	DeviceID string `yaml:"device_id"`
}

// HTTPConfig configures the status server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// InfluxDBConfig configures the optional history sink.
type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// LoggingConfig sets the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Device: "SensorCluster",
		MQTT: MQTTConfig{
			Server:    "localhost",
			Port:      1883,
			BaseTopic: "sensorcluster",
			InboxSize: mqtt.DefaultInboxSize,
		},
		GPIO: GPIOConfig{
			Chip:        gpio.DefaultChip,
			PresencePin: gpio.DefaultPresencePin,
			AlertPin:    gpio.DefaultAlertPin,
			RedPin:      gpio.DefaultRedPin,
			GreenPin:    gpio.DefaultGreenPin,
			BluePin:     gpio.DefaultBluePin,
		},
		OneWire: OneWireConfig{
			DevicesPath: "/sys/bus/w1/devices",
		},
		HTTP: HTTPConfig{
			Addr: ":80",
		},
		InfluxDB: InfluxDBConfig{
			URL:    "http://localhost:8086",
			Org:    "home",
			Bucket: "sensorcluster",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		LoopIntervalMS: 10,
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SENSORCLUSTER_DEVICE"); v != "" {
		cfg.Device = v
	}

	// MQTT
	if v := os.Getenv("SENSORCLUSTER_MQTT_SERVER"); v != "" {
		cfg.MQTT.Server = v
	}
	if v := os.Getenv("SENSORCLUSTER_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Port = port
		}
	}
	if v := os.Getenv("SENSORCLUSTER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("SENSORCLUSTER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("SENSORCLUSTER_MQTT_BASE_TOPIC"); v != "" {
		cfg.MQTT.BaseTopic = v
	}
	if v := os.Getenv("SENSORCLUSTER_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.ClientID = v
	}

	// HTTP
	if v := os.Getenv("SENSORCLUSTER_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	// InfluxDB
	if v := os.Getenv("SENSORCLUSTER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("SENSORCLUSTER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for values the node cannot run with.
func (c *Config) Validate() error {
	var errs []string

	if c.Device == "" {
		errs = append(errs, "device is required")
	}

	if c.MQTT.Server == "" {
		errs = append(errs, "mqtt.server is required")
	}
	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		errs = append(errs, "mqtt.port must be between 1 and 65535")
	}
	if strings.Trim(c.MQTT.BaseTopic, "/") == "" {
		errs = append(errs, "mqtt.base_topic is required")
	}
	if strings.ContainsAny(c.MQTT.BaseTopic, "#+") {
		errs = append(errs, "mqtt.base_topic must not contain wildcards")
	}
	if c.MQTT.InboxSize < 1 {
		errs = append(errs, "mqtt.inbox_size must be positive")
	}

	pins := map[string]int{
		"gpio.presence_pin": c.GPIO.PresencePin,
		"gpio.alert_pin":    c.GPIO.AlertPin,
		"gpio.red_pin":      c.GPIO.RedPin,
		"gpio.green_pin":    c.GPIO.GreenPin,
		"gpio.blue_pin":     c.GPIO.BluePin,
	}
	seen := make(map[int]bool, len(pins))
	for _, name := range []string{"gpio.presence_pin", "gpio.alert_pin", "gpio.red_pin", "gpio.green_pin", "gpio.blue_pin"} {
		pin := pins[name]
		if pin < 0 {
			errs = append(errs, name+" must not be negative")
			continue
		}
		if seen[pin] {
			errs = append(errs, fmt.Sprintf("%s reuses pin %d", name, pin))
		}
		seen[pin] = true
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when enabled")
		}
	}

	if c.LoopIntervalMS < 1 {
		errs = append(errs, "loop_interval_ms must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BrokerURL returns the paho broker address.
func (c *Config) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTT.Server, c.MQTT.Port)
}

// LoopInterval returns the scheduler step period.
func (c *Config) LoopInterval() time.Duration {
	return time.Duration(c.LoopIntervalMS) * time.Millisecond
}
