// ABOUTME: Configuration loading and parsing for modemctl
// ABOUTME: Supports YAML files with environment variable expansion, defaults, and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete modemctl configuration
type Config struct {
	Serial   SerialConfig   `yaml:"serial"`
	GPIO     GPIOConfig     `yaml:"gpio"`
	Receiver ReceiverConfig `yaml:"receiver"`
	Storage  StorageConfig  `yaml:"storage"`
	Console  ConsoleConfig  `yaml:"console"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SerialConfig names the UART wired to the modem
type SerialConfig struct {
	Device string `yaml:"device"`
}

// GPIOConfig selects the pin driver and the modem control lines
type GPIOConfig struct {
	Driver    string `yaml:"driver"` // cdev, sysfs or fake
	Chip      string `yaml:"chip"`   // cdev only
	SysfsRoot string `yaml:"sysfs_root"`
	MaxPin    int    `yaml:"max_pin"`
	Power     int    `yaml:"power"`
	Reset     int    `yaml:"reset"`
	PowerKey  int    `yaml:"power_key"`
}

// ReceiverConfig tunes the modem line receiver
type ReceiverConfig struct {
	BufferSize   int           `yaml:"buffer_size"`
	PollInterval time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	PollIntervalRaw string `yaml:"poll_interval"`
}

// StorageConfig holds persistent store configuration
type StorageConfig struct {
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// ConsoleConfig holds interactive console configuration
type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Prompt  string `yaml:"prompt"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration for a TTGO T-Call style board: modem
// on /dev/ttyS1, power on GPIO 23, reset on 5 and power key on 4.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{Device: "/dev/ttyS1"},
		GPIO: GPIOConfig{
			Driver:    "cdev",
			Chip:      "gpiochip0",
			SysfsRoot: "/sys/class/gpio",
			MaxPin:    39,
			Power:     23,
			Reset:     5,
			PowerKey:  4,
		},
		Receiver: ReceiverConfig{
			BufferSize:      128,
			PollInterval:    250 * time.Millisecond,
			PollIntervalRaw: "250ms",
		},
		Storage: StorageConfig{
			Path:      "/var/lib/modemctl/nvs.db",
			Namespace: "STORAGE",
		},
		Console: ConsoleConfig{
			Enabled: true,
			Prompt:  "[console]$ ",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
// Fields missing from the file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Serial.Device == "" {
		return fmt.Errorf("serial.device is required")
	}

	switch c.GPIO.Driver {
	case "cdev":
		if c.GPIO.Chip == "" {
			return fmt.Errorf("gpio.chip is required for the cdev driver")
		}
	case "sysfs", "fake":
	default:
		return fmt.Errorf("gpio.driver must be cdev, sysfs or fake, got %q", c.GPIO.Driver)
	}
	if c.GPIO.MaxPin < 0 {
		return fmt.Errorf("gpio.max_pin must not be negative")
	}

	// The three modem lines must be distinct, in-range pins
	pins := map[string]int{
		"gpio.power":     c.GPIO.Power,
		"gpio.reset":     c.GPIO.Reset,
		"gpio.power_key": c.GPIO.PowerKey,
	}
	seen := make(map[int]string, len(pins))
	for _, name := range []string{"gpio.power", "gpio.reset", "gpio.power_key"} {
		pin := pins[name]
		if pin < 0 || pin > c.GPIO.MaxPin {
			return fmt.Errorf("%s must be between 0 and %d, got %d", name, c.GPIO.MaxPin, pin)
		}
		if other, dup := seen[pin]; dup {
			return fmt.Errorf("%s and %s both use pin %d", other, name, pin)
		}
		seen[pin] = name
	}

	if c.Receiver.BufferSize < 2 {
		return fmt.Errorf("receiver.buffer_size must be at least 2, got %d", c.Receiver.BufferSize)
	}
	if c.Receiver.PollInterval <= 0 {
		return fmt.Errorf("receiver.poll_interval must be positive")
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if n := len(c.Storage.Namespace); n == 0 || n > 15 {
		return fmt.Errorf("storage.namespace must be 1 to 15 bytes, got %q", c.Storage.Namespace)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Receiver.PollIntervalRaw != "" {
		cfg.Receiver.PollInterval, err = time.ParseDuration(cfg.Receiver.PollIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing poll_interval %q: %w", cfg.Receiver.PollIntervalRaw, err)
		}
	}

	return nil
}
