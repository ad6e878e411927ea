// Package config loads flowstream settings from YAML.
//
// A configuration file only needs the values it changes; everything else
// keeps the Default value:
//
//	model:
//	  provider: anthropic
//	  name: claude-3-5-sonnet-20241022
//	  system: "You are a helpful assistant for {{.user}}."
//	loop:
//	  max_iterations: 8
//	  tool_timeout: 20s
//	events:
//	  queue_size: 500
//	logging:
//	  level: debug
//	  format: json
//
// The model API key may be left out of the file: FLOWSTREAM_API_KEY, then the
// provider's own variable (ANTHROPIC_API_KEY, OPENAI_API_KEY), fill it in.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/flowstream/logging"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Supported model providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderScripted  = "scripted"
)

// EnvAPIKey overrides the provider specific API key variables.
const EnvAPIKey = "FLOWSTREAM_API_KEY"

var providerEnv = map[string]string{
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
}

// Config is the root configuration.
type Config struct {
	Model   ModelConfig   `yaml:"model"`
	Loop    LoopConfig    `yaml:"loop"`
	Events  EventsConfig  `yaml:"events"`
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
}

// ModelConfig selects and parameterizes the model transport.
type ModelConfig struct {
	Provider    string   `yaml:"provider"`
	Name        string   `yaml:"name"`
	APIKey      string   `yaml:"api_key"`
	BaseURL     string   `yaml:"base_url"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
	System      string   `yaml:"system"`
}

// LoopConfig bounds the streaming loop.
type LoopConfig struct {
	MaxIterations int           `yaml:"max_iterations"`
	ToolTimeout   time.Duration `yaml:"tool_timeout"`
}

// EventsConfig configures the event manager.
type EventsConfig struct {
	QueueSize        int  `yaml:"queue_size"`
	RegisterDefaults bool `yaml:"register_defaults"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// ServerConfig configures the SSE endpoint.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	StreamPath   string        `yaml:"stream_path"`
	MetricsPath  string        `yaml:"metrics_path"`
	PollInterval time.Duration `yaml:"poll_interval"`
	KeepAlive    time.Duration `yaml:"keep_alive"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Model: ModelConfig{
			Provider:  ProviderAnthropic,
			MaxTokens: 4096,
		},
		Loop: LoopConfig{
			MaxIterations: 10,
			ToolTimeout:   30 * time.Second,
		},
		Events: EventsConfig{
			QueueSize:        1000,
			RegisterDefaults: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			StreamPath:   "/stream",
			MetricsPath:  "/metrics",
			PollInterval: 25 * time.Millisecond,
			KeepAlive:    15 * time.Second,
		},
	}
}

// Load reads and parses the YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes YAML over the defaults, fills the API key from the
// environment and validates the result. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode yaml: %w", err)
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ApplyEnv fills an empty model API key from lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if c.Model.APIKey != "" {
		return
	}

	if v, ok := lookup(EnvAPIKey); ok && v != "" {
		c.Model.APIKey = v
		return
	}

	if name, ok := providerEnv[c.Model.Provider]; ok {
		if v, ok := lookup(name); ok {
			c.Model.APIKey = v
		}
	}
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	var errs []error

	switch c.Model.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderScripted:
	default:
		errs = append(errs, fmt.Errorf("model.provider %q not supported", c.Model.Provider))
	}

	if c.Model.MaxTokens < 0 {
		errs = append(errs, errors.New("model.max_tokens must not be negative"))
	}

	if t := c.Model.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("model.temperature %.2f outside [0, 2]", *t))
	}

	if c.Loop.MaxIterations <= 0 {
		errs = append(errs, errors.New("loop.max_iterations must be positive"))
	}

	if c.Loop.ToolTimeout < 0 {
		errs = append(errs, errors.New("loop.tool_timeout must not be negative"))
	}

	if c.Events.QueueSize <= 0 {
		errs = append(errs, errors.New("events.queue_size must be positive"))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", c.Logging.Format))
	}

	if c.Server.PollInterval <= 0 {
		errs = append(errs, errors.New("server.poll_interval must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}

// LogLevel returns the parsed logging level. Validate guarantees it parses.
func (c Config) LogLevel() logging.LogLevel {
	lvl, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return logging.LogLevelInfo
	}
	return lvl
}
