// Package config loads the autocompact service configuration from YAML or
// JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deepnoodle-ai/autocompact"
	"github.com/deepnoodle-ai/autocompact/slogger"
	"github.com/goccy/go-yaml"
)

// Defaults applied to fields left empty.
const (
	DefaultServer   = "http://127.0.0.1:4096"
	DefaultLogLevel = "info"
)

// Config is the service configuration.
type Config struct {
	// Server is the opencode server address.
	Server string `yaml:"server,omitempty" json:"server,omitempty"`

	// Directory is the project directory sessions belong to. Empty means the
	// working directory.
	Directory string `yaml:"directory,omitempty" json:"directory,omitempty"`

	LogLevel string `yaml:"logLevel,omitempty" json:"logLevel,omitempty"`

	Retry autocompact.RetryConfig `yaml:"retry" json:"retry"`

	// ResumeDelayMs is the pause between a successful compaction and
	// resubmitting the prompt. Zero means the default.
	ResumeDelayMs int `yaml:"resumeDelayMs,omitempty" json:"resumeDelayMs,omitempty"`

	// TriggerDelayMs is the pause between a token-limit error and the first
	// compaction attempt. Zero means the default.
	TriggerDelayMs int `yaml:"triggerDelayMs,omitempty" json:"triggerDelayMs,omitempty"`

	// TerminalToasts echoes every toast to stderr as well as to the host.
	TerminalToasts bool `yaml:"terminalToasts,omitempty" json:"terminalToasts,omitempty"`

	Filter Filter `yaml:"filter,omitempty" json:"filter,omitempty"`
}

// Filter selects the sessions to handle.
type Filter struct {
	// Directories are doublestar patterns; empty allows every directory.
	Directories []string `yaml:"directories,omitempty" json:"directories,omitempty"`

	// ExcludeModels are "provider/model" globs to leave alone.
	ExcludeModels []string `yaml:"excludeModels,omitempty" json:"excludeModels,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server:         DefaultServer,
		LogLevel:       DefaultLogLevel,
		Retry:          autocompact.DefaultRetryConfig(),
		ResumeDelayMs:  int(autocompact.DefaultResumeDelay / time.Millisecond),
		TriggerDelayMs: int(autocompact.DefaultTriggerDelay / time.Millisecond),
	}
}

// Load reads the file at path, or returns Default when path is empty. The
// result has defaults applied and is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	config, err := ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

// ParseFile loads a Config from a file. The file extension is used to
// determine the configuration format (JSON or YAML).
func ParseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return ParseJSON(data)
	case ".yml", ".yaml":
		return ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// ParseYAML loads a Config from YAML. Unknown keys are rejected.
func ParseYAML(data []byte) (*Config, error) {
	var config Config
	if err := yaml.UnmarshalWithOptions(data, &config, yaml.Strict()); err != nil {
		return nil, err
	}
	var set retryKeys
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, err
	}
	config.applyDefaults(set)
	return &config, nil
}

// ParseJSON loads a Config from JSON.
func ParseJSON(data []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	var set retryKeys
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, err
	}
	config.applyDefaults(set)
	return &config, nil
}

// retryKeys records which retry fields a file sets, so an explicit zero is
// kept and left to Validate.
type retryKeys struct {
	Retry struct {
		MaxAttempts    *int     `yaml:"maxAttempts" json:"maxAttempts"`
		InitialDelayMs *int     `yaml:"initialDelayMs" json:"initialDelayMs"`
		BackoffFactor  *float64 `yaml:"backoffFactor" json:"backoffFactor"`
		MaxDelayMs     *int     `yaml:"maxDelayMs" json:"maxDelayMs"`
	} `yaml:"retry" json:"retry"`
}

// applyDefaults fills fields the file left out. Retry fields take their
// default only when absent; the other fields also treat zero as absent.
func (c *Config) applyDefaults(set retryKeys) {
	d := Default()
	if c.Server == "" {
		c.Server = d.Server
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if set.Retry.MaxAttempts == nil {
		c.Retry.MaxAttempts = d.Retry.MaxAttempts
	}
	if set.Retry.InitialDelayMs == nil {
		c.Retry.InitialDelayMs = d.Retry.InitialDelayMs
	}
	if set.Retry.BackoffFactor == nil {
		c.Retry.BackoffFactor = d.Retry.BackoffFactor
	}
	if set.Retry.MaxDelayMs == nil {
		c.Retry.MaxDelayMs = max(d.Retry.MaxDelayMs, c.Retry.InitialDelayMs)
	}
	if c.ResumeDelayMs == 0 {
		c.ResumeDelayMs = d.ResumeDelayMs
	}
	if c.TriggerDelayMs == 0 {
		c.TriggerDelayMs = d.TriggerDelayMs
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: server must be an http(s) URL, got %q", autocompact.ErrInvalidConfig, c.Server)
	}
	if _, err := slogger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", autocompact.ErrInvalidConfig, err)
	}
	if err := c.Retry.Validate(); err != nil {
		return err
	}
	if c.ResumeDelayMs < 0 {
		return fmt.Errorf("%w: resumeDelayMs must not be negative", autocompact.ErrInvalidConfig)
	}
	if c.TriggerDelayMs < 0 {
		return fmt.Errorf("%w: triggerDelayMs must not be negative", autocompact.ErrInvalidConfig)
	}
	if _, err := c.BuildFilter(); err != nil {
		return err
	}
	return nil
}

// BuildFilter compiles the session filter.
func (c *Config) BuildFilter() (*autocompact.Filter, error) {
	return autocompact.NewFilter(c.Filter.Directories, c.Filter.ExcludeModels)
}

// ResumeDelay returns ResumeDelayMs as a duration.
func (c *Config) ResumeDelay() time.Duration {
	return time.Duration(c.ResumeDelayMs) * time.Millisecond
}

// TriggerDelay returns TriggerDelayMs as a duration.
func (c *Config) TriggerDelay() time.Duration {
	return time.Duration(c.TriggerDelayMs) * time.Millisecond
}

// Save writes a Config to a file. The file extension is used to
// determine the configuration format:
// - .json -> JSON
// - .yml or .yaml -> YAML
func (c *Config) Save(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return c.SaveJSON(path)
	case ".yml", ".yaml":
		return c.SaveYAML(path)
	default:
		return fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// SaveYAML writes a Config to a YAML file
func (c *Config) SaveYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SaveJSON writes a Config to a JSON file
func (c *Config) SaveJSON(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Write a Config to a writer in YAML format
func (c *Config) Write(w io.Writer) error {
	return yaml.NewEncoder(w).Encode(c)
}
