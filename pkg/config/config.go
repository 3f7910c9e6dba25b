package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	errs "retrying/pkg/errors"
)

// DefaultPolicyName is used when a command does not name a policy.
const DefaultPolicyName = "default"

// Defaults applied to omitted wait arguments.
const (
	DefaultRandomMin             = 0.0
	DefaultRandomMax             = 3600.0
	DefaultExponentialMultiplier = 1.0
	DefaultExponentialMin        = 0.0
	DefaultExponentialMax        = 3600.0
	DefaultExponentialExpBase    = uint(2)
)

// Config holds all configuration options for retrying
type Config struct {
	// Named retry policies
	Policies map[string]PolicyConfig `yaml:"policies" json:"policies"`

	// EnvsPrefix is applied to policies that do not set their own prefix
	EnvsPrefix string `yaml:"envs_prefix,omitempty" json:"envs_prefix,omitempty"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics exposition
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// PolicyConfig is the file representation of a retry policy.
type PolicyConfig struct {
	Stop       *StopConfig  `yaml:"stop,omitempty" json:"stop,omitempty"`
	Wait       *WaitConfig  `yaml:"wait,omitempty" json:"wait,omitempty"`
	Retry      *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty"`
	EnvsPrefix string       `yaml:"envs_prefix,omitempty" json:"envs_prefix,omitempty"`
}

// StopConfig sets when to give up. Zero values are unset.
type StopConfig struct {
	Attempts uint    `yaml:"attempts,omitempty" json:"attempts,omitempty"`
	Duration float64 `yaml:"duration,omitempty" json:"duration,omitempty"`
}

// WaitConfig holds exactly one wait variant.
type WaitConfig struct {
	Fixed       *float64           `yaml:"fixed,omitempty" json:"fixed,omitempty"`
	Random      *RandomConfig      `yaml:"random,omitempty" json:"random,omitempty"`
	Exponential *ExponentialConfig `yaml:"exponential,omitempty" json:"exponential,omitempty"`
}

// RandomConfig bounds a uniformly random wait, in seconds.
type RandomConfig struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// ExponentialConfig describes min(max, multiplier*exp_base^(attempt-1) + min).
type ExponentialConfig struct {
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
	Min        float64 `yaml:"min" json:"min"`
	Max        float64 `yaml:"max" json:"max"`
	ExpBase    uint    `yaml:"exp_base" json:"exp_base"`
}

// RetryConfig restricts which error kinds are retried.
type RetryConfig struct {
	IfErrors    []string `yaml:"if_errors,omitempty" json:"if_errors,omitempty"`
	IfNotErrors []string `yaml:"if_not_errors,omitempty" json:"if_not_errors,omitempty"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Addr      string `yaml:"addr,omitempty" json:"addr,omitempty"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// UnmarshalYAML fills omitted random bounds with their defaults.
func (r *RandomConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw RandomConfig
	out := raw{Min: DefaultRandomMin, Max: DefaultRandomMax}
	if err := value.Decode(&out); err != nil {
		return err
	}
	*r = RandomConfig(out)
	return nil
}

// UnmarshalYAML fills omitted exponential arguments with their defaults.
func (e *ExponentialConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw ExponentialConfig
	out := raw{
		Multiplier: DefaultExponentialMultiplier,
		Min:        DefaultExponentialMin,
		Max:        DefaultExponentialMax,
		ExpBase:    DefaultExponentialExpBase,
	}
	if err := value.Decode(&out); err != nil {
		return err
	}
	*e = ExponentialConfig(out)
	return nil
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Policies: map[string]PolicyConfig{},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Namespace: "retrying",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if prefix := os.Getenv("RETRYING_ENVS_PREFIX"); prefix != "" {
		c.EnvsPrefix = prefix
	}
	if logLevel := os.Getenv("RETRYING_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("RETRYING_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}
	if logFormat := os.Getenv("RETRYING_LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}
	if addr := os.Getenv("RETRYING_METRICS_ADDR"); addr != "" {
		c.Metrics.Addr = addr
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if c.Policies == nil {
		c.Policies = map[string]PolicyConfig{}
	}

	return nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"retrying.yaml",
		"retrying.yml",
		".retrying.yaml",
		".retrying.yml",
		filepath.Join(home, ".config", "retrying", "config.yaml"),
		filepath.Join(home, ".config", "retrying", "config.yml"),
		filepath.Join(home, ".retrying.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Policy returns the named policy with the global envs prefix applied.
func (c *Config) Policy(name string) (PolicyConfig, bool) {
	if name == "" {
		name = DefaultPolicyName
	}
	p, ok := c.Policies[name]
	if !ok {
		return PolicyConfig{}, false
	}
	if p.EnvsPrefix == "" {
		p.EnvsPrefix = c.EnvsPrefix
	}
	return p, true
}

// PolicyNames returns the configured policy names in sorted order.
func (c *Config) PolicyNames() []string {
	names := make([]string, 0, len(c.Policies))
	for name := range c.Policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var all []error

	for _, name := range c.PolicyNames() {
		if err := c.Policies[name].Validate(); err != nil {
			all = append(all, fmt.Errorf("policy %q: %w", name, err))
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		all = append(all, errors.New("invalid log level"))
	}

	validFormats := map[string]bool{"": true, "console": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		all = append(all, errors.New("invalid log format"))
	}

	if len(all) > 0 {
		return errors.Join(all...)
	}

	return nil
}

// Validate checks the shape of a single policy.
func (p PolicyConfig) Validate() error {
	var all []error

	if s := p.Stop; s != nil {
		if s.Duration < 0 {
			all = append(all, errs.NewConfigurationError("stop.duration", "must be positive, got %v", s.Duration))
		}
	}

	if w := p.Wait; w != nil {
		set := 0
		if w.Fixed != nil {
			set++
			if *w.Fixed < 0 {
				all = append(all, errs.NewConfigurationError("wait.fixed", "must not be negative, got %v", *w.Fixed))
			}
		}
		if r := w.Random; r != nil {
			set++
			if r.Min < 0 || r.Min > r.Max {
				all = append(all, errs.NewConfigurationError("wait.random", "requires 0 <= min <= max, got min=%v max=%v", r.Min, r.Max))
			}
		}
		if e := w.Exponential; e != nil {
			set++
			if e.ExpBase < 1 {
				all = append(all, errs.NewConfigurationError("wait.exponential.exp_base", "must be at least 1"))
			}
			if e.Multiplier < 0 || e.Min < 0 || e.Max < 0 {
				all = append(all, errs.NewConfigurationError("wait.exponential", "multiplier, min and max must not be negative"))
			}
		}
		if set != 1 {
			all = append(all, errs.NewConfigurationError("wait", "exactly one of `fixed`, `random` and `exponential` must be set"))
		}
	}

	if r := p.Retry; r != nil {
		if len(r.IfErrors) > 0 && len(r.IfNotErrors) > 0 {
			all = append(all, errs.NewConfigurationError("retry", "only one of `if_errors` and `if_not_errors` should be configured at the same time"))
		}
		for _, name := range append(append([]string{}, r.IfErrors...), r.IfNotErrors...) {
			if _, err := errs.ParseErrorType(name); err != nil {
				all = append(all, errs.NewConfigurationError("retry", "%v", err))
			}
		}
	}

	if len(all) > 0 {
		return errors.Join(all...)
	}
	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if prefix, ok := flags["envs-prefix"].(string); ok && prefix != "" {
		c.EnvsPrefix = prefix
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat, ok := flags["log-format"].(string); ok && logFormat != "" {
		c.Logging.Format = logFormat
	}
	if addr, ok := flags["metrics-addr"].(string); ok && addr != "" {
		c.Metrics.Addr = addr
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".retrying.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
