package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/harrison/visualexec/internal/digest"
	"github.com/harrison/visualexec/internal/display"
	"github.com/harrison/visualexec/internal/logger"
	"github.com/harrison/visualexec/internal/proc"
	"github.com/harrison/visualexec/internal/reporter"
	"gopkg.in/yaml.v3"
)

// Config represents visualexec configuration options
type Config struct {
	// Command is the shell command to run when none is given on the command line
	Command string `yaml:"command"`

	// Dir is the working directory of the command (empty = current directory)
	Dir string `yaml:"dir"`

	// Title heads the live display (empty = "Running <command>")
	Title string `yaml:"title"`

	// LogLabel names the run in the summary line (empty = title)
	LogLabel string `yaml:"log_label"`

	// OutputLabel names the run in the output report (empty = title)
	OutputLabel string `yaml:"output_label"`

	// OutputLevel is the report level of a clean run
	OutputLevel string `yaml:"output_level"`

	// LogLevel sets the console verbosity (trace, debug, verbose, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// MaxOutput caps the captured bytes per stream
	MaxOutput int `yaml:"max_output"`

	// Indicator names the live indicator frames ("none" disables it)
	Indicator string `yaml:"indicator"`

	// Budget is the width of a digest line
	Budget int `yaml:"budget"`

	// ForceStderrAsError reports at error level whenever stderr is non-empty
	ForceStderrAsError bool `yaml:"force_stderr_as_error"`

	// ErrorPattern escalates the report when it matches stdout (empty = disabled)
	ErrorPattern string `yaml:"error_pattern"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		OutputLevel:        string(display.LevelVerbose),
		LogLevel:           "info",
		MaxOutput:          proc.DefaultMaxOutput, // 5 MiB
		Indicator:          display.DefaultIndicator,
		Budget:             digest.DefaultBudget,
		ForceStderrAsError: true,
		ErrorPattern:       reporter.DefaultErrorPattern,
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// File doesn't exist, return defaults (not an error)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply non-zero values from file (merging with defaults)
	if fileCfg.Command != "" {
		cfg.Command = fileCfg.Command
	}
	if fileCfg.Dir != "" {
		cfg.Dir = fileCfg.Dir
		if !filepath.IsAbs(cfg.Dir) {
			cfg.Dir = filepath.Join(projectDir(path), cfg.Dir)
		}
	}
	if fileCfg.Title != "" {
		cfg.Title = fileCfg.Title
	}
	if fileCfg.LogLabel != "" {
		cfg.LogLabel = fileCfg.LogLabel
	}
	if fileCfg.OutputLabel != "" {
		cfg.OutputLabel = fileCfg.OutputLabel
	}
	if fileCfg.OutputLevel != "" {
		cfg.OutputLevel = fileCfg.OutputLevel
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.MaxOutput != 0 {
		cfg.MaxOutput = fileCfg.MaxOutput
	}
	if fileCfg.Indicator != "" {
		cfg.Indicator = fileCfg.Indicator
	}
	if fileCfg.Budget != 0 {
		cfg.Budget = fileCfg.Budget
	}

	// A false bool and an empty pattern are meaningful, so check which keys
	// the file actually sets
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if _, exists := rawMap["force_stderr_as_error"]; exists {
			cfg.ForceStderrAsError = fileCfg.ForceStderrAsError
		}
		if _, exists := rawMap["error_pattern"]; exists {
			cfg.ErrorPattern = fileCfg.ErrorPattern
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .visualexec/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, DirName, FileName))
}

// Flags holds CLI overrides. Nil fields leave the configuration untouched.
type Flags struct {
	Dir                *string
	Title              *string
	OutputLevel        *string
	LogLevel           *string
	MaxOutput          *int
	Indicator          *string
	ForceStderrAsError *bool
	ErrorPattern       *string
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
// This allows CLI flags to take precedence over config file settings
func (c *Config) MergeWithFlags(f Flags) {
	if f.Dir != nil {
		c.Dir = *f.Dir
	}
	if f.Title != nil {
		c.Title = *f.Title
	}
	if f.OutputLevel != nil {
		c.OutputLevel = *f.OutputLevel
	}
	if f.LogLevel != nil {
		c.LogLevel = *f.LogLevel
	}
	if f.MaxOutput != nil {
		c.MaxOutput = *f.MaxOutput
	}
	if f.Indicator != nil {
		c.Indicator = *f.Indicator
	}
	if f.ForceStderrAsError != nil {
		c.ForceStderrAsError = *f.ForceStderrAsError
	}
	if f.ErrorPattern != nil {
		c.ErrorPattern = *f.ErrorPattern
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if !logger.IsValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log_level %q, must be one of: %s", c.LogLevel, strings.Join(logger.ValidLevels, ", "))
	}

	if _, err := display.ParseLevel(c.OutputLevel); err != nil {
		return fmt.Errorf("invalid output_level: %w", err)
	}

	if c.MaxOutput < 0 {
		return fmt.Errorf("max_output must be >= 0, got %d", c.MaxOutput)
	}

	if c.Budget < 0 {
		return fmt.Errorf("budget must be >= 0, got %d", c.Budget)
	}

	if _, err := display.LookupIndicator(c.Indicator); err != nil {
		return fmt.Errorf("invalid indicator: %w", err)
	}

	if c.ErrorPattern != "" {
		if _, err := regexp.Compile(c.ErrorPattern); err != nil {
			return fmt.Errorf("invalid error_pattern %q: %w", c.ErrorPattern, err)
		}
	}

	return nil
}

// ReporterOptions converts a validated Config into reporter options for
// command.
func (c *Config) ReporterOptions(command string) (reporter.Options, error) {
	if err := c.Validate(); err != nil {
		return reporter.Options{}, err
	}

	level, _ := display.ParseLevel(c.OutputLevel)
	indicator, _ := display.LookupIndicator(c.Indicator)

	opts := reporter.DefaultOptions(command)
	opts.Dir = c.Dir
	opts.Title = c.Title
	opts.LogLabel = c.LogLabel
	opts.OutputLabel = c.OutputLabel
	opts.OutputLevel = level
	opts.MaxOutput = c.MaxOutput
	opts.Indicator = indicator
	opts.Budget = c.Budget
	opts.ForceStderrAsError = c.ForceStderrAsError
	opts.ErrorPattern = nil
	if c.ErrorPattern != "" {
		opts.ErrorPattern = regexp.MustCompile(c.ErrorPattern)
	}

	return opts, nil
}
