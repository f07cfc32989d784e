// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/capdl/lib/capdl/image"
	"github.com/bureau-foundation/capdl/lib/capdl/kernel"
)

// Environment represents the build environment.
type Environment string

const (
	// Development keeps object names in images and logs verbosely.
	Development Environment = "development"
	// Production strips names and compresses images.
	Production Environment = "production"
)

// Config is the configuration for the capdl tools.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Target is the kernel configuration specs are checked and planned
	// against.
	Target TargetConfig `yaml:"target"`

	// Content configures how file fill content is resolved at build
	// time.
	Content ContentConfig `yaml:"content"`

	// Image configures embedded spec images.
	Image ImageConfig `yaml:"image"`

	// Logging configures diagnostic output.
	Logging LoggingConfig `yaml:"logging"`

	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Content *ContentConfig `yaml:"content,omitempty"`
	Image   *ImageConfig   `yaml:"image,omitempty"`
	Logging *LoggingConfig `yaml:"logging,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for capdl data. Other paths may refer
	// to it as ${CAPDL_ROOT}.
	Root string `yaml:"root"`
}

// TargetConfig names the architecture and kernel build options.
type TargetConfig struct {
	// Arch is the architecture name: aarch64, riscv64, or x86_64.
	Arch string `yaml:"arch"`

	kernel.Features `yaml:",inline"`
}

// ContentConfig configures fill content resolution.
type ContentConfig struct {
	// Store is the content-addressed store directory digest content is
	// written to at build time and read from at realization.
	Store string `yaml:"store"`

	// FileRoot is the directory relative file fill paths resolve
	// against.
	FileRoot string `yaml:"file_root"`

	// InlineLimit is the largest file content, in bytes, embedded
	// directly in the spec. Larger content goes to the store as a
	// digest, or is deflated when no store is configured.
	InlineLimit uint64 `yaml:"inline_limit"`

	// Deflate compresses embedded content larger than InlineLimit.
	Deflate bool `yaml:"deflate"`
}

// ImageConfig configures spec images.
type ImageConfig struct {
	// Compression is the envelope compression: none, lz4, or zstd.
	Compression string `yaml:"compression"`

	// OmitNames drops the object name table from images.
	OmitNames bool `yaml:"omit_names"`
}

// LoggingConfig configures the diagnostic logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "capdl")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root: defaultRoot,
		},
		Target: TargetConfig{
			Arch: kernel.AArch64.String(),
		},
		Content: ContentConfig{
			Store:       "${CAPDL_ROOT}/content",
			FileRoot:    ".",
			InlineLimit: 4096,
			Deflate:     true,
		},
		Image: ImageConfig{
			Compression: image.CompressionNone.String(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the CAPDL_CONFIG environment variable.
//
// There are no fallbacks or defaults - if CAPDL_CONFIG is not set, this
// fails.
func Load() (*Config, error) {
	configPath := os.Getenv("CAPDL_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("CAPDL_CONFIG environment variable not set; " +
			"set it to the path of your capdl.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values; the only expansion performed is
// ${VAR} substitution in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// Resolve loads configuration for a command: from path when it is
// set, otherwise from CAPDL_CONFIG when that is set. Commands run with
// neither get [Default] with its paths expanded.
func Resolve(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	if os.Getenv("CAPDL_CONFIG") != "" {
		return Load()
	}
	cfg := Default()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		// Production defaults: smaller images, quieter logs.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Image: &ImageConfig{
					Compression: image.CompressionZstd.String(),
					OmitNames:   true,
				},
				Logging: &LoggingConfig{Level: "warn"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Content != nil {
		if overrides.Content.Store != "" {
			c.Content.Store = overrides.Content.Store
		}
		if overrides.Content.FileRoot != "" {
			c.Content.FileRoot = overrides.Content.FileRoot
		}
		if overrides.Content.InlineLimit != 0 {
			c.Content.InlineLimit = overrides.Content.InlineLimit
		}
		// Deflate is a bool, so we always apply it from overrides.
		c.Content.Deflate = overrides.Content.Deflate
	}

	if overrides.Image != nil {
		if overrides.Image.Compression != "" {
			c.Image.Compression = overrides.Image.Compression
		}
		c.Image.OmitNames = overrides.Image.OmitNames
	}

	if overrides.Logging != nil && overrides.Logging.Level != "" {
		c.Logging.Level = overrides.Logging.Level
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"CAPDL_ROOT": c.Paths.Root,
		"HOME":       os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["CAPDL_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Content.Store = expandVars(c.Content.Store, vars)
	c.Content.FileRoot = expandVars(c.Content.FileRoot, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}

	if _, err := c.KernelTarget(); err != nil {
		errs = append(errs, fmt.Errorf("target: %w", err))
	}

	if c.Content.FileRoot == "" {
		errs = append(errs, fmt.Errorf("content.file_root is required"))
	}

	if _, err := image.ParseCompression(c.Image.Compression); err != nil {
		errs = append(errs, fmt.Errorf("image.compression: %w", err))
	}

	if _, ok := logLevels[c.Logging.Level]; !ok {
		levels := make([]string, 0, len(logLevels))
		for name := range logLevels {
			levels = append(levels, name)
		}
		slices.Sort(levels)
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", levels))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// KernelTarget returns the configured kernel target.
func (c *Config) KernelTarget() (kernel.Target, error) {
	arch, err := kernel.ParseArch(c.Target.Arch)
	if err != nil {
		return kernel.Target{}, err
	}
	target := kernel.Target{Arch: arch, Features: c.Target.Features}
	if err := target.Validate(); err != nil {
		return kernel.Target{}, err
	}
	return target, nil
}

// Compression returns the configured image envelope compression.
func (c *Config) Compression() (image.Compression, error) {
	return image.ParseCompression(c.Image.Compression)
}

// LogLevel returns the configured log level, defaulting to info for an
// unrecognized name (Validate reports it).
func (c *Config) LogLevel() slog.Level {
	if level, ok := logLevels[c.Logging.Level]; ok {
		return level
	}
	return slog.LevelInfo
}

// EnsurePaths creates the configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.Root, c.Content.Store} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
