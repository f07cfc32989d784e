// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/capdl/lib/capdl/image"
	"github.com/bureau-foundation/capdl/lib/capdl/kernel"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "capdl.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}

	if cfg.Target.Arch != "aarch64" {
		t.Errorf("expected arch=aarch64, got %s", cfg.Target.Arch)
	}

	if cfg.Image.Compression != "none" || cfg.Image.OmitNames {
		t.Errorf("expected uncompressed named images, got %+v", cfg.Image)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoad_RequiresCapdlConfig(t *testing.T) {
	t.Setenv("CAPDL_CONFIG", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when CAPDL_CONFIG not set, got nil")
	}

	expectedMsg := "CAPDL_CONFIG environment variable not set"
	if !strings.HasPrefix(err.Error(), expectedMsg) {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithCapdlConfig(t *testing.T) {
	configPath := writeConfig(t, `
environment: development
paths:
  root: /test/root
target:
  arch: riscv64
`)
	t.Setenv("CAPDL_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Paths.Root != "/test/root" {
		t.Errorf("expected root=/test/root, got %s", cfg.Paths.Root)
	}

	if cfg.Content.Store != "/test/root/content" {
		t.Errorf("expected store under the root, got %s", cfg.Content.Store)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := writeConfig(t, `
environment: development

paths:
  root: /custom/root

target:
  arch: x86_64
  mcs: true
  x86_huge_pages: true

content:
  store: /custom/store
  file_root: /src/build
  inline_limit: 512
  deflate: false

image:
  compression: lz4

logging:
  level: debug
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	target, err := cfg.KernelTarget()
	if err != nil {
		t.Fatalf("KernelTarget failed: %v", err)
	}
	want := kernel.Target{Arch: kernel.X86_64, Features: kernel.Features{MCS: true, X86HugePages: true}}
	if target != want {
		t.Errorf("expected target %s, got %s", want, target)
	}

	if cfg.Content.Store != "/custom/store" || cfg.Content.FileRoot != "/src/build" {
		t.Errorf("unexpected content paths: %+v", cfg.Content)
	}

	if cfg.Content.InlineLimit != 512 || cfg.Content.Deflate {
		t.Errorf("unexpected content settings: %+v", cfg.Content)
	}

	compression, err := cfg.Compression()
	if err != nil || compression != image.CompressionLZ4 {
		t.Errorf("expected lz4 compression, got %s (%v)", compression, err)
	}

	if cfg.LogLevel() != slog.LevelDebug {
		t.Errorf("expected debug level, got %s", cfg.LogLevel())
	}
}

func TestLoadFile_RejectsUnknownKeys(t *testing.T) {
	configPath := writeConfig(t, `
target:
  arch: aarch64
  hypervisor: true
`)
	if _, err := LoadFile(configPath); err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
}

func TestLoadFile_Empty(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("LoadFile of an empty file failed: %v", err)
	}
	if cfg.Target.Arch != "aarch64" {
		t.Errorf("expected default arch, got %s", cfg.Target.Arch)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, `
environment: production

image:
  compression: none

logging:
  level: debug

production:
  image:
    compression: lz4
    omit_names: true
  logging:
    level: error
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Image.Compression != "lz4" {
		t.Errorf("expected compression=lz4 from production override, got %s", cfg.Image.Compression)
	}

	if !cfg.Image.OmitNames {
		t.Error("expected omit_names=true from production override")
	}

	if cfg.Logging.Level != "error" {
		t.Errorf("expected level=error, got %s", cfg.Logging.Level)
	}
}

func TestProductionDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "environment: production\n"))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Image.Compression != "zstd" || !cfg.Image.OmitNames {
		t.Errorf("expected compressed nameless images in production, got %+v", cfg.Image)
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("expected level=warn in production, got %s", cfg.Logging.Level)
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	// Environment variables only feed ${VAR} expansion; they never
	// replace file values.
	t.Setenv("CAPDL_ROOT", "/env/root")
	t.Setenv("CAPDL_ARCH", "x86_64")

	configPath := writeConfig(t, `
paths:
  root: /file/root
target:
  arch: riscv64
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Paths.Root != "/file/root" {
		t.Errorf("expected root=/file/root from file, got %s (env vars should not override)", cfg.Paths.Root)
	}

	if cfg.Target.Arch != "riscv64" {
		t.Errorf("expected arch=riscv64 from file, got %s (env vars should not override)", cfg.Target.Arch)
	}

	if cfg.Content.Store != "/file/root/content" {
		t.Errorf("expected ${CAPDL_ROOT} to expand to the file root, got %s", cfg.Content.Store)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/capdl",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/capdl",
		},
		{
			input:    "${CAPDL_TEST_MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid default config",
			modify: func(c *Config) {},
		},
		{
			name:    "invalid environment",
			modify:  func(c *Config) { c.Environment = "staging" },
			wantErr: "invalid environment",
		},
		{
			name:    "empty root path",
			modify:  func(c *Config) { c.Paths.Root = "" },
			wantErr: "paths.root is required",
		},
		{
			name:    "unknown architecture",
			modify:  func(c *Config) { c.Target.Arch = "mips" },
			wantErr: "target",
		},
		{
			name: "feature on the wrong architecture",
			modify: func(c *Config) {
				c.Target.Arch = "riscv64"
				c.Target.ARMHypervisor = true
			},
			wantErr: "arm_hypervisor requires aarch64",
		},
		{
			name:    "unknown compression",
			modify:  func(c *Config) { c.Image.Compression = "brotli" },
			wantErr: "image.compression",
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level must be one of: [debug error info warn]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Paths.Root = filepath.Join(tmpDir, "capdl")
	cfg.Content.Store = filepath.Join(cfg.Paths.Root, "content")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}

	for _, path := range []string{cfg.Paths.Root, cfg.Content.Store} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}
}

func TestResolve(t *testing.T) {
	t.Setenv("CAPDL_CONFIG", "")
	cfg, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve without configuration failed: %v", err)
	}
	if strings.Contains(cfg.Content.Store, "${") {
		t.Errorf("default store path not expanded: %s", cfg.Content.Store)
	}

	explicit := writeConfig(t, "target:\n  arch: riscv64\n")
	cfg, err = Resolve(explicit)
	if err != nil {
		t.Fatalf("Resolve(%s) failed: %v", explicit, err)
	}
	if cfg.Target.Arch != "riscv64" {
		t.Errorf("expected arch from the explicit file, got %s", cfg.Target.Arch)
	}

	fromEnvironment := writeConfig(t, "target:\n  arch: x86_64\n")
	t.Setenv("CAPDL_CONFIG", fromEnvironment)
	cfg, err = Resolve("")
	if err != nil {
		t.Fatalf("Resolve via CAPDL_CONFIG failed: %v", err)
	}
	if cfg.Target.Arch != "x86_64" {
		t.Errorf("expected arch from CAPDL_CONFIG, got %s", cfg.Target.Arch)
	}
}
