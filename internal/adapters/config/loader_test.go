package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"go.trai.ch/keg/internal/adapters/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.Filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestFileLoader_FullFile(t *testing.T) {
	path := writeConfig(t, `
channels:
  - name: main
    url: https://pkgs.example.com/main
  - name: extras
    url: https://pkgs.example.com/extras
subdirs:
  - linux-64
  - noarch
pins:
  - python <3.12
features:
  - nomkl
cache:
  root: /var/cache/keg
solver:
  allowDowngrade: true
  strictChannelPriority: true
  maxIterations: 7
`)

	cfg, err := (&config.FileLoader{Path: path}).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Channels) != 2 {
		t.Fatalf("channels = %d, want 2", len(cfg.Channels))
	}
	// Priority follows file order.
	if cfg.Channels[0].Name != "main" || cfg.Channels[0].Priority != 0 {
		t.Errorf("first channel = %+v", cfg.Channels[0])
	}
	if cfg.Channels[1].Name != "extras" || cfg.Channels[1].Priority != 1 {
		t.Errorf("second channel = %+v", cfg.Channels[1])
	}
	if len(cfg.Subdirs) != 2 || cfg.Subdirs[0] != "linux-64" {
		t.Errorf("subdirs = %v", cfg.Subdirs)
	}
	if len(cfg.Pins) != 1 || cfg.Pins[0] != "python <3.12" {
		t.Errorf("pins = %v", cfg.Pins)
	}
	if len(cfg.Features) != 1 || cfg.Features[0] != "nomkl" {
		t.Errorf("features = %v", cfg.Features)
	}
	if cfg.CacheRoot != "/var/cache/keg" {
		t.Errorf("cache root = %s", cfg.CacheRoot)
	}
	if !cfg.Mode.AllowDowngrade || !cfg.Mode.StrictChannelPriority || cfg.Mode.MaxIterations != 7 {
		t.Errorf("solve mode = %+v", cfg.Mode)
	}
}

func TestFileLoader_Defaults(t *testing.T) {
	path := writeConfig(t, `
channels:
  - name: main
    url: https://pkgs.example.com/main
`)

	cfg, err := (&config.FileLoader{Path: path}).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Subdirs) != 1 || cfg.Subdirs[0] != "noarch" {
		t.Errorf("default subdirs = %v", cfg.Subdirs)
	}
	if cfg.CacheRoot == "" {
		t.Error("default cache root empty")
	}
	if cfg.Mode.AllowDowngrade || cfg.Mode.StrictChannelPriority {
		t.Errorf("default solve mode = %+v", cfg.Mode)
	}
}

func TestFileLoader_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing channel name", `
channels:
  - url: https://pkgs.example.com/main
`},
		{"duplicate channel", `
channels:
  - name: main
    url: https://pkgs.example.com/a
  - name: main
    url: https://pkgs.example.com/b
`},
		{"url without scheme", `
channels:
  - name: main
    url: pkgs.example.com/main
`},
		{"malformed pin", `
pins:
  - ">=1.0"
`},
		{"not yaml", `{{{{`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			if _, err := (&config.FileLoader{Path: path}).Load(); err == nil {
				t.Error("Load accepted invalid config")
			}
		})
	}
}

func TestFileLoader_MissingExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")
	if _, err := (&config.FileLoader{Path: path}).Load(); err == nil {
		t.Error("Load accepted a missing explicit file")
	}
}

func TestFileLoader_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
channels:
  - name: env-channel
    url: https://pkgs.example.com/env
`)
	t.Setenv("KEG_CONFIG", path)

	cfg, err := (&config.FileLoader{}).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Channels) != 1 || cfg.Channels[0].Name != "env-channel" {
		t.Errorf("KEG_CONFIG file not used, channels = %+v", cfg.Channels)
	}
}
