package config

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"go.trai.ch/keg/internal/core/domain"
	"go.trai.ch/keg/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Filename is the configuration file name looked up in the working directory
// and in the user's config directory.
const Filename = "keg.yaml"

var _ ports.ConfigLoader = (*FileLoader)(nil)

// FileLoader implements ports.ConfigLoader using a YAML file. The working
// directory is searched first, then the user's config directory; a missing
// file yields the built-in defaults.
type FileLoader struct {
	// Path pins the loader to one explicit file, skipping discovery.
	Path string
}

// Load resolves and validates the effective configuration.
func (l *FileLoader) Load() (*domain.Config, error) {
	path := l.Path
	if path == "" {
		path = os.Getenv("KEG_CONFIG")
	}
	if path == "" {
		path = discover()
	}
	if path == "" {
		return defaults(), nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // Path is discovered or provided by the user
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read config file")
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse config file"), "path", path)
	}
	return fromFile(&file)
}

// discover returns the first existing config file, or empty.
func discover() string {
	candidates := []string{
		Filename,
		filepath.Join(xdg.ConfigHome, "keg", Filename),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); !errors.Is(err, fs.ErrNotExist) {
			return c
		}
	}
	return ""
}

func defaults() *domain.Config {
	return &domain.Config{
		Subdirs:   []string{"noarch"},
		CacheRoot: filepath.Join(xdg.CacheHome, "keg"),
	}
}

// fromFile converts the YAML form into a validated domain config. Channel
// priority follows file order.
func fromFile(file *File) (*domain.Config, error) {
	cfg := defaults()

	seen := make(map[string]bool, len(file.Channels))
	for i, dto := range file.Channels {
		if dto.Name == "" {
			return nil, zerr.New("channel is missing a name")
		}
		if seen[dto.Name] {
			return nil, zerr.With(zerr.New("duplicate channel"), "channel", dto.Name)
		}
		seen[dto.Name] = true
		u, err := url.Parse(dto.URL)
		if err != nil || u.Scheme == "" {
			return nil, zerr.With(zerr.New("channel has an invalid url"), "channel", dto.Name)
		}
		cfg.Channels = append(cfg.Channels, domain.Channel{
			Name:     dto.Name,
			URL:      dto.URL,
			Priority: i,
		})
	}

	if len(file.Subdirs) > 0 {
		cfg.Subdirs = file.Subdirs
	}
	for _, pin := range file.Pins {
		if _, err := domain.ParseMatchSpec(pin); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "invalid pin"), "pin", pin)
		}
	}
	cfg.Pins = file.Pins
	cfg.Features = file.Features

	if file.Cache.Root != "" {
		cfg.CacheRoot = file.Cache.Root
	}
	cfg.Mode = domain.SolveMode{
		AllowDowngrade:        file.Solver.AllowDowngrade,
		StrictChannelPriority: file.Solver.StrictChannelPriority,
		MaxIterations:         file.Solver.MaxIterations,
	}
	return cfg, nil
}
