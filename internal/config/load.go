package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roelfdiedericks/relaybot/internal/logging"
	"github.com/roelfdiedericks/relaybot/internal/paths"
)

// LoadOptions selects where configuration comes from
type LoadOptions struct {
	Path    string // Explicit config file; empty = search ./ and ~/.relaybot/
	EnvFile string // Dotenv file; empty = none. A missing file is not an error.

	// Getenv reads the environment; nil = os.Getenv
	Getenv func(string) string
}

// Load builds the configuration.
// Precedence (lowest first): defaults, config file, dotenv file, environment.
// The dotenv file never overrides variables already set in the environment.
func Load(opts LoadOptions) (*Config, error) {
	path := opts.Path
	if path == "" {
		found, err := paths.ConfigPath()
		if err != nil {
			logging.L_warn("config: search failed", "error", err)
		}
		path = found
	} else {
		expanded, err := paths.ExpandTilde(path)
		if err != nil {
			return nil, err
		}
		path = expanded
	}

	cfg := Config{}
	if path != "" {
		fileCfg, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = *fileCfg
		cfg.Source = path
		logging.L_debug("config: file loaded", "path", path)
	}

	if err := mergo.Merge(&cfg, Default()); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
			}
		} else {
			logging.L_debug("config: env file loaded", "path", opts.EnvFile)
		}
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg.applyEnv(getenv)

	return &cfg, nil
}

// ReadFile decodes a config file; the format is picked from the extension.
func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q (use .json, .toml or .yaml)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}
