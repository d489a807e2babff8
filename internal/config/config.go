// Package config loads docstore settings from JSONC files and CLI overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"github.com/tailscale/hujson"

	"github.com/calvinalkan/docstore/pkg/docstore"
)

// ConfigFileName is the default project config file name.
const ConfigFileName = ".docstore.json"

// Error variables for config loading.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrDirEmpty           = errors.New("directory cannot be empty")
	ErrInvalidUpdateMode  = errors.New("update_mode must be truncate or atomic")
	ErrInvalidLogLevel    = errors.New("invalid log_level")
	ErrRootsOverlap       = errors.New("data_dir and public_dir must be disjoint")
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	DataDir    string `json:"data_dir"`
	PublicDir  string `json:"public_dir"`
	UpdateMode string `json:"update_mode"`
	LockWrites bool   `json:"lock_writes"`
	Addr       string `json:"addr"`
	LogLevel   string `json:"log_level"`

	// Resolved paths (computed, not serialized)
	EffectiveCwd string `json:"-"` // Absolute working directory (from -C flag or os.Getwd)
	DataDirAbs   string `json:"-"`
	PublicDirAbs string `json:"-"`

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project or explicit config if loaded, empty otherwise
}

// fileConfig is the on-disk shape. Pointers distinguish "unset" from zero.
type fileConfig struct {
	DataDir    *string `json:"data_dir"`
	PublicDir  *string `json:"public_dir"`
	UpdateMode *string `json:"update_mode"`
	LockWrites *bool   `json:"lock_writes"`
	Addr       *string `json:"addr"`
	LogLevel   *string `json:"log_level"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		DataDir:    ".data",
		PublicDir:  "public",
		UpdateMode: string(docstore.UpdateTruncate),
		Addr:       ":3000",
		LogLevel:   zerolog.InfoLevel.String(),
	}
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	WorkDirOverride   string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath        string            // -c/--config flag value
	DataDirOverride   string            // --data-dir flag value; empty means no override
	PublicDirOverride string            // --public-dir flag value; empty means no override
	Env               map[string]string // environment variables
}

// Load loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/docstore/config.json)
// 3. Project config file at default location (.docstore.json, if exists)
// 4. Explicit config file via ConfigPath (replaces 3)
// 5. CLI overrides.
//
// All paths in the returned Config are resolved to absolute paths.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return Config{}, fmt.Errorf("cannot resolve working directory: %w", err)
	}

	cfg := Default()

	globalPath := globalConfigPath(input.Env)
	if globalPath != "" {
		fileCfg, loaded, loadErr := loadFile(globalPath, false)
		if loadErr != nil {
			return Config{}, loadErr
		}

		if loaded {
			cfg = merge(cfg, fileCfg)
			cfg.Sources.Global = globalPath
		}
	}

	projectPath, mustExist := projectConfigPath(workDir, input.ConfigPath)

	fileCfg, loaded, err := loadFile(projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg = merge(cfg, fileCfg)
		cfg.Sources.Project = projectPath
	}

	if input.DataDirOverride != "" {
		cfg.DataDir = input.DataDirOverride
	}

	if input.PublicDirOverride != "" {
		cfg.PublicDir = input.PublicDirOverride
	}

	cfg.EffectiveCwd = workDir
	cfg.DataDirAbs = absFrom(workDir, cfg.DataDir)
	cfg.PublicDirAbs = absFrom(workDir, cfg.PublicDir)

	err = validate(cfg)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// StoreConfig maps the resolved config to a [docstore.Config].
func (c Config) StoreConfig(logger *zerolog.Logger) docstore.Config {
	return docstore.Config{
		DataDir:    c.DataDirAbs,
		PublicDir:  c.PublicDirAbs,
		UpdateMode: docstore.UpdateMode(c.UpdateMode),
		LockWrites: c.LockWrites,
		Logger:     logger,
	}
}

// Format returns the config as indented JSON, as it would appear in a config file.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("formatting config: %w", err)
	}

	return string(data), nil
}

// globalConfigPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/docstore/config.json if set, then ~/.config, then
// the platform default from xdg.
func globalConfigPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "docstore", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "docstore", "config.json")
	}

	if xdg.ConfigHome == "" {
		return ""
	}

	return filepath.Join(xdg.ConfigHome, "docstore", "config.json")
}

// projectConfigPath returns the explicit config (must exist) or the default
// project config (optional).
func projectConfigPath(workDir, configPath string) (string, bool) {
	if configPath == "" {
		return filepath.Join(workDir, ConfigFileName), false
	}

	return absFrom(workDir, configPath), true
}

// loadFile loads a config file. If mustExist is false, a missing file returns
// (zero, false, nil).
func loadFile(path string, mustExist bool) (fileConfig, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !mustExist {
			if os.IsNotExist(err) {
				return fileConfig{}, false, nil
			}

			return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrConfigFileRead, path, err)
		}

		if os.IsNotExist(err) {
			return fileConfig{}, false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}

		return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrConfigFileRead, path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parse(data []byte) (fileConfig, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg fileConfig

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSON: %w", err)
	}

	if cfg.DataDir != nil && *cfg.DataDir == "" {
		return fileConfig{}, fmt.Errorf("data_dir: %w", ErrDirEmpty)
	}

	if cfg.PublicDir != nil && *cfg.PublicDir == "" {
		return fileConfig{}, fmt.Errorf("public_dir: %w", ErrDirEmpty)
	}

	return cfg, nil
}

func merge(base Config, overlay fileConfig) Config {
	if overlay.DataDir != nil {
		base.DataDir = *overlay.DataDir
	}

	if overlay.PublicDir != nil {
		base.PublicDir = *overlay.PublicDir
	}

	if overlay.UpdateMode != nil {
		base.UpdateMode = *overlay.UpdateMode
	}

	if overlay.LockWrites != nil {
		base.LockWrites = *overlay.LockWrites
	}

	if overlay.Addr != nil {
		base.Addr = *overlay.Addr
	}

	if overlay.LogLevel != nil {
		base.LogLevel = *overlay.LogLevel
	}

	return base
}

func validate(cfg Config) error {
	switch docstore.UpdateMode(cfg.UpdateMode) {
	case docstore.UpdateTruncate, docstore.UpdateAtomic:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidUpdateMode, cfg.UpdateMode)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.LogLevel)
	}

	rel, err := filepath.Rel(cfg.DataDirAbs, cfg.PublicDirAbs)
	if err == nil && (rel == "." || filepath.IsLocal(rel)) {
		return fmt.Errorf("%w: %s, %s", ErrRootsOverlap, cfg.DataDir, cfg.PublicDir)
	}

	rel, err = filepath.Rel(cfg.PublicDirAbs, cfg.DataDirAbs)
	if err == nil && filepath.IsLocal(rel) {
		return fmt.Errorf("%w: %s, %s", ErrRootsOverlap, cfg.DataDir, cfg.PublicDir)
	}

	return nil
}

func absFrom(workDir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(workDir, path)
}
