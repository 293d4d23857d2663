// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/casfs/lib/node"
	"github.com/bureau-foundation/casfs/lib/storage"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

var backends = []string{BackendMemory, BackendFile, BackendSQLite, BackendBolt}

// Config is the complete casfs configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	// Root is the base directory for casfs data. Other paths may refer
	// to it as ${CASFS_ROOT}.
	Root string `yaml:"root"`

	Storage StorageConfig `yaml:"storage"`
	Engine  EngineConfig  `yaml:"engine"`
	Log     LogConfig     `yaml:"log"`

	// EventLog is the path of the CBOR node event log. Empty disables
	// it.
	EventLog string `yaml:"event_log"`

	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides holds the fields an environment section may replace.
type Overrides struct {
	Storage  *StorageConfig `yaml:"storage,omitempty"`
	Engine   *EngineConfig  `yaml:"engine,omitempty"`
	Log      *LogConfig     `yaml:"log,omitempty"`
	EventLog string         `yaml:"event_log,omitempty"`
}

// StorageConfig selects where nodes live.
type StorageConfig struct {
	// Backend is one of memory, file, sqlite, bolt.
	Backend string `yaml:"backend"`

	// Path is the directory (file) or database file (sqlite, bolt).
	Path string `yaml:"path"`

	// Compression is none, lz4 or zstd.
	Compression string `yaml:"compression"`

	// CacheEntries sizes an in-memory LRU of read nodes. Zero disables
	// the cache.
	CacheEntries int `yaml:"cache_entries"`

	// Mirrors receive a copy of every stored node.
	Mirrors []MirrorConfig `yaml:"mirrors"`
}

// MirrorConfig is one replica store.
type MirrorConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// EngineConfig sets the tree-building limits.
type EngineConfig struct {
	NodeLimit   int   `yaml:"node_limit"`
	MaxFileSize int64 `yaml:"max_file_size"`
}

// LogConfig configures the command logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is auto (text on a terminal, JSON otherwise), text or
	// json.
	Format string `yaml:"format"`
}

// Default returns the base configuration a file is merged into.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Environment: Development,
		Root:        filepath.Join(homeDir, ".cache", "casfs"),
		Storage: StorageConfig{
			Backend:     BackendFile,
			Path:        "${CASFS_ROOT}/nodes",
			Compression: "none",
		},
		Engine: EngineConfig{
			NodeLimit: node.DefaultNodeLimit,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads the file named by CASFS_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv("CASFS_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("CASFS_CONFIG environment variable not set; " +
			"set it to the path of your casfs.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path, applies the overrides for
// the configured environment, and expands ${HOME} and ${CASFS_ROOT}.
// It does not validate; call Validate.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// Plain JSON is valid YAML, so the YAML tags serve both.
		data = jsonc.ToJSON(data)
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production logs are machine-read unless the file says
		// otherwise.
		if overrides == nil {
			overrides = &Overrides{Log: &LogConfig{Format: "json"}}
		}
	}
	if overrides == nil {
		return
	}

	if so := overrides.Storage; so != nil {
		if so.Backend != "" {
			c.Storage.Backend = so.Backend
		}
		if so.Path != "" {
			c.Storage.Path = so.Path
		}
		if so.Compression != "" {
			c.Storage.Compression = so.Compression
		}
		if so.CacheEntries != 0 {
			c.Storage.CacheEntries = so.CacheEntries
		}
		if so.Mirrors != nil {
			c.Storage.Mirrors = so.Mirrors
		}
	}
	if eo := overrides.Engine; eo != nil {
		if eo.NodeLimit != 0 {
			c.Engine.NodeLimit = eo.NodeLimit
		}
		if eo.MaxFileSize != 0 {
			c.Engine.MaxFileSize = eo.MaxFileSize
		}
	}
	if lo := overrides.Log; lo != nil {
		if lo.Level != "" {
			c.Log.Level = lo.Level
		}
		if lo.Format != "" {
			c.Log.Format = lo.Format
		}
	}
	if overrides.EventLog != "" {
		c.EventLog = overrides.EventLog
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"CASFS_ROOT": c.Root,
		"HOME":       os.Getenv("HOME"),
	}
	c.Root = expandVars(c.Root, vars)
	vars["CASFS_ROOT"] = c.Root

	c.Storage.Path = expandVars(c.Storage.Path, vars)
	for i := range c.Storage.Mirrors {
		c.Storage.Mirrors[i].Path = expandVars(c.Storage.Mirrors[i].Path, vars)
	}
	c.EventLog = expandVars(c.EventLog, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, fallback := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return fallback
	})
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case Development, Staging, Production:
	default:
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}

	errs = append(errs, validateBackend("storage", c.Storage.Backend, c.Storage.Path)...)
	if _, err := storage.ParseCompression(c.Storage.Compression); err != nil {
		errs = append(errs, fmt.Errorf("storage.compression: %w", err))
	}
	if c.Storage.CacheEntries < 0 {
		errs = append(errs, fmt.Errorf("storage.cache_entries must not be negative"))
	}
	for i, mirror := range c.Storage.Mirrors {
		errs = append(errs, validateBackend(fmt.Sprintf("storage.mirrors[%d]", i), mirror.Backend, mirror.Path)...)
	}

	if err := node.ValidateNodeLimit(c.Engine.NodeLimit); err != nil {
		errs = append(errs, fmt.Errorf("engine.node_limit: %w", err))
	}
	if c.Engine.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("engine.max_file_size must not be negative"))
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be one of auto, text, json: got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

func validateBackend(field, backend, path string) []error {
	var errs []error
	switch backend {
	case BackendMemory:
	case BackendFile, BackendSQLite, BackendBolt:
		if path == "" {
			errs = append(errs, fmt.Errorf("%s.path is required for the %s backend", field, backend))
		}
	default:
		errs = append(errs, fmt.Errorf("%s.backend must be one of %v: got %q", field, backends, backend))
	}
	return errs
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, err
	}
	return level, nil
}
