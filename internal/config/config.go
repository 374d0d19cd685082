package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RepoDirName is the per-repository config directory looked up by LoadWithRepo.
const RepoDirName = ".chatsplit"

// configFiles lists the file names tried in each config directory, in order.
var configFiles = []string{"config.json", "config.yaml"}

// Config holds application configuration.
type Config struct {
	// MaxParts is the default upper bound on shard files per run.
	MaxParts int `json:"max_parts" yaml:"max_parts"`

	// FlattenWorkers is the number of conversations flattened concurrently.
	// 0 or 1 flattens sequentially.
	FlattenWorkers int `json:"flatten_workers,omitempty" yaml:"flatten_workers,omitempty"`

	// Indent pretty-prints shard files. nil means the default (true).
	Indent *bool `json:"indent,omitempty" yaml:"indent,omitempty"`

	// FilePrefix overrides the shard file name prefix. Empty uses the input file stem.
	FilePrefix string `json:"file_prefix,omitempty" yaml:"file_prefix,omitempty"`

	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	// LogFormat is "json" or "console".
	LogFormat string `json:"log_format,omitempty" yaml:"log_format,omitempty"`

	// DBMaxOpenConns limits the maximum number of open ledger connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" yaml:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle ledger connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" yaml:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	indent := true
	return &Config{
		MaxParts:       5,
		FlattenWorkers: 1,
		Indent:         &indent,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// IndentOutput reports whether shard files should be pretty-printed.
func (c *Config) IndentOutput() bool {
	if c == nil || c.Indent == nil {
		return true
	}
	return *c.Indent
}

// Load loads configuration from baseDir/config.json (or config.yaml).
// Returns default config if neither file exists.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.chatsplit.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadDirRaw(baseDir)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// LoadWithRepo loads configuration from both the global directory and the
// nearest .chatsplit directory found walking upward from startDir.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadDirRaw(globalDir)
	if err != nil {
		return nil, err
	}

	// Walk upward from startDir to find repo config
	repo, _, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest
// .chatsplit/config.json (or config.yaml).
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		for _, name := range configFiles {
			configPath := filepath.Join(dir, RepoDirName, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadDirRaw loads the first config file present in dir.
// Returns zero-valued config if none exists (not defaults).
func loadDirRaw(dir string) (*Config, error) {
	for _, name := range configFiles {
		cfg, found, err := loadFileRaw(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if found {
			return cfg, nil
		}
	}
	return &Config{}, nil
}

// loadFileRaw loads configuration from a specific file path, decoding by extension.
// An empty or missing path yields a zero-valued config and found=false.
func loadFileRaw(configPath string) (*Config, bool, error) {
	if configPath == "" {
		return &Config{}, false, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}

	cfg := &Config{}
	switch filepath.Ext(configPath) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, false, err
	}

	return cfg, true, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.MaxParts = firstNonZero(overlay.MaxParts, base.MaxParts)
	result.FlattenWorkers = firstNonZero(overlay.FlattenWorkers, base.FlattenWorkers)
	result.DBMaxOpenConns = firstNonZero(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstNonZero(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.FilePrefix = firstNonEmpty(overlay.FilePrefix, base.FilePrefix)
	result.LogLevel = firstNonEmpty(overlay.LogLevel, base.LogLevel)
	result.LogFormat = firstNonEmpty(overlay.LogFormat, base.LogFormat)

	// Pointer booleans: overlay wins if set, so a repo can turn indent off
	result.Indent = base.Indent
	if overlay.Indent != nil {
		result.Indent = overlay.Indent
	}

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return strings.TrimSpace(b)
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
