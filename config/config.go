package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brettbedarf/workspacefs/internal/util"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. WSFS_STATE_DIR
const EnvPrefix = "WSFS"

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	// DefaultStateDir keeps state in memory only
	DefaultStateDir = ""

	DefaultCompressState = false

	DefaultHomeName = "Home"

	// DefaultDebounceWindow is the quiet period before virtual workspaces are saved
	DefaultDebounceWindow = 300 * time.Millisecond

	// DefaultLocalFlushDelay is how long local workspaces buffer writes
	DefaultLocalFlushDelay = 250 * time.Millisecond

	DefaultFsName = "workspacefs"
	DefaultName   = "workspacefs"

	// DefaultAttrTimeout is the attribute cache timeout in seconds
	DefaultAttrTimeout = 1.0

	// DefaultEntryTimeout is the directory entry cache timeout in seconds
	DefaultEntryTimeout = 1.0
)

// Config contains runtime configuration values
type Config struct {
	MountOptions

	LogLvl          util.LogLevel
	StateDir        string        // Directory for saved workspaces; empty keeps them in memory (Default "")
	CompressState   bool          // zstd-compress saved state files (Default false)
	HomeName        string        // Display name of a newly created home workspace (Default "Home")
	DebounceWindow  time.Duration // Quiet period before virtual workspace changes are saved (Default 300ms)
	LocalFlushDelay time.Duration // Buffering delay for writes to local directories; 0 flushes only on demand (Default 250ms)
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
// Durations are given in milliseconds.
type ConfigOverride struct {
	LogLvl            *int     `yaml:"log_level,omitempty" json:"log_level,omitempty" envconfig:"LOG_LEVEL"`
	StateDir          *string  `yaml:"state_dir,omitempty" json:"state_dir,omitempty" envconfig:"STATE_DIR"`
	CompressState     *bool    `yaml:"compress_state,omitempty" json:"compress_state,omitempty" envconfig:"COMPRESS_STATE"`
	HomeName          *string  `yaml:"home_name,omitempty" json:"home_name,omitempty" envconfig:"HOME_NAME"`
	DebounceMs        *int     `yaml:"debounce_ms,omitempty" json:"debounce_ms,omitempty" envconfig:"DEBOUNCE_MS"`
	LocalFlushDelayMs *int     `yaml:"local_flush_delay_ms,omitempty" json:"local_flush_delay_ms,omitempty" envconfig:"LOCAL_FLUSH_DELAY_MS"`
	Debug             *bool    `yaml:"fuse_debug,omitempty" json:"fuse_debug,omitempty" envconfig:"FUSE_DEBUG"`
	FsName            *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty" envconfig:"FS_NAME"`
	Name              *string  `yaml:"name,omitempty" json:"name,omitempty" envconfig:"NAME"`
	AttrTimeout       *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty" envconfig:"ATTR_TIMEOUT"`
	EntryTimeout      *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty" envconfig:"ENTRY_TIMEOUT"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName:       DefaultFsName,
			Name:         DefaultName,
			AttrTimeout:  DefaultAttrTimeout,
			EntryTimeout: DefaultEntryTimeout,
		},
		LogLvl:          DefaultLogLvl,
		StateDir:        DefaultStateDir,
		CompressState:   DefaultCompressState,
		HomeName:        DefaultHomeName,
		DebounceWindow:  DefaultDebounceWindow,
		LocalFlushDelay: DefaultLocalFlushDelay,
	}
}

// NewConfig creates a Config from defaults with override applied; override may be nil
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = verbosityToLevel(*override.LogLvl)
	}
	if override.StateDir != nil {
		c.StateDir = *override.StateDir
	}
	if override.CompressState != nil {
		c.CompressState = *override.CompressState
	}
	if override.HomeName != nil {
		c.HomeName = *override.HomeName
	}
	if override.DebounceMs != nil {
		c.DebounceWindow = time.Duration(*override.DebounceMs) * time.Millisecond
	}
	if override.LocalFlushDelayMs != nil {
		c.LocalFlushDelay = time.Duration(*override.LocalFlushDelayMs) * time.Millisecond
	}
	if override.Debug != nil {
		c.Debug = *override.Debug
	}
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.AttrTimeout != nil {
		c.AttrTimeout = *override.AttrTimeout
	}
	if override.EntryTimeout != nil {
		c.EntryTimeout = *override.EntryTimeout
	}
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// LoadEnvOverride reads overrides from WSFS_* environment variables.
// Unset variables leave their fields nil.
func LoadEnvOverride() (*ConfigOverride, error) {
	var override ConfigOverride
	if err := envconfig.Process(EnvPrefix, &override); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}
	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Merge(override)
	return cfg, nil
}

// Load builds the runtime config: defaults, then the file at path when path
// is not empty, then the environment
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	if path != "" {
		var err error
		if cfg, err = NewConfigFromFile(path); err != nil {
			return nil, err
		}
	}
	env, err := LoadEnvOverride()
	if err != nil {
		return nil, err
	}
	cfg.Merge(env)
	return cfg, nil
}
