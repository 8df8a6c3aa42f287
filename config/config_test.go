package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brettbedarf/workspacefs/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestNewConfig_WithNilOverride tests that NewConfig creates a config with all default values
// when no override is provided.
func TestNewConfig_WithNilOverride(t *testing.T) {
	t.Parallel()

	cfg := NewConfig(nil)

	require.NotNil(t, cfg)
	assert.Equal(t, createDefaultCfg(), cfg, "must use default values when no config provided")
}

func TestNewConfig_WithAllOverride(t *testing.T) {
	t.Parallel()

	override := createOverride()
	override.LogLvl = util.Pointer(TraceVerbose)
	cfg := NewConfig(override)

	expCfg := &Config{
		MountOptions: MountOptions{
			Debug:        true,
			FsName:       "test_fs",
			Name:         "test_name",
			AttrTimeout:  DefaultAttrTimeout + 1,
			EntryTimeout: DefaultEntryTimeout + 1,
		},
		LogLvl:          util.TraceLevel,
		StateDir:        "/tmp/state",
		CompressState:   !DefaultCompressState,
		HomeName:        "Scratch",
		DebounceWindow:  50 * time.Millisecond,
		LocalFlushDelay: 0,
	}
	require.NotNil(t, cfg)
	assert.Equal(t, expCfg, cfg, "must override all provided fields")
}

func TestConfig_Merge_LogLvlConversion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		verboseValue  int
		expectedLevel util.LogLevel
	}{
		{"verbose_1_error", 1, util.ErrorLevel},
		{"verbose_2_warn", 2, util.WarnLevel},
		{"verbose_3_info", 3, util.InfoLevel},
		{"verbose_4_debug", 4, util.DebugLevel},
		{"verbose_5_trace", 5, util.TraceLevel},
		{"verbose_0_clamped_to_1", 0, util.ErrorLevel},
		{"verbose_100_clamped_to_5", 100, util.TraceLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			override := &ConfigOverride{
				LogLvl: &tt.verboseValue,
			}

			cfg := NewConfig(override)

			assert.Equal(t, tt.expectedLevel, cfg.LogLvl,
				"CLI verbose %d should map to util.LogLevel %v", tt.verboseValue, tt.expectedLevel)
		})
	}
}

func TestConfig_Merge_NilOverrideVals(t *testing.T) {
	t.Parallel()

	cfg := NewConfig(&ConfigOverride{})

	require.NotNil(t, cfg)
	assert.Equal(t, createDefaultCfg(), cfg, "must use default values for nil override fields")
}

func TestConfig_Merge_PartialOverride(t *testing.T) {
	t.Parallel()

	override := &ConfigOverride{
		FsName:     util.Pointer("test_fs"),
		DebounceMs: util.Pointer(1000),
	}
	cfg := NewConfig(override)

	expCfg := createDefaultCfg()
	expCfg.FsName = "test_fs"
	expCfg.DebounceWindow = time.Second

	require.NotNil(t, cfg)
	assert.Equal(t, expCfg, cfg, "must override all provided fields and leave rest default")
}

func TestLoadConfigOverrideFile_Valid(t *testing.T) {
	t.Parallel()

	type tc struct {
		ext     string
		marshal func(any) ([]byte, error)
	}

	cases := []tc{
		{ext: ".yaml", marshal: yaml.Marshal},
		{ext: ".yml", marshal: yaml.Marshal},
		{ext: ".json", marshal: json.Marshal},
	}

	for _, c := range cases {
		t.Run("valid"+c.ext, func(t *testing.T) {
			t.Parallel()
			override := createOverride()
			data, err := c.marshal(override)
			require.NoError(t, err)
			path := filepath.Join(t.TempDir(), "override"+c.ext)
			require.NoError(t, os.WriteFile(path, data, 0o600))

			loaded, err := LoadConfigOverrideFile(path)

			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, *override, *loaded)
		})
	}
}

func TestLoadConfigOverrideFile_SnakeCaseKeys(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("state_dir: /var/lib/wsfs\nlocal_flush_delay_ms: 0\n"), 0o600))

	cfg, err := NewConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/wsfs", cfg.StateDir)
	assert.Equal(t, time.Duration(0), cfg.LocalFlushDelay)
	assert.Equal(t, DefaultDebounceWindow, cfg.DebounceWindow)
}

func TestLoadConfigOverrideFile_NonExistentFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "does_not_exist.yaml")

	_, err := LoadConfigOverrideFile(path)
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err), "expected not exist error, got %v", err)
}

func TestLoadConfigOverrideFile_UnsupportedExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "override.txt")
	require.NoError(t, os.WriteFile(path, []byte("state_dir: x"), 0o600))

	_, err := LoadConfigOverrideFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config file extension")
}

func TestNewConfigFromFile_FileError(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "missing.json")
	_, err := NewConfigFromFile(missing)
	require.Error(t, err)

	_, err = Load(missing)
	require.Error(t, err)
}

// Environment tests cannot run in parallel
func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("WSFS_STATE_DIR", "/srv/state")
	t.Setenv("WSFS_LOG_LEVEL", "4")
	t.Setenv("WSFS_COMPRESS_STATE", "true")

	override, err := LoadEnvOverride()
	require.NoError(t, err)
	require.NotNil(t, override.StateDir)
	assert.Equal(t, "/srv/state", *override.StateDir)
	assert.Equal(t, 4, *override.LogLvl)
	assert.True(t, *override.CompressState)
	assert.Nil(t, override.HomeName)
	assert.Nil(t, override.DebounceMs)
}

func TestLoadEnvOverride_BadValue(t *testing.T) {
	t.Setenv("WSFS_DEBOUNCE_MS", "soon")

	_, err := LoadEnvOverride()
	assert.Error(t, err)
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"home_name":"From File","state_dir":"/file"}`), 0o600))
	t.Setenv("WSFS_STATE_DIR", "/env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "From File", cfg.HomeName)
	assert.Equal(t, "/env", cfg.StateDir)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultHomeName, cfg.HomeName)
	assert.Equal(t, "/env", cfg.StateDir)
}

func createDefaultCfg() *Config {
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

// createOverride makes a ConfigOverride with all non-default values
func createOverride() *ConfigOverride {
	return &ConfigOverride{
		LogLvl:            util.Pointer(DebugVerbose),
		StateDir:          util.Pointer("/tmp/state"),
		CompressState:     util.Pointer(!DefaultCompressState),
		HomeName:          util.Pointer("Scratch"),
		DebounceMs:        util.Pointer(50),
		LocalFlushDelayMs: util.Pointer(0),
		Debug:             util.Pointer(true),
		FsName:            util.Pointer("test_fs"),
		Name:              util.Pointer("test_name"),
		AttrTimeout:       util.Pointer(float64(DefaultAttrTimeout + 1)),
		EntryTimeout:      util.Pointer(float64(DefaultEntryTimeout + 1)),
	}
}
