package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Log struct {
		Level      string `mapstructure:"level"`
		EnableFile bool   `mapstructure:"enable_file"`
		OutputPath string `mapstructure:"output_path"`
	} `mapstructure:"log"`
	Quota struct {
		Driver string `mapstructure:"driver"`
	} `mapstructure:"quota"`
}

func TestParseFlagsConfigPath(t *testing.T) {
	t.Setenv(EnvPrefix+"_CONFIG", "/etc/dungeon/from-env.yaml")

	f, err := ParseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "/etc/dungeon/from-env.yaml", f.ConfigPath)
	assert.False(t, f.ShowVersion)

	f, err = ParseFlags([]string{"-c", "/tmp/explicit.yaml", "--version"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/explicit.yaml", f.ConfigPath)
	assert.True(t, f.ShowVersion)

	_, err = ParseFlags([]string{"--no-such-flag"})
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n  enable_file: false\nquota:\n  driver: redis\n"), 0o644))
	t.Setenv(EnvPrefix+"_QUOTA_DRIVER", "postgres")

	logPath := filepath.Join(dir, "logs", "dungeon.log")
	flags, err := ParseFlags([]string{"--config", path, "--log.path", logPath})
	require.NoError(t, err)

	var cfg testConfig
	mgr, err := LoadConfig(&cfg, flags)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "postgres", cfg.Quota.Driver, "env overrides file")
	assert.Equal(t, logPath, cfg.Log.OutputPath)
	assert.True(t, cfg.Log.EnableFile, "explicit log path enables file output")
	assert.DirExists(t, filepath.Join(dir, "logs"))
}

func TestLoadConfigMissingFile(t *testing.T) {
	flags, err := ParseFlags([]string{"-c", filepath.Join(t.TempDir(), "missing.yaml")})
	require.NoError(t, err)

	var cfg testConfig
	_, err = LoadConfig(&cfg, flags)
	assert.ErrorIs(t, err, config.ErrConfigFileNotFound)
}

func TestGetInfo(t *testing.T) {
	old := Version
	Version = "v1.4.0"
	t.Cleanup(func() { Version = old })

	info := GetInfo()
	assert.Equal(t, "v1.4.0", info.Version)
	assert.NotEmpty(t, info.GitCommit)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.String(), "v1.4.0")
}
