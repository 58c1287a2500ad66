package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/jiegec/rustup-mirror/internal/config"
)

func parseFlags(t *testing.T, args ...string) (*pflag.FlagSet, *settings) {
	t.Helper()

	s := &settings{}
	flags := pflag.NewFlagSet("rustup-mirror", pflag.ContinueOnError)
	bindFlags(flags, s)
	require.NoError(t, flags.Parse(args))

	return flags, s
}

// TestResolveConfigDefaults verifies a missing default file falls back to defaults.
func TestResolveConfigDefaults(t *testing.T) {
	t.Parallel()

	flags, s := parseFlags(t)
	s.configPath = filepath.Join(t.TempDir(), config.DefaultConfigFilename)

	cfg, err := resolveConfig(flags, s)
	require.NoError(t, err)
	require.Equal(t, []string{"stable", "beta", "nightly"}, cfg.Channels)
	require.Nil(t, cfg.GCDays)
	require.False(t, cfg.SkipGC)
	require.Equal(t, config.DefaultMirrorURL, cfg.MirrorURL)
}

// TestResolveConfigMissingExplicitFile verifies an explicit --config must exist.
func TestResolveConfigMissingExplicitFile(t *testing.T) {
	t.Parallel()

	flags, s := parseFlags(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := resolveConfig(flags, s)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestResolveConfigFlagsOverrideFile verifies only explicitly set flags replace file values.
func TestResolveConfigFlagsOverrideFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "mirror.yaml")

	days := 14
	fileCfg := config.Default()
	fileCfg.MirrorDir = filepath.Join(dir, "from-file")
	fileCfg.MirrorURL = "https://file.example.org"
	fileCfg.GCDays = &days
	fileCfg.Jobs = 2
	require.NoError(t, config.Save(path, fileCfg))

	flags, s := parseFlags(t,
		"-c", path,
		"-u", "https://flag.example.org/rust",
		"--channels", "nightly",
		"--targets", "x86_64-unknown-linux-gnu,aarch64-apple-darwin",
		"--timeout", "2m",
		"-g", "30")

	cfg, err := resolveConfig(flags, s)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "from-file"), cfg.MirrorDir)
	require.Equal(t, "https://flag.example.org/rust", cfg.MirrorURL)
	require.Equal(t, []string{"nightly"}, cfg.Channels)
	require.Equal(t, []string{"x86_64-unknown-linux-gnu", "aarch64-apple-darwin"}, cfg.Targets)
	require.Equal(t, 2*time.Minute, cfg.Timeout)
	require.Equal(t, 2, cfg.Jobs)
	require.NotNil(t, cfg.GCDays)
	require.Equal(t, 30, *cfg.GCDays)
}

// TestResolveConfigRejectsInvalidFlags verifies flag values go through validation.
func TestResolveConfigRejectsInvalidFlags(t *testing.T) {
	t.Parallel()

	flags, s := parseFlags(t, "--gc=-1")
	s.configPath = filepath.Join(t.TempDir(), config.DefaultConfigFilename)

	_, err := resolveConfig(flags, s)
	require.Error(t, err)
}

// TestResolveConfigNoGC verifies --no-gc turns collection off over the file setting.
func TestResolveConfigNoGC(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mirror.yaml")
	require.NoError(t, config.Save(path, config.Default()))

	flags, s := parseFlags(t, "-c", path, "--no-gc")

	cfg, err := resolveConfig(flags, s)
	require.NoError(t, err)
	require.True(t, cfg.SkipGC)
	require.Nil(t, cfg.GCDays)
}
