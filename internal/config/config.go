package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/jiegec/rustup-mirror/internal/domain/dist"
	"github.com/jiegec/rustup-mirror/internal/fetcher"
	"github.com/jiegec/rustup-mirror/internal/logger"
)

// Config holds every setting of a mirror run.
type Config struct {
	// OrigDir stores the manifests exactly as fetched from upstream.
	OrigDir string `yaml:"orig_dir"`
	// MirrorDir is the tree served to rustup clients.
	MirrorDir string `yaml:"mirror_dir"`
	// MirrorURL is the public base URL written into rewritten manifests.
	MirrorURL string `yaml:"mirror_url"`
	// UpstreamURL is the distribution server to mirror.
	UpstreamURL string `yaml:"upstream_url"`
	// GCDays keeps that many days of nightly artifacts. Nil disables age-based
	// collection; unreferenced stable and beta files are still removed.
	GCDays *int `yaml:"gc_days,omitempty"`
	// SkipGC turns garbage collection after a sync off entirely.
	SkipGC bool `yaml:"skip_gc,omitempty"`
	// Channels lists the channels to mirror.
	Channels []string `yaml:"channels"`
	// Targets restricts mirrored targets. Empty mirrors all of them.
	Targets []string `yaml:"targets,omitempty"`
	// Jobs is the number of artifacts fetched in parallel.
	Jobs int `yaml:"jobs"`
	// RateLimit caps upstream requests per second. Zero means unlimited.
	RateLimit float64 `yaml:"rate_limit,omitempty"`
	// Timeout bounds each upstream request. Zero keeps the transport default.
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// MetricsFile is an optional Prometheus textfile written after each run.
	MetricsFile string `yaml:"metrics_file,omitempty"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level,omitempty"`
}

const (
	// DefaultConfigFilename is read when it exists and no --config is given.
	DefaultConfigFilename = "rustup-mirror.yaml"

	// DefaultOrigDir stores original manifests.
	DefaultOrigDir = "./orig"

	// DefaultMirrorDir stores the mirror tree.
	DefaultMirrorDir = "./mirror"

	// DefaultMirrorURL is where the mirror is served during local testing.
	DefaultMirrorURL = "http://127.0.0.1:8000"

	// DefaultJobs keeps fetching sequential.
	DefaultJobs = 1

	// DefaultFilePermissions is the permission of saved config files.
	DefaultFilePermissions = 0o600
)

var (
	errConfigIsNotSet   = errors.New("configuration is not set")
	errDirRequired      = errors.New("directory must be provided")
	errAbsoluteURL      = errors.New("url must be absolute")
	errNegativeGCDays   = errors.New("gc days must not be negative")
	errNegativeJobs     = errors.New("jobs must not be negative")
	errNegativeRate     = errors.New("rate limit must not be negative")
	errUnknownLogLevel  = errors.New("unknown log level")
	errNoChannels       = errors.New("at least one channel is required")
	errDuplicateChannel = errors.New("channel listed twice")
)

// Default returns the settings used when nothing is configured.
func Default() *Config {
	channels := dist.DefaultChannels()
	names := make([]string, 0, len(channels))

	for _, channel := range channels {
		names = append(names, channel.Name())
	}

	return &Config{
		OrigDir:     DefaultOrigDir,
		MirrorDir:   DefaultMirrorDir,
		MirrorURL:   DefaultMirrorURL,
		UpstreamURL: fetcher.DefaultUpstreamURL,
		Channels:    names,
		Jobs:        DefaultJobs,
		LogLevel:    "info",
	}
}

// Load reads configuration from path on top of the defaults and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand config path: %w", err)
	}

	contents, err := os.ReadFile(filepath.Clean(expanded))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("expand config path: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(expanded), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks cfg, fills defaults for zero values and expands ~ in paths.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	var err error

	if cfg.OrigDir, err = expandDir("orig", cfg.OrigDir); err != nil {
		return err
	}

	if cfg.MirrorDir, err = expandDir("mirror", cfg.MirrorDir); err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		if cfg.MetricsFile, err = homedir.Expand(cfg.MetricsFile); err != nil {
			return fmt.Errorf("expand metrics file: %w", err)
		}
	}

	if err = validateURL("mirror", cfg.MirrorURL); err != nil {
		return err
	}

	if cfg.UpstreamURL == "" {
		cfg.UpstreamURL = fetcher.DefaultUpstreamURL
	}

	if err = validateURL("upstream", cfg.UpstreamURL); err != nil {
		return err
	}

	if cfg.GCDays != nil && *cfg.GCDays < 0 {
		return errNegativeGCDays
	}

	switch {
	case cfg.Jobs < 0:
		return errNegativeJobs
	case cfg.Jobs == 0:
		cfg.Jobs = DefaultJobs
	}

	if cfg.RateLimit < 0 {
		return errNegativeRate
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%q: %w", cfg.LogLevel, errUnknownLogLevel)
	}

	if _, err = cfg.ParsedChannels(); err != nil {
		return err
	}

	if _, err = cfg.ParsedTargets(); err != nil {
		return err
	}

	return nil
}

// ParsedChannels converts Channels into domain channels.
func (c *Config) ParsedChannels() ([]dist.Channel, error) {
	if len(c.Channels) == 0 {
		return nil, errNoChannels
	}

	seen := make(map[string]struct{}, len(c.Channels))
	channels := make([]dist.Channel, 0, len(c.Channels))

	for _, name := range c.Channels {
		channel, err := dist.ParseChannel(name)
		if err != nil {
			return nil, err
		}

		if _, dup := seen[channel.Name()]; dup {
			return nil, fmt.Errorf("%s: %w", channel, errDuplicateChannel)
		}

		seen[channel.Name()] = struct{}{}
		channels = append(channels, channel)
	}

	return channels, nil
}

// ParsedTargets converts Targets into domain targets. Nil means no restriction.
func (c *Config) ParsedTargets() ([]dist.Target, error) {
	if len(c.Targets) == 0 {
		return nil, nil
	}

	targets := make([]dist.Target, 0, len(c.Targets))

	for _, triple := range c.Targets {
		target, err := dist.ParseTarget(triple)
		if err != nil {
			return nil, err
		}

		targets = append(targets, target)
	}

	return targets, nil
}

func expandDir(name, dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("%s: %w", name, errDirRequired)
	}

	expanded, err := homedir.Expand(dir)
	if err != nil {
		return "", fmt.Errorf("expand %s directory: %w", name, err)
	}

	return filepath.Clean(expanded), nil
}

func validateURL(name, raw string) error {
	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("invalid %s url: %w", name, err)
	}

	if !parsed.IsAbs() || parsed.Host == "" {
		return fmt.Errorf("%s url %q: %w", name, raw, errAbsoluteURL)
	}

	return nil
}
