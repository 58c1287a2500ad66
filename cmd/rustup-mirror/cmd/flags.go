package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/jiegec/rustup-mirror/internal/config"
	"github.com/jiegec/rustup-mirror/internal/logger"
)

// settings collects the values of the command line flags.
type settings struct {
	configPath  string
	origDir     string
	mirrorDir   string
	mirrorURL   string
	upstreamURL string
	gcDays      int
	noGC        bool
	channels    []string
	targets     []string
	jobs        int
	rateLimit   float64
	timeout     time.Duration
	metricsFile string
	logLevel    string
}

// bindFlags registers the flags shared by the sync and gc commands.
func bindFlags(flags *pflag.FlagSet, s *settings) {
	flags.StringVarP(&s.configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&s.origDir, "orig", "o", config.DefaultOrigDir, "directory for upstream manifests")
	flags.StringVarP(&s.mirrorDir, "mirror", "m", config.DefaultMirrorDir, "directory of the served mirror")
	flags.StringVarP(&s.mirrorURL, "url", "u", config.DefaultMirrorURL, "public base URL of the mirror")
	flags.StringVar(&s.upstreamURL, "upstream-url", "", "base URL of the upstream distribution server")
	flags.IntVarP(&s.gcDays, "gc", "g", 0, "keep nightly artifacts for this many days during garbage collection")
	flags.BoolVar(&s.noGC, "no-gc", false, "skip garbage collection after a sync")
	flags.StringSliceVar(&s.channels, "channels", nil, "channels to mirror (default stable,beta,nightly)")
	flags.StringSliceVar(&s.targets, "targets", nil, "target triples to mirror (default all)")
	flags.IntVarP(&s.jobs, "jobs", "j", config.DefaultJobs, "artifacts downloaded in parallel")
	flags.Float64Var(&s.rateLimit, "rate-limit", 0, "maximum upstream requests per second, 0 for unlimited")
	flags.DurationVar(&s.timeout, "timeout", 0, "timeout of a single download, 0 for none")
	flags.StringVar(&s.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	flags.StringVar(&s.logLevel, "log-level", "", "log level: debug, info, warn or error")
}

// resolveConfig loads the configuration file, lets explicitly set flags
// override it and applies the resulting log level.
// A missing file is only an error when --config was given.
func resolveConfig(flags *pflag.FlagSet, s *settings) (*config.Config, error) {
	cfg, err := config.Load(s.configPath)

	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !flags.Changed("config"):
		cfg = config.Default()
	default:
		return nil, err
	}

	overrideString(flags, "orig", s.origDir, &cfg.OrigDir)
	overrideString(flags, "mirror", s.mirrorDir, &cfg.MirrorDir)
	overrideString(flags, "url", s.mirrorURL, &cfg.MirrorURL)
	overrideString(flags, "upstream-url", s.upstreamURL, &cfg.UpstreamURL)
	overrideString(flags, "metrics-file", s.metricsFile, &cfg.MetricsFile)
	overrideString(flags, "log-level", s.logLevel, &cfg.LogLevel)

	if flags.Changed("gc") {
		days := s.gcDays
		cfg.GCDays = &days
	}

	if flags.Changed("no-gc") {
		cfg.SkipGC = s.noGC
	}

	if flags.Changed("channels") {
		cfg.Channels = s.channels
	}

	if flags.Changed("targets") {
		cfg.Targets = s.targets
	}

	if flags.Changed("jobs") {
		cfg.Jobs = s.jobs
	}

	if flags.Changed("rate-limit") {
		cfg.RateLimit = s.rateLimit
	}

	if flags.Changed("timeout") {
		cfg.Timeout = s.timeout
	}

	if err = config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := logger.ParseLogLevel(cfg.LogLevel)
	logger.SetLevel(level)

	return cfg, nil
}

func overrideString(flags *pflag.FlagSet, name, value string, target *string) {
	if flags.Changed(name) {
		*target = value
	}
}
