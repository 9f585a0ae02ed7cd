package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/harvest/internal/config"
	"github.com/nao1215/harvest/internal/log"
	"github.com/spf13/cobra"
)

// delayValue is a duration flag that also accepts plain numbers as seconds,
// so "--min-delay 1.5" and "--min-delay 1500ms" mean the same.
type delayValue struct {
	d *time.Duration
}

func newDelayValue(def time.Duration) *delayValue {
	return &delayValue{d: &def}
}

// String implements pflag.Value.
func (v *delayValue) String() string {
	if v.d == nil {
		return "0s"
	}
	return v.d.String()
}

// Set implements pflag.Value.
func (v *delayValue) Set(s string) error {
	d, err := parseDelay(s)
	if err != nil {
		return err
	}
	*v.d = d
	return nil
}

// Type implements pflag.Value.
func (v *delayValue) Type() string {
	return "duration"
}

// parseDelay parses "2s", "500ms" or a plain number of seconds.
func parseDelay(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid delay %q: use seconds (1.5) or a duration (1500ms)", s)
	}
	return d, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	return getPersistentBool(cmd, "verbose")
}

func getPersistentBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

func getPersistentString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetString(name)
		if err != nil {
			return ""
		}
	}
	return v
}

// setupLogger creates the secure structured logger for a command and makes it
// the default logger.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	verbose := getVerboseFlag(cmd)
	var logger *slog.Logger
	if getPersistentBool(cmd, "log-json") {
		logger = log.NewSecureJSONLogger(cmd.ErrOrStderr(), verbose)
	} else {
		logger = log.NewSecureLogger(cmd.ErrOrStderr(), verbose)
	}
	slog.SetDefault(logger)
	return logger
}

// loadConfig builds the configuration from defaults and the config file.
// A config file given with --config must exist; otherwise a missing file is
// not an error. Flags are applied by the caller afterwards.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	if f := cmd.Flags().Lookup("config"); f != nil {
		cfg.ConfigFilePath = f.Value.String()
	}

	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		if err := file.Apply(cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	case explicitConfigPath:
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.Sites = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	flags := cmd.Flags()
	if flags.Changed("db-dir") {
		cfg.DBDir = getPersistentString(cmd, "db-dir")
	}
	if addr := getPersistentString(cmd, "metrics-addr"); addr != "" {
		cfg.MetricsAddr = addr
	}
	return cfg, nil
}

// flagOverrides copies every flag the user set explicitly into cfg, so file
// values survive unless overridden.
type flagOverrides struct {
	cmd *cobra.Command
	err error
}

func (o *flagOverrides) int(name string, dst *int) {
	if o.err != nil || !o.cmd.Flags().Changed(name) {
		return
	}
	*dst, o.err = o.cmd.Flags().GetInt(name)
}

func (o *flagOverrides) bool(name string, dst *bool) {
	if o.err != nil || !o.cmd.Flags().Changed(name) {
		return
	}
	*dst, o.err = o.cmd.Flags().GetBool(name)
}

func (o *flagOverrides) string(name string, dst *string) {
	if o.err != nil || !o.cmd.Flags().Changed(name) {
		return
	}
	*dst, o.err = o.cmd.Flags().GetString(name)
}

func (o *flagOverrides) duration(name string, dst *time.Duration) {
	if o.err != nil || !o.cmd.Flags().Changed(name) {
		return
	}
	*dst, o.err = o.cmd.Flags().GetDuration(name)
}

func (o *flagOverrides) float(name string, dst *float64) {
	if o.err != nil || !o.cmd.Flags().Changed(name) {
		return
	}
	*dst, o.err = o.cmd.Flags().GetFloat64(name)
}

func (o *flagOverrides) delay(name string, dst *time.Duration) {
	if o.err != nil || !o.cmd.Flags().Changed(name) {
		return
	}
	v, ok := o.cmd.Flags().Lookup(name).Value.(*delayValue)
	if !ok {
		o.err = fmt.Errorf("flag --%s is not a delay", name)
		return
	}
	*dst = *v.d
}

// errConfig marks configuration problems in command errors.
var errConfig = errors.New("configuration error")

func configError(err error) error {
	return fmt.Errorf("%w: %w", errConfig, err)
}
