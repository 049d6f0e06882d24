// Package config resolves the CLI's layered configuration. Precedence is
// defaults < config file < SUBZILLA_* environment variables < explicit
// flags, merged through viper before the validated options reach the
// subtitle library.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/onyxdevs/subzilla-sub000/pkg/subtitle"
)

const (
	// EnvPrefix namespaces environment overrides, e.g.
	// SUBZILLA_BATCH_RETRY_COUNT=2.
	EnvPrefix = "SUBZILLA"
	// DefaultConfigName is the config file base name searched in the
	// working directory and $HOME/.config/subzilla/.
	DefaultConfigName = "subzilla"
)

// flagBindings maps CLI flag names to viper keys. Flags absent from the
// given FlagSet are simply not bound, so convert and batch can share the
// table.
var flagBindings = map[string]string{
	"strip-html":         "common.strip.html",
	"strip-colors":       "common.strip.colors",
	"strip-styles":       "common.strip.styles",
	"strip-urls":         "common.strip.urls",
	"strip-timestamps":   "common.strip.timestamps",
	"strip-numbers":      "common.strip.numbers",
	"strip-punctuation":  "common.strip.punctuation",
	"strip-emojis":       "common.strip.emojis",
	"strip-brackets":     "common.strip.brackets",
	"strip-bidi":         "common.strip.bidiControl",
	"backup":             "common.backup",
	"backup-policy":      "common.backupPolicy",
	"bom":                "common.bom",
	"line-endings":       "common.lineEndings",
	"overwrite-existing": "common.overwriteExisting",
	"overwrite-input":    "common.overwriteInput",
	"default-encoding":   "common.defaultEncoding",

	"recursive":          "batch.recursive",
	"parallel":           "batch.parallel",
	"skip-existing":      "batch.skipExisting",
	"preserve-structure": "batch.preserveStructure",
	"chunk-size":         "batch.chunkSize",
	"max-depth":          "batch.maxDepth",
	"include-dirs":       "batch.includeDirectories",
	"exclude-dirs":       "batch.excludeDirectories",
	"retry-count":        "batch.retryCount",
	"retry-delay":        "batch.retryDelay",
	"fail-fast":          "batch.failFast",
	"output-dir":         "batch.outputDir",
}

type fileConfig struct {
	Common subtitle.ConversionOptions `mapstructure:"common"`
	Batch  subtitle.BatchOptions      `mapstructure:"batch"`
}

// Load resolves the merged configuration and builds the application logger.
// The returned BatchOptions carries the common ConversionOptions; the
// convert command uses only that part.
func Load(cfgFile string, verbose bool, flags *pflag.FlagSet) (subtitle.BatchOptions, *slog.Logger, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)

	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", DefaultConfigName))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			logger.Debug("No configuration file found, using defaults/env/flags")
		} else {
			return subtitle.BatchOptions{}, logger, fmt.Errorf("read config file: %w", err)
		}
	} else {
		logger.Debug("Using configuration file", slog.String("path", v.ConfigFileUsed()))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for flagName, key := range flagBindings {
			if f := flags.Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return subtitle.BatchOptions{}, logger, fmt.Errorf("bind flag %s: %w", flagName, err)
				}
			}
		}
	}

	var cfg fileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return subtitle.BatchOptions{}, logger, fmt.Errorf("decode configuration: %w", err)
	}
	opts := cfg.Batch
	opts.Conversion = cfg.Common
	opts.Logger = handler

	if err := validate(&opts); err != nil {
		return subtitle.BatchOptions{}, logger, err
	}
	return opts, logger, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("common.lineEndings", string(subtitle.LineEndingAuto))
	v.SetDefault("common.backupPolicy", string(subtitle.BackupOverwrite))
	v.SetDefault("common.defaultEncoding", subtitle.DefaultEncoding)
	v.SetDefault("batch.chunkSize", 0)
	v.SetDefault("batch.maxDepth", -1)
	v.SetDefault("batch.retryCount", 0)
	v.SetDefault("batch.retryDelay", 1000)
}

func validate(opts *subtitle.BatchOptions) error {
	switch opts.Conversion.LineEndings {
	case "", subtitle.LineEndingAuto, subtitle.LineEndingLF, subtitle.LineEndingCRLF:
	default:
		return fmt.Errorf("invalid line-endings mode %q (want lf, crlf or auto)", opts.Conversion.LineEndings)
	}
	switch opts.Conversion.BackupPolicy {
	case "", subtitle.BackupOverwrite, subtitle.BackupNumbered:
	default:
		return fmt.Errorf("invalid backup policy %q (want overwrite or numbered)", opts.Conversion.BackupPolicy)
	}
	if opts.ChunkSize < 0 {
		return fmt.Errorf("chunk-size must not be negative, got %d", opts.ChunkSize)
	}
	if opts.RetryCount < 0 {
		return fmt.Errorf("retry-count must not be negative, got %d", opts.RetryCount)
	}
	if opts.RetryDelay < 0 {
		return fmt.Errorf("retry-delay must not be negative, got %d", opts.RetryDelay)
	}
	return nil
}
