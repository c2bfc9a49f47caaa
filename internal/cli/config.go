package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable the CLI reads.
const EnvPrefix = "EYRIEGEN_"

// GenerateConfig captures all inputs that influence the generate command
// after merging defaults, environment, config file values and CLI overrides.
type GenerateConfig struct {
	Input          string `env:"INPUT" validate:"required"`
	Out            string `env:"OUT" envDefault:"." validate:"required"`
	DryRun         bool   `env:"DRY_RUN"`
	Force          bool   `env:"FORCE"`
	SkipValidation bool   `env:"SKIP_VALIDATION"`
	Concurrency    int    `env:"CONCURRENCY" validate:"gte=0"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat      string `env:"LOG_FORMAT" envDefault:"console" validate:"oneof=console json"`
	Verbose        bool   `env:"VERBOSE"`
	ConfigPath     string `env:"CONFIG"`
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// resolveGenerateConfig layers defaults, EYRIEGEN_* variables, the config
// file and finally explicitly set flags.
func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	var cfg GenerateConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, newUsageError(fmt.Sprintf("environment: %v", err))
	}

	flags := cmd.Flags()
	if flags.Changed("config") {
		value, err := flags.GetString("config")
		if err != nil {
			return nil, err
		}
		cfg.ConfigPath = value
	}
	cfg.ConfigPath = strings.TrimSpace(cfg.ConfigPath)
	if cfg.ConfigPath != "" {
		if err := applyConfigFile(&cfg, cfg.ConfigPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(flags, &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	strs := map[string]*string{
		"input":      &cfg.Input,
		"out":        &cfg.Out,
		"log-level":  &cfg.LogLevel,
		"log-format": &cfg.LogFormat,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	bools := map[string]*bool{
		"dry-run":         &cfg.DryRun,
		"force":           &cfg.Force,
		"skip-validation": &cfg.SkipValidation,
		"verbose":         &cfg.Verbose,
	}
	for name, dst := range bools {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	if flags.Changed("concurrency") {
		value, err := flags.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Concurrency = value
	}
	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Out = strings.TrimSpace(c.Out)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.Verbose {
		c.LogLevel = "debug"
	}
}

func (c *GenerateConfig) validate() error {
	err := structValidator.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, "generate: "+describeFieldError(fe))
	}
	return newUsageError(strings.Join(msgs, "\n"))
}

// flagNames maps config fields to the flag users would reach for.
var flagNames = map[string]string{
	"Input":       "--input",
	"Out":         "--out",
	"Concurrency": "--concurrency",
	"LogLevel":    "--log-level",
	"LogFormat":   "--log-format",
}

func describeFieldError(fe validator.FieldError) string {
	name := flagNames[fe.Field()]
	if name == "" {
		name = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required (set via flag, config file or %s%s)", name, EnvPrefix, envName(fe.Field()))
	case "oneof":
		return fmt.Sprintf("unsupported %s %q (allowed: %s)", name, fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s failed %q validation", name, fe.Tag())
	}
}

func envName(field string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimPrefix(flagNames[field], "--"), "-", "_"))
}

func applyConfigFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	for key, value := range raw {
		fieldErr := func(err error) error {
			return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
		}
		switch normalizeKey(key) {
		case "input":
			if cfg.Input, err = valueAsString(value); err != nil {
				return fieldErr(err)
			}
		case "out":
			if cfg.Out, err = valueAsString(value); err != nil {
				return fieldErr(err)
			}
		case "loglevel":
			if cfg.LogLevel, err = valueAsString(value); err != nil {
				return fieldErr(err)
			}
		case "logformat":
			if cfg.LogFormat, err = valueAsString(value); err != nil {
				return fieldErr(err)
			}
		case "concurrency":
			if cfg.Concurrency, err = valueAsInt(value); err != nil {
				return fieldErr(err)
			}
		case "dryrun":
			if cfg.DryRun, err = valueAsBool(value); err != nil {
				return fieldErr(err)
			}
		case "force":
			if cfg.Force, err = valueAsBool(value); err != nil {
				return fieldErr(err)
			}
		case "skipvalidation":
			if cfg.SkipValidation, err = valueAsBool(value); err != nil {
				return fieldErr(err)
			}
		case "verbose":
			if cfg.Verbose, err = valueAsBool(value); err != nil {
				return fieldErr(err)
			}
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
	}
	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	return strings.ReplaceAll(lowered, "_", "")
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsInt(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n", "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}
