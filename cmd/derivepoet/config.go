package main

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultHeader = "Code generated by derivepoet. DO NOT EDIT."

// config holds the settings shared by all commands. Values come from flags,
// then DERIVEPOET_* environment variables, then derivepoet.yaml.
type config struct {
	UseImports bool   `mapstructure:"use_imports"`
	Out        string `mapstructure:"out"`
	Jobs       int    `mapstructure:"jobs"`
	LogLevel   string `mapstructure:"log_level"`
	Header     string `mapstructure:"header"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("use_imports", false)
	v.SetDefault("out", "")
	v.SetDefault("jobs", 4)
	v.SetDefault("log_level", "warn")
	v.SetDefault("header", defaultHeader)
}

// loadConfig reads the configuration. If path is empty, derivepoet.yaml is
// looked up in the working directory and is optional.
func loadConfig(flags *pflag.FlagSet, path string) (*config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("DERIVEPOET")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"use_imports": "use-imports",
		"out":         "out",
		"jobs":        "jobs",
		"log_level":   "log-level",
		"header":      "header",
	} {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.Wrapf(err, "binding flag --%s", flag)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("derivepoet")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "reading config")
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if cfg.Jobs < 1 {
		cfg.Jobs = 1
	}
	return &cfg, nil
}

// newLogger returns a console logger writing to w at the given level.
func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}
