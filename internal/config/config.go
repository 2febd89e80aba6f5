package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"persistor/internal/core/service/persistence"
	"persistor/internal/persistor"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	// EnvPrefix is prepended to every variable name below.
	EnvPrefix = "PERSISTOR_"
	// DefaultEnvFile is loaded, if present, before the environment is read.
	DefaultEnvFile = ".env"
)

// Config is read from PERSISTOR_* environment variables. Defaults live in the
// envDefault tags so they serve both Default and Load.
type Config struct {
	Type     string     `env:"TYPE" envDefault:"LocalFile"`
	FilePath string     `env:"FILE_PATH" envDefault:"data/records.json"`
	Dir      string     `env:"DIR" envDefault:"data/records"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"info"`
}

// Default returns the configuration with no environment applied.
func Default() *Config {
	// the tags are ours, parsing them cannot fail
	cfg, _ := parse(map[string]string{})
	return cfg
}

// Load reads envFile into the process environment, without overriding
// variables already set, and then parses the environment. A missing envFile
// is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("could not load env file %s: %w", envFile, err)
		}
	}

	return parse(nil)
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(environ)
}

func parse(environ map[string]string) (*Config, error) {
	cfg := &Config{}

	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, &persistence.Error{Kind: persistence.KindConfiguration, Message: "config error", Cause: err}
	}

	return cfg, nil
}

// Options turns the configuration into facade options. Only the location
// matching Type is used.
func (c *Config) Options() (persistor.Options, error) {
	kind, err := persistor.ParseType(c.Type)
	if err != nil {
		return persistor.Options{}, err
	}

	opts := persistor.Options{Type: kind}
	switch kind {
	case persistor.TypeLocalFile:
		opts.Config = persistor.LocalFileConfig{FilePath: c.FilePath}
	case persistor.TypeMultiFile:
		opts.Config = persistor.MultiFileConfig{Dir: c.Dir}
	}

	return opts, nil
}

// Location is the path the selected adapter stores its data at.
func (c *Config) Location() string {
	if kind, _ := persistor.ParseType(c.Type); kind == persistor.TypeMultiFile {
		return c.Dir
	}
	return c.FilePath
}
