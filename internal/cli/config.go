package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultConfigFile is read when --config is not given and the file
// exists in the working directory.
const DefaultConfigFile = "nestmap.toml"

// DefaultDriver is used when no driver is configured.
const DefaultDriver = "sqlite3"

// Environment variables consulted for missing settings.
const (
	EnvDSN         = "NESTMAP_DSN"
	EnvDatabaseURL = "DATABASE_URL"
	EnvDriver      = "NESTMAP_DRIVER"
	EnvSchema      = "NESTMAP_SCHEMA"
)

// Config is the TOML configuration file.
//
//	driver = "pgx"
//	dsn = "postgres://localhost/shop"
//	schema = "schema/shop.yaml"
//	log_statements = true
type Config struct {
	Driver        string `toml:"driver"`
	DSN           string `toml:"dsn"`
	Schema        string `toml:"schema"`
	LogStatements bool   `toml:"log_statements"`
}

// Settings are the resolved connection settings of one invocation.
type Settings struct {
	Driver        string
	DSN           string
	Schema        string
	LogStatements bool
}

// LoadConfig reads a TOML config file. Unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}
	return &cfg, nil
}

// Resolve merges the settings sources. Flags win over the config file;
// environment variables only fill what is still empty.
func (o *RootOptions) Resolve() (Settings, error) {
	var s Settings

	path := o.ConfigPath
	if path == "" {
		path = DefaultConfigFile
	}
	cfg, err := LoadConfig(path)
	switch {
	case err == nil:
		s = Settings{Driver: cfg.Driver, DSN: cfg.DSN, Schema: cfg.Schema, LogStatements: cfg.LogStatements}
	case o.ConfigPath == "" && errors.Is(err, fs.ErrNotExist):
		// no config file
	default:
		return Settings{}, err
	}

	if o.Driver != "" {
		s.Driver = o.Driver
	}
	if o.DSN != "" {
		s.DSN = o.DSN
	}
	if o.Schema != "" {
		s.Schema = o.Schema
	}

	s.Driver = firstNonEmpty(s.Driver, os.Getenv(EnvDriver), DefaultDriver)
	s.DSN = firstNonEmpty(s.DSN, os.Getenv(EnvDSN), os.Getenv(EnvDatabaseURL))
	s.Schema = firstNonEmpty(s.Schema, os.Getenv(EnvSchema))
	return s, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// loadDotEnv loads .env from the working directory when present.
// Variables already set in the environment are kept.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}
