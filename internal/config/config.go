// Package config loads tfql.yaml and builds the logger, store and SQL
// compiler it describes.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/lmittmann/tint"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tfql/internal/queryir"
	"github.com/roach88/tfql/internal/querysql"
	"github.com/roach88/tfql/internal/store"
)

// DefaultFile is the config file looked up in the working directory when
// no path is given.
const DefaultFile = "tfql.yaml"

type Config struct {
	Logger  LoggerConfig  `yaml:"logger"`
	Store   StoreConfig   `yaml:"store"`
	Compile CompileConfig `yaml:"compile"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
	Type  string `yaml:"type"`
}

type StoreConfig struct {
	Dialect string `yaml:"dialect"`
	Path    string `yaml:"path"`
	DSN     string `yaml:"dsn"`
}

type CompileConfig struct {
	Dialect    string `yaml:"dialect"`
	Mode       string `yaml:"mode"`
	ChunkLimit int    `yaml:"chunk_limit"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Logger: LoggerConfig{Level: "warn", Type: "colored-text"},
		Store:  StoreConfig{Dialect: string(querysql.SQLite), Path: "tfql.db"},
		Compile: CompileConfig{
			Dialect:    string(querysql.SQLite),
			Mode:       string(querysql.Parameterized),
			ChunkLimit: queryir.DefaultChunkLimit,
		},
	}
}

// Load reads path over the defaults. An empty path tries DefaultFile and
// falls back to the defaults when it does not exist; an explicit path must
// exist. Unknown keys are errors.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("cannot read config: %w", err)
	}

	if err := Decode(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses YAML into cfg, keeping values cfg already holds for keys
// the document omits.
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("cannot parse config: %w", err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (cfg Config) Validate() error {
	var result *multierror.Error

	if _, err := parseLevel(cfg.Logger.Level); err != nil {
		result = multierror.Append(result, err)
	}
	switch cfg.Logger.Type {
	case "json", "text", "colored-text":
	default:
		result = multierror.Append(result, fmt.Errorf("invalid log type: %s", cfg.Logger.Type))
	}

	if d, err := querysql.ParseDialect(cfg.Store.Dialect); err != nil {
		result = multierror.Append(result, fmt.Errorf("store: %w", err))
	} else if d == querysql.Postgres && cfg.Store.DSN == "" {
		result = multierror.Append(result, errors.New("store: postgres needs a dsn"))
	}

	if _, err := querysql.ParseDialect(cfg.Compile.Dialect); err != nil {
		result = multierror.Append(result, fmt.Errorf("compile: %w", err))
	}
	if _, err := querysql.ParseMode(cfg.Compile.Mode); err != nil {
		result = multierror.Append(result, fmt.Errorf("compile: %w", err))
	}
	if cfg.Compile.ChunkLimit < 1 {
		result = multierror.Append(result, fmt.Errorf("compile: chunk_limit must be positive, got %d", cfg.Compile.ChunkLimit))
	}

	return result.ErrorOrNil()
}

// NewLogger builds the slog logger described by cfg, writing to w.
func NewLogger(cfg LoggerConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	switch cfg.Type {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "text":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	case "colored-text":
		handler = tint.NewHandler(w, &tint.Options{Level: level})
	default:
		return nil, fmt.Errorf("invalid log type: %s", cfg.Type)
	}

	return slog.New(handler), nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level: %s", s)
}

// Compiler builds the SQL compiler described by cfg. opts are applied
// after the configured mode.
func (cfg CompileConfig) Compiler(opts ...querysql.Option) (*querysql.Compiler, error) {
	d, err := querysql.ParseDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	m, err := querysql.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	return querysql.NewCompiler(d, append([]querysql.Option{querysql.WithMode(m)}, opts...)...)
}

// OpenStore opens the store described by cfg.
func (cfg StoreConfig) OpenStore(ctx context.Context, logger *slog.Logger) (*store.Store, error) {
	d, err := querysql.ParseDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	opts := []store.Option{store.WithLogger(logger)}
	switch d {
	case querysql.DuckDB:
		return store.OpenDuckDB(cfg.Path, opts...)
	case querysql.Postgres:
		return store.OpenPostgres(ctx, cfg.DSN, opts...)
	default:
		return store.Open(cfg.Path, opts...)
	}
}
