package cli

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/roach88/tfql/internal/config"
	"github.com/roach88/tfql/internal/store"
)

// StoreFlags override the store section of the config.
type StoreFlags struct {
	DB      string
	Dialect string
	DSN     string
}

func addStoreFlags(flags *pflag.FlagSet, f *StoreFlags) {
	flags.StringVar(&f.DB, "db", "", "database file (sqlite or duckdb)")
	flags.StringVar(&f.Dialect, "dialect", "", "store engine (sqlite|duckdb|postgres)")
	flags.StringVar(&f.DSN, "dsn", "", "postgres connection string")
}

// storeConfig merges flag overrides into the configured store section.
func (f StoreFlags) storeConfig(base config.StoreConfig) config.StoreConfig {
	cfg := base
	if f.DB != "" {
		cfg.Path = f.DB
	}
	if f.Dialect != "" {
		cfg.Dialect = f.Dialect
	}
	if f.DSN != "" {
		cfg.DSN = f.DSN
	}
	return cfg
}

// openStore opens the store named by the config and flags.
func openStore(ctx context.Context, opts *RootOptions, f StoreFlags, formatter *OutputFormatter) (*store.Store, error) {
	cfg := f.storeConfig(opts.settings().Store)
	formatter.VerboseLog("Opening %s store", cfg.Dialect)
	s, err := cfg.OpenStore(ctx, opts.logger())
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	return s, nil
}

// storeErrorCode maps store errors onto CLI codes.
func storeErrorCode(err error) string {
	switch {
	case store.IsNotFound(err):
		return ErrCodeFilterNotFound
	case store.IsInvalidFilter(err):
		return ErrCodeCompileFailed
	}
	return ErrCodeStore
}
