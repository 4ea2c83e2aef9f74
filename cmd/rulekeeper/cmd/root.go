package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/core/config"
	"github.com/solatis/rulekeeper/internal/core/db"
	"github.com/solatis/rulekeeper/internal/core/logging"
	"github.com/solatis/rulekeeper/internal/scopes"
	"github.com/solatis/rulekeeper/internal/service"
	"github.com/solatis/rulekeeper/internal/store"
)

const Version = "0.1.0"

var (
	configFile string
	settings   = config.New()
)

var rootCmd = &cobra.Command{
	Use:          "rulekeeper",
	Short:        "RuleKeeper rule evaluation engine",
	Long:         `RuleKeeper compiles stored rule sets into expression trees and evaluates them against cart, customer, product and product attribute contexts.`,
	Version:      Version,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file path")
	flags.String("db-url", "", "database connection URL (sqlite://path or postgres://...)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, logfmt, json)")

	// Unset flags fall through to env, file and defaults.
	settings.BindPFlag("database.url", flags.Lookup("db-url"))
	settings.BindPFlag("log.level", flags.Lookup("log-level"))
	settings.BindPFlag("log.format", flags.Lookup("log-format"))
}

func Execute() error {
	return rootCmd.Execute()
}

// setup loads configuration and installs the process logger.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(settings, configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openDatabase opens the configured database and refuses to continue while
// migrations are pending.
func openDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	database, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			database.Close()
			return nil, fmt.Errorf("migration %s not applied - run 'rulekeeper migrate' first", s.ID)
		}
	}
	return database, nil
}

// newEvaluator builds the rule catalog, store and evaluator on database.
func newEvaluator(cfg *config.Config, database *sqlx.DB, logger *slog.Logger) (*service.Evaluator, error) {
	attributes := make([]scopes.Attribute, 0, len(cfg.Engine.Attributes))
	for _, a := range cfg.Engine.Attributes {
		attributes = append(attributes, scopes.Attribute{ID: a.ID, Name: a.Name, MultiSelect: a.MultiSelect})
	}
	catalog, err := scopes.NewCatalog(attributes...)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule catalog: %w", err)
	}

	st, err := store.New(database)
	if err != nil {
		return nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return service.New(catalog, st, cfg.Engine, logger)
}
