// Package main implements the knolstudy command.
package main

import (
	"fmt"
	"os"

	"github.com/conorfennell/knolstudy/internal/config"
	"github.com/conorfennell/knolstudy/internal/logging"
	"github.com/conorfennell/knolstudy/internal/storage"
	"github.com/conorfennell/knolstudy/internal/study"
	decksync "github.com/conorfennell/knolstudy/internal/sync"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "knolstudy",
		Short: "Spaced repetition study server for Markdown decks",
		Long: `knolstudy schedules reviews of flashcards written in Markdown.

Decks are read from local directories or git repositories, reviews are
scheduled with FSRS and the study API is served over HTTP.

Configuration is read from the --config YAML file, then KNOLSTUDY_*
environment variables, then flags.`,
		Version:      version,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "path to a YAML config file")
	flags.String("db", "knolstudy.db", "path to the SQLite database file")
	flags.String("repos-dir", "repos", "directory git deck sources are cloned into")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "json", "log format (json or console)")
	flags.String("timezone", "UTC", "IANA timezone deciding where a study day starts")

	root.AddCommand(
		newServeCmd(),
		newSyncCmd(),
		newAddSourceCmd(),
		newRemoveSourceCmd(),
		newScanCmd(),
		newRescoreCmd(),
	)
	return root
}

// app holds what every command that touches the database needs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *storage.DB
}

// newApp loads the configuration, builds the logger and opens the database.
func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		_ = logging.Sync(logger)
		return nil, err
	}
	logger.Debug("database opened", zap.String("path", cfg.Database.Path))
	return &app{cfg: cfg, logger: logger, db: db}, nil
}

func (a *app) syncer() *decksync.Syncer {
	return decksync.New(a.db, a.logger, a.cfg.Sync.ReposDir)
}

func (a *app) service(opts ...study.Option) *study.Service {
	return study.NewService(a.db, a.cfg.Study, a.logger, opts...)
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
	_ = logging.Sync(a.logger)
}
