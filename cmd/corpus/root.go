package main

import (
	"context"
	"fmt"

	"github.com/BearPays/code-review-assistant-back/internal/bootstrap"
	"github.com/BearPays/code-review-assistant-back/internal/config"
	"github.com/BearPays/code-review-assistant-back/internal/pkg/logger"
	"github.com/BearPays/code-review-assistant-back/internal/repository/unitofwork"
	"github.com/BearPays/code-review-assistant-back/internal/service"
	"github.com/BearPays/code-review-assistant-back/pkg/database"
	"github.com/BearPays/code-review-assistant-back/pkg/events"
	pktNats "github.com/BearPays/code-review-assistant-back/pkg/nats"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Prepare and index change sets for the review assistant",
	Long: `Split pull request records, ingest change sets into the three corpora
(pr_data, source_code, pr_feature) and inspect what has been indexed.

Configuration is read from .env and the environment, like the server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log every SQL statement")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(inspectCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

func openDB(cmd *cobra.Command, cfg *config.Config) (*gorm.DB, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, verbose)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return db, nil
}

// ingestRuntime is the ingest service plus whatever needs closing afterwards.
type ingestRuntime struct {
	service service.IIngestService
	close   func()
}

func newIngestRuntime(cmd *cobra.Command) (*ingestRuntime, error) {
	cfg := config.Load()
	db, err := openDB(cmd, cfg)
	if err != nil {
		return nil, err
	}

	log := logger.NewZapLogger(cfg.App.LogFilePath, false)
	embeddingProvider, err := bootstrap.NewEmbeddingProvider(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}

	// running servers purge their answer caches on the re-index event
	var publisher events.Publisher = events.NopPublisher{}
	closeFn := func() { _ = log.Sync() }
	if cfg.Events.NatsURL != "" {
		pub, err := pktNats.NewPublisher(cfg.Events.NatsURL, log)
		if err != nil {
			log.Warn("Corpus", "NATS unavailable, events not published", map[string]interface{}{"error": err.Error()})
		} else {
			publisher = pub
			closeFn = func() {
				pub.Close()
				_ = log.Sync()
			}
		}
	}

	svc := service.NewIngestService(unitofwork.NewRepositoryFactory(db), embeddingProvider, publisher, log, 0)
	return &ingestRuntime{service: svc, close: closeFn}, nil
}
