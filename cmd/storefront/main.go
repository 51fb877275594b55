package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fjod/go_storefront/internal/config"
	"github.com/fjod/go_storefront/internal/logger"
	"github.com/fjod/go_storefront/internal/repository"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "storefront",
		Short:         "Organic juice and tea storefront backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(serveCmd(), cleanupCmd(), seedCmd())
	return cmd
}

// bootstrap loads configuration and the process logger shared by every command.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	zap.ReplaceGlobals(log)
	return cfg, log, nil
}

// openStore connects to MongoDB and makes sure the indexes exist. The returned
// func disconnects the client.
func openStore(ctx context.Context, cfg config.Mongo) (*repository.Store, func(), error) {
	if cfg.URI == "" {
		return nil, nil, fmt.Errorf("missing required configuration: MONGODB_URI")
	}
	db, err := repository.ConnectMongoDB(ctx, cfg.URI, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	store := repository.NewStore(db)
	if err := store.CreateIndexes(ctx); err != nil {
		disconnect(db)
		return nil, nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return store, func() { disconnect(db) }, nil
}

func disconnect(db *mongo.Database) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	_ = db.Client().Disconnect(ctx)
}
