package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fjod/go_storefront/internal/payment"
	"github.com/fjod/go_storefront/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func cleanupCmd() *cobra.Command {
	var (
		olderThan time.Duration
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   "cleanup-pending-orders",
		Short: "Delete pending orders that were never paid",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if olderThan <= 0 {
				olderThan = cfg.PendingOrderTTL
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			store, closeStore, err := openStore(ctx, cfg.Mongo)
			if err != nil {
				return err
			}
			defer closeStore()

			// Cleanup never refunds or cancels, so neither the gateway nor memberships are used.
			gateway := payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, nil)
			orders := service.NewOrderService(store.Orders, nil, gateway, nil, log)
			n, err := orders.CleanupPendingOrders(ctx, olderThan, dryRun)
			if err != nil {
				return err
			}
			log.Info("pending order cleanup finished",
				zap.Bool("dry_run", dryRun),
				zap.Duration("older_than", olderThan),
				zap.Int64("orders", n))
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d pending orders older than %s would be deleted\n", n, olderThan)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d pending orders older than %s\n", n, olderThan)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "minimum order age (defaults to PENDING_ORDER_TTL)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only count matching orders")
	return cmd
}

func seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert categories, products, plans and promotions from a YAML catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog(file)
			if err != nil {
				return err
			}
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			store, closeStore, err := openStore(ctx, cfg.Mongo)
			if err != nil {
				return err
			}
			defer closeStore()

			svc := service.NewCatalogService(store.Catalog, store.Memberships, store.Promotions, log)
			sum, err := svc.Import(ctx, catalog)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d categories, %d products, %d plans, %d promotions\n",
				sum.Categories, sum.Products, sum.Memberships, sum.Promotions)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "catalog.yaml", "catalog definition")
	return cmd
}

func loadCatalog(path string) (*service.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var c service.Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &c, nil
}
