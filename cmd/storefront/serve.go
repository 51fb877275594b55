package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_storefront/internal/cache"
	"github.com/fjod/go_storefront/internal/config"
	"github.com/fjod/go_storefront/internal/consumer"
	storehttp "github.com/fjod/go_storefront/internal/http"
	"github.com/fjod/go_storefront/internal/identity"
	"github.com/fjod/go_storefront/internal/notify"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/fjod/go_storefront/internal/pricing"
	"github.com/fjod/go_storefront/internal/publisher"
	"github.com/fjod/go_storefront/internal/service"
	"github.com/fjod/go_storefront/internal/shipping"
	"github.com/fjod/go_storefront/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName   = "storefront"
	shutdownGrace = 10 * time.Second
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the outbox poller and the order email consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	shutdownTracer, err := telemetry.InitTracer(serviceName, cfg.TracingEnabled, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()
	metrics := telemetry.NewMetrics()

	store, closeStore, err := openStore(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer closeStore()
	log.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	cartCache := cache.NewRedisCache(redisClient)

	tokens, err := identity.NewTokenVerifier(cfg.Clerk.JWTPublicKey, cfg.Clerk.AuthorizedParties)
	if err != nil {
		return err
	}
	clerkWebhooks, err := identity.NewWebhookVerifier(cfg.Clerk.WebhookSecret)
	if err != nil {
		return err
	}
	stripeGateway := payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, nil)
	usps := shipping.NewClient(cfg.USPS.BaseURL, cfg.USPS.ClientID, cfg.USPS.ClientSecret)
	notifier := notify.NewNotifier(notify.NewResendMailer(cfg.Resend.APIKey, cfg.Resend.FromAddress), log.Named("notify"))

	engine := pricing.NewEngine(pricing.Rules{
		Currency:              cfg.Stripe.Currency,
		FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
		FlatShippingFee:       cfg.Pricing.FlatShippingFee,
		TaxRate:               cfg.Pricing.TaxRate,
		WeightThresholdGrams:  cfg.Pricing.WeightThresholdGrams,
		WeightSurchargePerKg:  cfg.Pricing.WeightSurchargePerKg,
	})

	carts := service.NewCartService(store.Carts, cartCache, store.Catalog, store.Memberships, store.Promotions,
		engine, metrics, log.Named("cart"))
	memberships := service.NewMembershipService(store.Memberships, store.Users, stripeGateway, log.Named("membership"))
	checkout := service.NewCheckoutService(carts, memberships, store.Orders, store.Users, store.Promotions,
		stripeGateway, usps, metrics, log.Named("checkout"), cfg.Stripe.Currency)
	orders := service.NewOrderService(store.Orders, memberships, stripeGateway, metrics, log.Named("orders"))
	catalog := service.NewCatalogService(store.Catalog, store.Memberships, store.Promotions, log.Named("catalog"))
	users := service.NewUserService(store.Users, store.Carts, cartCache, log.Named("users"))

	writer := publisher.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer writer.Close()
	poller := publisher.NewOutboxPoller(store.Orders, orders, writer, cfg.Outbox, cfg.PendingOrderTTL, metrics, log.Named("outbox"))

	reader := consumer.NewReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ConsumerGroup)
	defer reader.Close()
	emails := consumer.NewConsumer(store.Orders, notifier, reader, log.Named("consumer"))

	router := storehttp.NewRouter(storehttp.Deps{
		Cart:            carts,
		Catalog:         catalog,
		Checkout:        checkout,
		Orders:          orders,
		Memberships:     memberships,
		Promotions:      service.NewPromotionService(store.Promotions),
		Users:           users,
		Tokens:          tokens,
		ClerkWebhooks:   clerkWebhooks,
		StripeWebhooks:  stripeGateway,
		Metrics:         metrics,
		Logger:          log.Named("http"),
		AdminAPIKey:     cfg.AdminAPIKey,
		RequestTimeout:  cfg.HTTP.RequestTimeout,
		MaxBodyBytes:    cfg.HTTP.MaxBodyBytes,
		PendingOrderTTL: cfg.PendingOrderTTL,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})
	g.Go(func() error {
		emails.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("storefront API listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	log.Info("storefront stopped")
	return err
}
