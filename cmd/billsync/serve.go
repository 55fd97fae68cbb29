package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/billsync/modules/billing"
	"github.com/dmitrymomot/billsync/pkg/archive"
	"github.com/dmitrymomot/billsync/pkg/clientip"
	"github.com/dmitrymomot/billsync/pkg/config"
	"github.com/dmitrymomot/billsync/pkg/httpserver"
	"github.com/dmitrymomot/billsync/pkg/identity"
	"github.com/dmitrymomot/billsync/pkg/logger"
	"github.com/dmitrymomot/billsync/pkg/notify"
	"github.com/dmitrymomot/billsync/pkg/subscription"
	"github.com/dmitrymomot/billsync/pkg/webhook"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook receiver and billing API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	var app AppConfig
	if err := config.Load(&app); err != nil {
		return err
	}
	log, err := newLogger(app)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, app, log)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", app.StoreDriver, err)
	}
	defer closeStore()

	catalog, err := loadCatalog(ctx, app)
	if err != nil {
		return err
	}

	var (
		whCfg     webhook.Config
		stripeCfg subscription.StripeConfig
		idCfg     identity.Config
		httpCfg   httpserver.Config
	)
	for _, load := range []func() error{
		func() error { return config.Load(&whCfg) },
		func() error { return config.Load(&stripeCfg) },
		func() error { return config.Load(&idCfg) },
		func() error { return config.Load(&httpCfg) },
	} {
		if err := load(); err != nil {
			return err
		}
	}

	idp, err := identity.NewFromConfig(ctx, idCfg, identity.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to set up identity provider: %w", err)
	}
	defer idp.Close()

	processor := subscription.WithCircuitBreaker(subscription.NewStripeProcessor(stripeCfg), stripeCfg.Breaker, log)

	archiver, err := newArchiver(ctx, log)
	if err != nil {
		return err
	}
	notifier, err := newNotifier(log)
	if err != nil {
		return err
	}

	service := subscription.NewService(store, idp, processor, app.ClientURL,
		subscription.WithCatalog(catalog),
		subscription.WithServiceLogger(log),
	)
	projector := subscription.NewProjector(store, subscription.WithProjectorLogger(log))
	dispatcher := subscription.NewDispatcher(projector, log)

	router := chi.NewRouter()
	router.Mount("/", billing.Router(billing.RouterOptions{
		Webhook: billing.NewWebhookHandler(webhook.NewVerifierFromConfig(whCfg), dispatcher,
			billing.WithArchiver(archiver),
			billing.WithNotifier(notifier),
			billing.WithWebhookLogger(log),
		),
		Service:         service,
		ReadinessChecks: []httpserver.Check{httpserver.CheckFunc("store", store.Healthcheck)},
		ClientIP:        clientip.New(app.TrustedIPHeaders...),
		Logger:          log,
	}))

	srv := httpserver.NewFromConfig(httpCfg,
		httpserver.WithLogger(log),
		httpserver.WithOnReady(func(addr string) {
			log.Info("billsync is ready",
				slog.String("addr", addr),
				slog.String("store", app.StoreDriver),
				slog.Int("plans", catalog.Len()),
				slog.Any("events", dispatcher.EventTypes()),
			)
		}),
	)
	return srv.Run(ctx, router)
}

func newArchiver(ctx context.Context, log *slog.Logger) (archive.Archiver, error) {
	var cfg archive.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		log.InfoContext(ctx, "event archive disabled")
		return archive.Nop{}, nil
	}
	a, err := archive.NewS3Archiver(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up event archive: %w", err)
	}
	log.InfoContext(ctx, "archiving events", slog.String("bucket", cfg.Bucket), slog.String("prefix", cfg.Prefix))
	return a, nil
}

func newNotifier(log *slog.Logger) (notify.Notifier, error) {
	var cfg notify.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	logNotifier := notify.NewLog(log.With(logger.Component("notify")))
	if !cfg.Enabled() {
		return logNotifier, nil
	}
	pm, err := notify.NewPostmark(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up email alerts: %w", err)
	}
	return notify.Multi{logNotifier, pm}, nil
}
