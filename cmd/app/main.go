// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"telegram-premium-delivery/internal/config"
	"telegram-premium-delivery/internal/domain/model"
	"telegram-premium-delivery/internal/domain/ports/adapter"
	"telegram-premium-delivery/internal/domain/ports/repository"
	aiAdapters "telegram-premium-delivery/internal/infra/adapters/ai"
	tele "telegram-premium-delivery/internal/infra/adapters/telegram"
	"telegram-premium-delivery/internal/infra/api"
	pg "telegram-premium-delivery/internal/infra/db/postgres"
	"telegram-premium-delivery/internal/infra/db/postgres/migrations"
	"telegram-premium-delivery/internal/infra/i18n"
	"telegram-premium-delivery/internal/infra/logging"
	"telegram-premium-delivery/internal/infra/metrics"
	"telegram-premium-delivery/internal/infra/payment"
	red "telegram-premium-delivery/internal/infra/redis"
	"telegram-premium-delivery/internal/infra/sched"
	"telegram-premium-delivery/internal/infra/worker"
	"telegram-premium-delivery/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no bot token required)")
	migrate := flag.Bool("migrate", false, "apply pending migrations before start")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	if *migrate {
		if err := runMigrations(ctx, cfg.Database.URL); err != nil {
			logger.Fatal().Err(err).Msg("migrations")
		}
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	go reportPoolStats(ctx, pool)

	eventRepo := pg.NewEventRepo(pool)
	entRepo := pg.NewEntitlementRepo(pool)
	deliveryRepo := pg.NewDeliveryRepo(pool)
	var packRepo repository.ContentPackRepository = pg.NewContentPackRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Redis (optional) ----
	var (
		locker  adapter.Locker
		limiter adapter.Limiter
	)
	if strings.TrimSpace(cfg.Redis.URL) != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		locker = red.NewLocker(redisClient)
		limiter = red.NewRateLimiter(redisClient)
		packRepo = pg.NewContentPackRepoCacheDecorator(packRepo, redisClient, 10*time.Minute, logger)
	} else {
		logger.Warn().Msg("redis.url not set; delivery locks and ops rate limiting are disabled")
	}

	// ---- Chat transport ----
	var transport adapter.ChatTransport
	if cfg.Bot.Token == "" {
		logger.Warn().Msg("bot.token not set; messages are logged instead of sent")
		transport = tele.NewNoopTransport(logger)
	} else {
		transport = tele.NewTransport(cfg.Bot.HTTPTimeout)
	}

	// ---- Background workers ----
	workers := worker.NewPool(cfg.Workers.Count, cfg.Workers.Count*16, logger)
	workers.Start(ctx)
	defer workers.Stop()

	ops := usecase.NewOpsNotifier(transport, limiter, workers, usecase.OpsOptions{
		BotToken:  cfg.Bot.OpsToken,
		ChatID:    cfg.Bot.OpsChatID,
		PerMinute: cfg.Bot.OpsPerMin,
		Timeout:   cfg.Bot.HTTPTimeout,
	}, logger)

	// ---- Catalog ----
	catalog, err := buildCatalog(cfg.Catalog, packRepo)
	if err != nil {
		logger.Fatal().Err(err).Msg("catalog")
	}

	tr, err := i18n.Load(cfg.Delivery.Language)
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}
	intro := cfg.Delivery.IntroTemplate
	if strings.TrimSpace(intro) == "" {
		intro = tr.T("delivery.intro")
	}

	// ---- Use cases ----
	durations := map[model.ProductType]time.Duration{}
	if cfg.Catalog.SubscriptionDays > 0 {
		durations[model.ProductSubscription] = time.Duration(cfg.Catalog.SubscriptionDays) * 24 * time.Hour
	}
	ledger := usecase.NewEntitlementUseCase(entRepo, durations, logger)
	events := usecase.NewEventStore(eventRepo, logger)
	delivery := usecase.NewDeliveryUseCase(catalog, deliveryRepo, transport, locker, ops, usecase.DeliveryOptions{
		BotToken:      cfg.Bot.Token,
		InitialBatch:  cfg.Delivery.InitialBatch,
		LockTTL:       cfg.Delivery.LockTTL,
		StoreTimeout:  cfg.Timeouts.Store,
		IntroTemplate: intro,
		FallbackTitle: tr.T("delivery.fallback_title"),
	}, logger)
	router := usecase.NewPurchaseRouter(payment.NewHMACVerifier(cfg.Payment.Secret), events, ledger, delivery, catalog, ops,
		usecase.RouterOptions{Source: cfg.Payment.Provider, StoreTimeout: cfg.Timeouts.Store, Dev: cfg.Runtime.Dev}, logger)

	var packs usecase.PackUseCase
	if writer, renderer := buildGenerators(ctx, cfg.Generation, logger); writer != nil {
		packs = usecase.NewPackUseCase(packRepo, txManager, writer, renderer, workers, ops, usecase.PackOptions{
			DefaultCount: cfg.Generation.DefaultCount,
			Timeout:      cfg.Generation.Timeout,
		}, logger)
	}

	// ---- Redelivery sweeper ----
	if cfg.Delivery.RetryInterval > 0 {
		rw := sched.NewRedeliveryWorker(cfg.Delivery.RetryInterval, cfg.Delivery.MaxAttempts, 2*cfg.Delivery.LockTTL, deliveryRepo, delivery, logger)
		go func() { _ = rw.Run(ctx) }()
	}

	// ---- HTTP ----
	auth := api.NewAuthManager(cfg.Admin.APIKey, cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	if !auth.Enabled() {
		logger.Warn().Msg("admin.api_key not set; admin API is disabled")
	}
	srv := api.NewServer(router, ledger, delivery, packs, auth, api.Options{
		WebhookPath:     cfg.Server.WebhookPath,
		SignatureHeader: cfg.Payment.SignatureHeader,
		RequestTimeout:  cfg.Server.RequestTimeout,
	}, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("webhook", cfg.Server.WebhookPath).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}

func runMigrations(ctx context.Context, dsn string) error {
	db, err := migrations.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return migrations.Up(ctx, db)
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s := pool.Stat()
			metrics.SetDBPoolStats(s.TotalConns(), s.IdleConns(), s.AcquiredConns())
		}
	}
}

func buildCatalog(c config.CatalogConfig, packs repository.ContentPackRepository) (*usecase.ProductCatalog, error) {
	products := map[string]model.ProductType{}
	for id, p := range c.Products {
		pt, err := model.ParseProductType(p.Type)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", id, err)
		}
		products[id] = pt
	}
	defaultType, err := model.ParseProductType(c.DefaultProductType)
	if err != nil {
		return nil, fmt.Errorf("default_product_type: %w", err)
	}

	names := map[model.ProductType]string{
		model.ProductSubscription: usecase.SourceLatestPack,
		model.ProductOneTimePack:  usecase.SourceLatestPack,
		model.ProductToolAccess:   usecase.SourceNone,
	}
	for k, v := range c.Sources {
		pt, err := model.ParseProductType(k)
		if err != nil {
			return nil, fmt.Errorf("sources.%s: %w", k, err)
		}
		names[pt] = strings.TrimSpace(v)
	}

	sources := map[model.ProductType]usecase.ContentSource{}
	for pt, name := range names {
		switch name {
		case usecase.SourceLatestPack:
			sources[pt] = usecase.NewLatestPackSource(packs)
		case usecase.SourceStaticItem:
			if c.StaticItem.URL == "" && c.StaticItem.Caption == "" {
				return nil, fmt.Errorf("sources.%s: static_item is not configured", pt)
			}
			kind := model.ContentKindPhoto
			if strings.EqualFold(c.StaticItem.Kind, string(model.ContentKindText)) {
				kind = model.ContentKindText
			}
			id := c.StaticItem.ID
			if id == "" {
				id = "static"
			}
			sources[pt] = usecase.NewStaticItemSource(model.ContentItem{
				ID:      id,
				Kind:    kind,
				URL:     c.StaticItem.URL,
				Caption: c.StaticItem.Caption,
			}, c.StaticItem.Caption)
		case usecase.SourceNone, "":
			sources[pt] = usecase.NewNoneSource()
		default:
			return nil, fmt.Errorf("sources.%s: unknown source %q", pt, name)
		}
	}
	return usecase.NewProductCatalog(products, defaultType, sources), nil
}

// buildGenerators returns nil interfaces when generation is not configured.
func buildGenerators(ctx context.Context, c config.GenerationConfig, logger *zerolog.Logger) (adapter.SceneWriter, adapter.ImageRenderer) {
	if c.OpenAIKey == "" {
		logger.Warn().Msg("generation.openai_key not set; pack generation is disabled")
		return nil, nil
	}
	gen, err := aiAdapters.NewOpenAIGenerator(c.OpenAIKey, aiAdapters.OpenAIOptions{
		TextModel:  c.TextModel,
		ImageModel: c.ImageModel,
		Character:  c.Character,
		MaxRetries: 2,
	})
	if err != nil {
		logger.Error().Err(err).Msg("openai generator")
		return nil, nil
	}
	if strings.EqualFold(c.Writer, "gemini") {
		gw, err := aiAdapters.NewGeminiWriter(ctx, c.GeminiKey, c.GeminiURL, c.TextModel)
		if err != nil {
			logger.Error().Err(err).Msg("gemini writer; falling back to openai")
			return gen, gen
		}
		return gw, gen
	}
	return gen, gen
}
