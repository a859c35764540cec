package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-retail/cmd/retail/cli"
	"github.com/odyssey-erp/odyssey-retail/internal/app"
	"github.com/odyssey-erp/odyssey-retail/internal/auth"
	"github.com/odyssey-erp/odyssey-retail/internal/billing"
	"github.com/odyssey-erp/odyssey-retail/internal/catalog"
	"github.com/odyssey-erp/odyssey-retail/internal/inventory"
	"github.com/odyssey-erp/odyssey-retail/internal/observability"
	"github.com/odyssey-erp/odyssey-retail/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-retail/internal/platform/db"
	"github.com/odyssey-erp/odyssey-retail/internal/receipt"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
	"github.com/odyssey-erp/odyssey-retail/internal/tally"
	"github.com/odyssey-erp/odyssey-retail/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		jobsCLI := cli.NewJobsCLI(redisOpts)
		err := jobsCLI.Run(ctx, os.Args[2:], os.Stdout)
		if closeErr := jobsCLI.Close(); closeErr != nil {
			logger.Warn("jobs cli close", slog.Any("error", closeErr))
		}
		if err != nil {
			logger.Error("jobs cli", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, stop, cfg, logger, redisOpts); err != nil {
		logger.Error("retail server", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger, redisOpts asynq.RedisClientOpt) error {
	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConn, ApplicationName: "retail-api"})
	if err != nil {
		return err
	}
	defer dbpool.Close()

	if cfg.PGMigrate {
		if err := db.Migrate(ctx, dbpool, logger); err != nil {
			return err
		}
	}

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	jobsClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL, cfg.JWTIssuer)
	guard := auth.Middleware{Tokens: tokens, Logger: logger}
	authService := auth.NewService(auth.NewRepository(dbpool), tokens)

	catalogService := catalog.NewService(catalog.NewRepository(dbpool), catalog.NewCache(redisClient, cfg.CatalogCacheTTL), logger)

	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), auditLogger, metrics.CountLowStock(jobsClient), logger)

	tallyService := tally.NewService(tally.NewRepository(dbpool), cfg.Location(), logger)

	billingService := billing.NewService(billing.NewRepository(dbpool), billing.ServiceConfig{
		Location:       cfg.Location(),
		NumberAttempts: cfg.InvoiceNumberAttempts,
	}, billing.Dependencies{
		Idempotency: idempotencyStore,
		Audit:       auditLogger,
		Stock:       inventoryService,
		Metrics:     metrics,
		Logger:      logger,
	})
	receipts := receipt.NewRenderer(cfg.ShopName, cfg.ShopAddress, cfg.ShopGSTIN, cfg.Location(), cfg.ReceiptLocale)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Guard:            guard,
		AuthHandler:      auth.NewHandler(logger, authService, guard),
		CatalogHandler:   catalog.NewHandler(logger, catalogService, guard),
		InventoryHandler: inventory.NewHandler(logger, inventoryService, guard),
		BillingHandler:   billing.NewHandler(logger, billingService, receipts),
		TallyHandler:     tally.NewHandler(logger, tallyService, guard),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
		Ready: func(r *http.Request) error {
			pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := dbpool.Ping(pingCtx); err != nil {
				return err
			}
			return redisClient.Ping(pingCtx).Err()
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
