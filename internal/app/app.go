package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/fx"
	"go.uber.org/zap"

	abacateAdapter "github.com/comunidadednb/billing-service/internal/adapter/billing/abacate"
	stripeAdapter "github.com/comunidadednb/billing-service/internal/adapter/billing/stripe"
	"github.com/comunidadednb/billing-service/internal/adapter/repository/postgres"
	"github.com/comunidadednb/billing-service/internal/api"
	"github.com/comunidadednb/billing-service/internal/auth"
	"github.com/comunidadednb/billing-service/internal/config"
	"github.com/comunidadednb/billing-service/internal/domain/billing"
	"github.com/comunidadednb/billing-service/internal/domain/payment"
	"github.com/comunidadednb/billing-service/internal/domain/plan"
	"github.com/comunidadednb/billing-service/internal/domain/subscriber"
	"github.com/comunidadednb/billing-service/internal/locker"
	"github.com/comunidadednb/billing-service/internal/mailer"
	"github.com/comunidadednb/billing-service/internal/notify"
	"github.com/comunidadednb/billing-service/internal/usecase/planchange"
	"github.com/comunidadednb/billing-service/internal/usecase/reconcile"
	"github.com/comunidadednb/billing-service/pkg/db"
	zaplog "github.com/comunidadednb/billing-service/pkg/log"
	"github.com/comunidadednb/billing-service/pkg/pixclient"
	"github.com/comunidadednb/billing-service/pkg/snowflake"
	"github.com/comunidadednb/billing-service/sql/migrations"
)

// RunServer starts the HTTP server and background workers.
func RunServer() {
	app := fx.New(
		fx.Provide(
			// Config
			config.Load,

			// Infrastructure (Adapters)
			pixclient.NewFromEnv,

			// Domain Adapters (Bind Interfaces)
			fx.Annotate(
				stripeAdapter.NewAdapter,
				fx.As(new(billing.CardBilling)),
				fx.As(new(api.StripeEventParser)),
			),
			fx.Annotate(
				abacateAdapter.NewAdapter,
				fx.As(new(billing.InstantTransfer)),
			),
			fx.Annotate(
				postgres.NewSubscriberRepository,
				fx.As(new(subscriber.Repository)),
			),
			fx.Annotate(
				postgres.NewPaymentRepository,
				fx.As(new(payment.Repository)),
			),
			fx.Annotate(
				postgres.NewPlanRepository,
				fx.As(new(plan.Repository)),
			),
			fx.Annotate(
				notify.NewLedger,
				fx.As(new(reconcile.Notifier)),
			),
			fx.Annotate(
				mailer.NewResendMailer,
				fx.As(new(mailer.Mailer)),
			),
			locker.NewLocker,

			// Use Cases
			planchange.NewUseCase,
			reconcile.NewUseCase,
			reconcile.NewPixUseCase,

			// Background workers
			notify.NewDispatcher,

			// Auth
			auth.NewMiddleware,

			// API
			newRouter,
		),
		db.Module,        // Database Module
		snowflake.Module, // Snowflake ID Module
		zaplog.Module,    // Logger Module
		fx.Invoke(registerHooks),
	)

	app.Run()
}

// newRouter exists to feed the webhook shared secret in from the pix
// client's environment-driven config.
func newRouter(
	cfg *config.Config,
	changeUC *planchange.UseCase,
	reconcileUC *reconcile.UseCase,
	pixUC *reconcile.PixUseCase,
	pix billing.InstantTransfer,
	events api.StripeEventParser,
	plans plan.Repository,
	ledger reconcile.Notifier,
	authMw *auth.Middleware,
	pixClient *pixclient.Client,
	logger *zap.Logger,
) *api.Router {
	return api.NewRouter(cfg, changeUC, reconcileUC, pixUC, pix, events, plans,
		ledger, authMw, pixClient.WebhookSecret(), logger)
}

// RunMigrations executes database migrations (up or down).
func RunMigrations(command string) error {
	if command == "" {
		command = "up"
	}

	cfg := config.Load()
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting database migration...", zap.String("command", command))

	dbURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBSSLMode,
	)

	d, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load migration files: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, dbURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	switch command {
	case "up":
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("migration up failed: %w", err)
		}
		logger.Info("Migration up applied successfully")
	case "down":
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("migration down failed: %w", err)
		}
		logger.Info("Migration down applied successfully")
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}

	return nil
}

func registerHooks(lc fx.Lifecycle, router *api.Router, dispatcher *notify.Dispatcher, cfg *config.Config, logger *zap.Logger) {
	var dispatcherCancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting HTTP server", zap.String("port", cfg.Port))

			dispatcherCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			dispatcherCancel = cancel
			go dispatcher.Run(dispatcherCtx)

			go func() {
				if err := router.Run(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("Server failed to start", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server gracefully...")

			if dispatcherCancel != nil {
				dispatcherCancel()
			}

			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			if err := router.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server forced to shutdown", zap.Error(err))
				return err
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		},
	})
}
