package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/comunidadednb/billing-service/internal/api/middleware"
	"github.com/comunidadednb/billing-service/internal/auth"
	"github.com/comunidadednb/billing-service/internal/config"
	"github.com/comunidadednb/billing-service/internal/domain/billing"
	"github.com/comunidadednb/billing-service/internal/domain/plan"
	"github.com/comunidadednb/billing-service/internal/poller"
	"github.com/comunidadednb/billing-service/internal/usecase/planchange"
	"github.com/comunidadednb/billing-service/internal/usecase/reconcile"
)

// StripeEventParser verifies an inbound card-billing webhook and translates
// it to a provider-neutral event.
type StripeEventParser interface {
	ParseEvent(ctx context.Context, payload []byte, signature string) (*billing.ProviderEvent, error)
}

type Router struct {
	engine      *gin.Engine
	server      *http.Server
	cfg         *config.Config
	changeUC    *planchange.UseCase
	reconcileUC *reconcile.UseCase
	pixUC       *reconcile.PixUseCase
	pix         billing.InstantTransfer
	watcher     *poller.Poller
	events      StripeEventParser
	plans       plan.Repository
	ledger      reconcile.Notifier
	authMw      *auth.Middleware
	pixSecret   string
	logger      *zap.Logger
}

func NewRouter(
	cfg *config.Config,
	changeUC *planchange.UseCase,
	reconcileUC *reconcile.UseCase,
	pixUC *reconcile.PixUseCase,
	pix billing.InstantTransfer,
	events StripeEventParser,
	plans plan.Repository,
	ledger reconcile.Notifier,
	authMw *auth.Middleware,
	pixSecret string,
	logger *zap.Logger,
) *Router {
	// Disable GIN default logger
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())
	r.Use(middleware.Logger(logger))

	api := &Router{
		engine:      r,
		cfg:         cfg,
		changeUC:    changeUC,
		reconcileUC: reconcileUC,
		pixUC:       pixUC,
		pix:         pix,
		watcher:     poller.New(pix, logger),
		events:      events,
		plans:       plans,
		ledger:      ledger,
		authMw:      authMw,
		pixSecret:   pixSecret,
		logger:      logger,
	}

	api.RegisterRoutes()
	return api
}

func (r *Router) RegisterRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Prometheus metrics endpoint
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The pricing page reads this without a session.
	r.engine.GET("/api/plans", r.ListPlans)

	// Provider callbacks authenticate by signature, not bearer token.
	webhooks := r.engine.Group("/webhooks")
	{
		webhooks.POST("/stripe", r.HandleStripeWebhook)
		webhooks.POST("/pix", r.HandlePixWebhook)
	}

	api := r.engine.Group("/api")
	api.Use(r.authMw.Handler())
	{
		sub := api.Group("/subscription")
		{
			sub.POST("/change-plan", r.ChangePlan)
			sub.GET("/change-plan/preview", r.PreviewChange)
			sub.GET("/status", r.SubscriptionStatus)
		}

		api.GET("/payments/pix/:id/status", r.PixChargeStatus)

		// Service tokens bypass the admin check; user tokens must hold
		// the admin role.
		api.POST("/emails/send", r.authMw.RequireAdmin(), r.SendEmail)
	}
}

func (r *Router) Run() error {
	r.server = &http.Server{
		Addr:         ":" + r.cfg.Port,
		Handler:      r.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return r.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (r *Router) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}
