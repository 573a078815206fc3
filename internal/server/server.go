// Package server exposes the billing core over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/docuflow/docuflow/internal/billing"
	billingdomain "github.com/docuflow/docuflow/internal/billing/domain"
	"github.com/docuflow/docuflow/internal/config"
	obslogger "github.com/docuflow/docuflow/internal/observability/logger"
	obsmetrics "github.com/docuflow/docuflow/internal/observability/metrics"
	"github.com/docuflow/docuflow/internal/organization"
	"github.com/docuflow/docuflow/internal/plan"
	"github.com/docuflow/docuflow/internal/quota"
	quotadomain "github.com/docuflow/docuflow/internal/quota/domain"
	"github.com/docuflow/docuflow/internal/ratelimit"
)

var Module = fx.Module("http.server",
	organization.Module,
	plan.Module,
	quota.Module,
	billing.Module,
	ratelimit.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, m *obsmetrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log, m))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, m *obsmetrics.Metrics) *gin.Engine {
	return NewEngine(log, m)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	quotaSvc   quotadomain.Service
	billingSvc billingdomain.Service
	catalog    *plan.Catalog
	limiter    *ratelimit.Limiter
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	QuotaSvc   quotadomain.Service
	BillingSvc billingdomain.Service
	Catalog    *plan.Catalog
	Limiter    *ratelimit.Limiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		quotaSvc:   p.QuotaSvc,
		billingSvc: p.BillingSvc,
		catalog:    p.Catalog,
		limiter:    p.Limiter,
	}

	svc.registerBillingRoutes()
	svc.registerUsageRoutes()

	return svc
}

func (s *Server) registerBillingRoutes() {
	g := s.engine.Group("/v1/billing", s.OrgContext())

	g.GET("/summary", s.GetBillingSummary)
	g.GET("/preview/upgrade", s.GetUpgradePreview)
	g.GET("/preview/downgrade", s.GetDowngradePreview)
	g.GET("/invoices", s.ListInvoices)
	g.GET("/payment-method", s.GetPaymentMethod)

	mutate := g.Group("", s.BillingRateLimit())
	mutate.POST("/checkout", s.CreateCheckout)
	mutate.POST("/upgrade", s.TransitionLock(s.Upgrade))
	mutate.POST("/downgrade", s.TransitionLock(s.ScheduleDowngrade))
	mutate.POST("/cancel", s.TransitionLock(s.Cancel))
	mutate.POST("/reactivate", s.TransitionLock(s.Reactivate))
	mutate.POST("/portal", s.CreatePortalSession)
}

func (s *Server) registerUsageRoutes() {
	g := s.engine.Group("/v1/usage", s.OrgContext(), s.UsageRateLimit())

	g.POST("/assert", s.AssertUsage)
	g.POST("/record", s.RecordUsage)
}
