package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/fintrack/internal/auth"
	authdomain "github.com/smallbiznis/fintrack/internal/auth/domain"
	"github.com/smallbiznis/fintrack/internal/billing"
	billingdomain "github.com/smallbiznis/fintrack/internal/billing/domain"
	"github.com/smallbiznis/fintrack/internal/config"
	"github.com/smallbiznis/fintrack/internal/entitlement"
	entitlementdomain "github.com/smallbiznis/fintrack/internal/entitlement/domain"
	"github.com/smallbiznis/fintrack/internal/finance"
	financedomain "github.com/smallbiznis/fintrack/internal/finance/domain"
	"github.com/smallbiznis/fintrack/internal/observability"
	obsmiddleware "github.com/smallbiznis/fintrack/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/fintrack/internal/observability/metrics"
	obstracing "github.com/smallbiznis/fintrack/internal/observability/tracing"
	"github.com/smallbiznis/fintrack/internal/providers"
	"github.com/smallbiznis/fintrack/internal/ratelimit"
	"github.com/smallbiznis/fintrack/internal/report"
	reportdomain "github.com/smallbiznis/fintrack/internal/report/domain"
	"github.com/smallbiznis/fintrack/internal/user"
	userdomain "github.com/smallbiznis/fintrack/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	user.Module,
	auth.Module,
	entitlement.Module,
	finance.Module,
	billing.Module,
	providers.Module,
	report.Module,
	ratelimit.Module,
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	exposeDetail := !cfg.IsProduction()

	r := gin.New()
	r.Use(RecoveryMiddleware(exposeDetail))
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware(exposeDetail))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
	if httpMetrics != nil {
		r.GET("/metrics", gin.WrapH(httpMetrics.Handler()))
	}

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", srv.Addr))
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
	engine         *gin.Engine
	cfg            config.Config
	authsvc        authdomain.Service
	entitlementSvc entitlementdomain.Service
	financeSvc     financedomain.Service
	billingSvc     billingdomain.Service
	reportSvc      reportdomain.Service
	limiters       *ratelimit.Limiters
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Authsvc        authdomain.Service
	EntitlementSvc entitlementdomain.Service
	FinanceSvc     financedomain.Service
	BillingSvc     billingdomain.Service
	ReportSvc      reportdomain.Service
	Limiters       *ratelimit.Limiters `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		authsvc:        p.Authsvc,
		entitlementSvc: p.EntitlementSvc,
		financeSvc:     p.FinanceSvc,
		billingSvc:     p.BillingSvc,
		reportSvc:      p.ReportSvc,
		limiters:       p.Limiters,
		obsMetrics:     p.ObsMetrics,
	}

	api := svc.engine.Group("/api", svc.RateLimit(svc.generalLimiter()))
	svc.registerAuthRoutes(api)
	svc.registerBillingRoutes(api)
	svc.registerAPIRoutes(api)
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) generalLimiter() *ratelimit.Limiter {
	if s.limiters == nil {
		return nil
	}
	return s.limiters.General
}

func (s *Server) authLimiter() *ratelimit.Limiter {
	if s.limiters == nil {
		return nil
	}
	return s.limiters.Auth
}

func (s *Server) registerAuthRoutes(api *gin.RouterGroup) {
	auth := api.Group("/auth", s.RateLimit(s.authLimiter()))
	auth.POST("/register", s.Register)
	auth.POST("/login", s.Login)
	auth.POST("/google", s.GoogleSignIn)
	auth.GET("/verify-email", s.VerifyEmail)
	auth.POST("/verify-email", s.VerifyEmail)
	auth.POST("/resend-verification", s.ResendVerification)
	auth.POST("/forgot-password", s.ForgotPassword)
	auth.POST("/reset-password", s.ResetPassword)
	auth.GET("/me", s.AuthRequired(), s.Me)
	auth.POST("/complete-profile", s.AuthRequired(), s.CompleteProfile)
}

func (s *Server) registerBillingRoutes(api *gin.RouterGroup) {
	stripe := api.Group("/stripe")
	stripe.POST("/webhook", s.StripeWebhook)
	stripe.POST("/create-checkout-session", s.AuthRequired(), s.CreateCheckoutSession)
	stripe.POST("/create-portal-session", s.AuthRequired(), s.CreatePortalSession)
}

func (s *Server) registerAPIRoutes(api *gin.RouterGroup) {
	protected := api.Group("", s.AuthRequired())

	protected.GET("/subscription", s.Subscription)

	// -------- Accounts & cards --------
	registerResource(protected, "/bank-accounts", s.financeSvc.BankAccounts(), resourceGates{
		Create: []gin.HandlerFunc{s.RequireLimit(entitlementdomain.ResourceBankAccounts)},
	})
	registerResource(protected, "/credit-cards", s.financeSvc.CreditCards(), resourceGates{
		Create: []gin.HandlerFunc{s.RequireLimit(entitlementdomain.ResourceCreditCards)},
	})
	registerResource(protected, "/debit-cards", s.financeSvc.DebitCards(), resourceGates{
		Create: []gin.HandlerFunc{s.RequireLimit(entitlementdomain.ResourceDebitCards)},
	})

	// -------- Transactions --------
	registerResource(protected, "/expenses", s.financeSvc.Expenses(), resourceGates{
		Create: []gin.HandlerFunc{s.RequireLimit(entitlementdomain.ResourceExpensesPerMonth)},
	})
	registerResource(protected, "/income", s.financeSvc.Income(), resourceGates{
		Create: []gin.HandlerFunc{s.RequireLimit(entitlementdomain.ResourceIncomePerMonth)},
	})
	recurring := s.RequireFeature(entitlementdomain.FeatureRecurringTransactions)
	registerResource(protected, "/recurring-transactions", s.financeSvc.Recurring(), resourceGates{
		Read:   []gin.HandlerFunc{recurring},
		Write:  []gin.HandlerFunc{recurring},
		Create: []gin.HandlerFunc{s.RequireLimit(entitlementdomain.ResourceRecurringTransactions)},
	})

	// -------- Savings & investments --------
	registerResource(protected, "/savings", s.financeSvc.Savings(), resourceGates{})
	protected.POST("/savings/:id/transactions", s.ApplySavingsTransaction)
	registerResource(protected, "/stocks", s.financeSvc.Stocks(), resourceGates{
		Read:  []gin.HandlerFunc{s.RequireFeature(entitlementdomain.FeatureStocks)},
		Write: []gin.HandlerFunc{s.RequireTier(userdomain.TierPremium)},
	})

	// -------- Debt --------
	registerResource(protected, "/installments", s.financeSvc.Installments(), resourceGates{})
	registerResource(protected, "/loans", s.financeSvc.Loans(), resourceGates{})

	// -------- Planning --------
	registerResource(protected, "/financial-goals", s.financeSvc.Goals(), resourceGates{
		Create: []gin.HandlerFunc{s.RequireLimit(entitlementdomain.ResourceGoals)},
	})
	registerResource(protected, "/bill-reminders", s.financeSvc.Bills(), resourceGates{
		Create: []gin.HandlerFunc{s.RequireLimit(entitlementdomain.ResourceBills)},
	})
	budget := s.RequireFeature(entitlementdomain.FeatureBudget)
	registerResource(protected, "/budget", s.financeSvc.Budgets(), resourceGates{
		Read:  []gin.HandlerFunc{budget},
		Write: []gin.HandlerFunc{budget},
	})

	// -------- Reports --------
	protected.GET("/dashboard", s.Dashboard)
	protected.GET("/export/all", s.ExportAll)
	protected.GET("/export/csv", s.RequireFeature(entitlementdomain.FeatureExportCSV), s.ExportCSV)
	protected.GET("/export/pdf", s.RequireFeature(entitlementdomain.FeatureExportPDF), s.ExportPDF)
}
