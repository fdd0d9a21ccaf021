package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ecclesiahq/ecclesia/internal/config"
	gatewaydomain "github.com/ecclesiahq/ecclesia/internal/gateway/domain"
	gatewayservice "github.com/ecclesiahq/ecclesia/internal/gateway/service"
	grantservice "github.com/ecclesiahq/ecclesia/internal/grant/service"
	"github.com/ecclesiahq/ecclesia/internal/observability"
	prorataservice "github.com/ecclesiahq/ecclesia/internal/prorata/service"
	"github.com/ecclesiahq/ecclesia/internal/sweep"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Invoke(Register),
)

type Billing interface {
	CreateCustomer(ctx context.Context, req gatewayservice.CreateCustomerRequest) (*gatewaydomain.Customer, error)
	Checkout(ctx context.Context, req gatewayservice.CheckoutRequest) (*gatewayservice.CheckoutResult, error)
	CreateSubscription(ctx context.Context, req gatewayservice.CreateSubscriptionRequest) (*gatewaydomain.Subscription, error)
}

type ProRata interface {
	Calculate(ctx context.Context, req prorataservice.Request) (*prorataservice.Result, error)
}

type Grants interface {
	CheckGrant(ctx context.Context, email string) (*grantservice.CheckResult, error)
	ActivateGrant(ctx context.Context, req grantservice.ActivateRequest) (*grantservice.ActivationResult, error)
}

type Sweeper interface {
	RunOverdue(ctx context.Context) (*sweep.OverdueSummary, error)
	RunReminders(ctx context.Context) (*sweep.ReminderSummary, error)
}

type Server struct {
	cfg     config.Config
	log     *zap.Logger
	db      *gorm.DB
	metrics *observability.Metrics
	engine  *gin.Engine
	limiter *ipLimiter

	billing Billing
	prorata ProRata
	grants  Grants
	sweeper Sweeper
}

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	DB      *gorm.DB
	Metrics *observability.Metrics `optional:"true"`

	Billing *gatewayservice.Service
	ProRata *prorataservice.Service
	Grants  *grantservice.Service
	Sweeper *sweep.Service
}

func NewServer(p Params) *Server {
	s := &Server{
		cfg:     p.Config,
		log:     p.Log.Named("server"),
		db:      p.DB,
		metrics: p.Metrics,
		limiter: newIPLimiter(p.Config.RateLimit.RPS, p.Config.RateLimit.Burst),
		billing: p.Billing,
		prorata: p.ProRata,
		grants:  p.Grants,
		sweeper: p.Sweeper,
	}
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(s.log), CORS())

	r.GET("/healthz", s.Health)
	r.GET("/metrics", s.Metrics())

	api := r.Group("/", s.RateLimit())
	{
		authed := api.Group("/", s.AuthRequired())
		authed.POST("/checkout", s.Checkout)
		authed.POST("/create-customer", s.CreateCustomer)
		authed.POST("/create-subscription", s.CreateSubscription)
		authed.POST("/calculate-prorata", s.CalculateProRata)
		authed.POST("/check-free-account", s.CheckFreeAccount)

		jobs := api.Group("/", s.SchedulerAuth())
		jobs.POST("/check-overdue-payments", s.CheckOverduePayments)
		jobs.POST("/invoice-reminders", s.InvoiceReminders)
	}

	// OPTIONS requests land here and are answered by CORS.
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	return r
}

// Metrics serves the billing registry merged with the default Go registry.
func (s *Server) Metrics() gin.HandlerFunc {
	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer}
	if s.metrics != nil {
		gatherers = prometheus.Gatherers{s.metrics.Registry, prometheus.DefaultGatherer}
	}
	return gin.WrapH(promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}))
}

// Health pings the database.
// GET /healthz
func (s *Server) Health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Register binds the HTTP server to the fx lifecycle.
func Register(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	stop := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			if s.limiter != nil {
				go s.pruneVisitors(stop)
			}
			log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(stop)
			return srv.Shutdown(ctx)
		},
	})
}

func (s *Server) pruneVisitors(stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			s.limiter.prune(now)
		case <-stop:
			return
		}
	}
}
