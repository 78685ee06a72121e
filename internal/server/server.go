package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/payitonchain/paygate/internal/config"
	intentdomain "github.com/payitonchain/paygate/internal/intent/domain"
	merchantdomain "github.com/payitonchain/paygate/internal/merchant/domain"
	"github.com/payitonchain/paygate/internal/auth"
	"github.com/payitonchain/paygate/internal/metrics"
	"github.com/payitonchain/paygate/internal/nonce"
	"github.com/payitonchain/paygate/internal/notify"
	"github.com/payitonchain/paygate/internal/queue"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(
		func(q queue.TransferQueue) TransferSink { return q },
		func(d *queue.Deduper) DedupStore { return d },
	),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// TransferSink hands validated transfer events to the matcher queue.
type TransferSink interface {
	Enqueue(ctx context.Context, payload []byte) error
}

// DedupStore remembers transfer hashes so the ingest boundary stays
// idempotent across indexer restarts. Forget undoes a FirstSeen mark
// whose guarded enqueue never happened.
type DedupStore interface {
	FirstSeen(ctx context.Context, hash string) (bool, error)
	Forget(ctx context.Context, hash string) error
}

func NewEngine(log *zap.Logger, registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log.Named("http")))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(log *zap.Logger, registry *prometheus.Registry) *gin.Engine {
	return NewEngine(log, registry)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine    *gin.Engine
	cfg       config.Config
	log       *zap.Logger
	nonces    *nonce.Service
	merchants merchantdomain.Service
	intents   intentdomain.Service
	tokens    *auth.TokenService
	transfers TransferSink
	dedup     DedupStore
	hub       *notify.Hub
	metrics   *metrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Log       *zap.Logger
	Nonces    *nonce.Service
	Merchants merchantdomain.Service
	Intents   intentdomain.Service
	Tokens    *auth.TokenService
	Transfers TransferSink
	Dedup     DedupStore
	Hub       *notify.Hub
	Metrics   *metrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		log:       p.Log.Named("server"),
		nonces:    p.Nonces,
		merchants: p.Merchants,
		intents:   p.Intents,
		tokens:    p.Tokens,
		transfers: p.Transfers,
		dedup:     p.Dedup,
		hub:       p.Hub,
		metrics:   p.Metrics,
	}

	s.registerRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	r := s.engine

	r.GET("/nonce", s.GetNonce)

	merchants := r.Group("/merchants")
	{
		merchants.POST("/signup", s.MerchantSignup)
		merchants.POST("/login", s.MerchantLogin)
		merchants.PUT("/webhook", s.AuthenticateMerchant(), s.UpdateMerchantWebhook)
	}

	client := r.Group("/client")
	{
		client.POST("/login", s.ClientLogin)
		client.GET("/payments/:address", s.AuthenticateClient(), s.ListClientPayments)
		client.GET("/payments/updates/:address", s.AuthenticateClient(), s.StreamClientPayments)
	}

	// Intent mutations authenticate with a per-request signed message
	// instead of a session: each request proves key ownership on its own.
	intents := r.Group("/payment-intents")
	{
		intents.POST("", s.CreateIntent)
		intents.POST("/:id/cancel", s.CancelIntent)
		intents.GET("/:id", s.AuthenticateClient(), s.GetIntent)
	}

	r.GET("/payments", s.AuthenticateMerchant(), s.ListMerchantPayments)

	// Ingest boundary for the chain indexer; not reachable through the
	// public gateway.
	r.POST("/internal/transfers", s.IngestTransfer)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
