// Package server exposes the HTTP surface: manual collection generation,
// job triggers, cycle inspection and reassignment stats.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	billingcycledomain "github.com/smallbiznis/cobro/internal/billingcycle/domain"
	collectiondomain "github.com/smallbiznis/cobro/internal/collection/domain"
	"github.com/smallbiznis/cobro/internal/config"
	dispatchdomain "github.com/smallbiznis/cobro/internal/dispatch/domain"
	"github.com/smallbiznis/cobro/internal/scheduler"
	subscriptiondomain "github.com/smallbiznis/cobro/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func requestLogMiddleware(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
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
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	genID           *snowflake.Node
	cycleSvc        billingcycledomain.Service
	collectionSvc   collectiondomain.Service
	dispatchSvc     dispatchdomain.Service
	subscriptionSvc subscriptiondomain.Service
	scheduler       *scheduler.Scheduler
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	GenID           *snowflake.Node
	CycleSvc        billingcycledomain.Service
	CollectionSvc   collectiondomain.Service
	DispatchSvc     dispatchdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	Scheduler       *scheduler.Scheduler
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		genID:           p.GenID,
		cycleSvc:        p.CycleSvc,
		collectionSvc:   p.CollectionSvc,
		dispatchSvc:     p.DispatchSvc,
		subscriptionSvc: p.SubscriptionSvc,
		scheduler:       p.Scheduler,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/jobs/:name/run", s.RunJob)

	v1.POST("/collection-orders", s.CreateCollectionOrder)
	v1.GET("/collection-orders", s.ListCollectionOrders)
	v1.GET("/collection-orders/:id", s.GetCollectionOrder)
	v1.DELETE("/collection-orders/:id", s.CancelCollectionOrder)
	v1.POST("/collection-orders/:id/cycles", s.AttachCollectionCycles)

	v1.GET("/route-sheets/collections", s.CollectionRouteSheet)
	v1.GET("/reassignments/stats", s.ReassignmentStats)
	v1.POST("/route-sheet-details/:id/status", s.MarkDeliveryStatus)

	v1.GET("/subscriptions/:id/cycles", s.ListSubscriptionCycles)
	v1.POST("/subscriptions/:id/cycles/verify", s.VerifyCycleSequence)
	v1.POST("/subscriptions/:id/cancel", s.CancelSubscription)
	v1.POST("/subscriptions/:id/deliveries", s.ApplyDelivery)

	v1.POST("/quota/validate", s.ValidateQuota)
}
