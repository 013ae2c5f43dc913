package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	analysisdomain "github.com/snowdenHM/bill/internal/analysis/domain"
	billdomain "github.com/snowdenHM/bill/internal/bill/domain"
	"github.com/snowdenHM/bill/internal/config"
	ledgerdomain "github.com/snowdenHM/bill/internal/ledger/domain"
	"github.com/snowdenHM/bill/internal/observability/logger"
	"github.com/snowdenHM/bill/internal/storage"
	syncerdomain "github.com/snowdenHM/bill/internal/syncer/domain"
	verificationdomain "github.com/snowdenHM/bill/internal/verification/domain"
	zohodomain "github.com/snowdenHM/bill/internal/zoho/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Params defines the dependencies for the HTTP server.
type Params struct {
	fx.In

	Config       config.Config
	Log          *zap.Logger
	DB           *gorm.DB
	Store        *storage.FileStore
	Intake       billdomain.IntakeService
	Analysis     analysisdomain.Service
	Verification verificationdomain.Service
	Syncer       syncerdomain.Service
	Ledgers      ledgerdomain.Service
	Zoho         zohodomain.Service
}

// Server holds the handler dependencies. Routes are registered separately
// so tests can mount a subset.
type Server struct {
	cfg          config.Config
	log          *zap.Logger
	db           *gorm.DB
	store        *storage.FileStore
	intake       billdomain.IntakeService
	analysis     analysisdomain.Service
	verification verificationdomain.Service
	syncer       syncerdomain.Service
	ledgers      ledgerdomain.Service
	zoho         zohodomain.Service
}

// NewServer creates the API server.
func NewServer(p Params) *Server {
	return &Server{
		cfg:          p.Config,
		log:          p.Log.Named("server"),
		db:           p.DB,
		store:        p.Store,
		intake:       p.Intake,
		analysis:     p.Analysis,
		verification: p.Verification,
		syncer:       p.Syncer,
		ledgers:      p.Ledgers,
		zoho:         p.Zoho,
	}
}

// NewEngine builds the gin engine with the shared middleware chain.
func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		Log:       log,
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return engine
}

// RunHTTP starts the HTTP listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
