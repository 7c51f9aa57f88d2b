package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/favron1/ev-ace-advisor-sub003/internal/client/llm"
	"github.com/favron1/ev-ace-advisor-sub003/internal/client/oddsapi"
	"github.com/favron1/ev-ace-advisor-sub003/internal/client/polymarket/clob"
	polymarketgamma "github.com/favron1/ev-ace-advisor-sub003/internal/client/polymarket/gamma"
	"github.com/favron1/ev-ace-advisor-sub003/internal/config"
	cronrunner "github.com/favron1/ev-ace-advisor-sub003/internal/cron"
	"github.com/favron1/ev-ace-advisor-sub003/internal/db"
	"github.com/favron1/ev-ace-advisor-sub003/internal/detector"
	"github.com/favron1/ev-ace-advisor-sub003/internal/handler"
	"github.com/favron1/ev-ace-advisor-sub003/internal/logger"
	"github.com/favron1/ev-ace-advisor-sub003/internal/matching"
	"github.com/favron1/ev-ace-advisor-sub003/internal/notify"
	gormrepository "github.com/favron1/ev-ace-advisor-sub003/internal/repository/gorm"
	"github.com/favron1/ev-ace-advisor-sub003/internal/service"

	_ "github.com/favron1/ev-ace-advisor-sub003/docs"
)

func main() {
	cfgPath := os.Getenv("DET_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("DET_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	clobHTTP := &http.Client{Timeout: cfg.Clob.Timeout}
	quoteClient := clob.NewClient(clobHTTP, cfg.Clob.BaseURL)
	gammaHTTP := &http.Client{Timeout: cfg.Gamma.Timeout}
	gammaClient := polymarketgamma.NewClient(gammaHTTP, cfg.Gamma.BaseURL)
	oddsClient := oddsapi.New(cfg.OddsAPI, logger)
	notifier := notify.New(cfg.Notify, logger)

	if !oddsClient.Configured() {
		logger.Warn("odds api key missing; detection passes will fail until configured")
	}
	var resolver matching.EventResolver
	if llmResolver := llm.NewResolver(cfg.LLM, logger); llmResolver.Configured() {
		resolver = llmResolver
	} else {
		logger.Info("llm resolver disabled; matcher runs without its last tier")
	}

	det := detector.New(cfg, store, quoteClient, oddsClient, resolver, notifier, logger)
	catalogService := &service.CatalogSyncService{
		Gamma:  gammaClient,
		Repo:   store,
		Cfg:    cfg.CatalogSync,
		Logger: logger,
	}
	streamService := &service.QuoteStreamService{
		Repo:   store,
		Cfg:    cfg.QuoteStream,
		Logger: logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(handler.RequireBearer(cfg.Server.AuthToken))
	engine.Use(notify.InjectMiddleware(notifier))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	handler.RegisterDocs(engine)

	signalHandler := &handler.SignalHandler{Repo: store}
	signalHandler.Register(engine)
	marketHandler := &handler.MarketHandler{Repo: store}
	marketHandler.Register(engine)
	pipelineHandler := &handler.PipelineHandler{Repo: store, Detector: det}
	pipelineHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	baseCtx := notify.WithNotifier(ctx, notifier)

	cronRunner := cronrunner.New(logger, baseCtx)
	if cfg.Cron.Enabled {
		_, err = cronRunner.Add("detect", cfg.Cron.Detect, func(ctx context.Context) {
			res, err := det.RunPass(ctx)
			if err != nil {
				logger.Warn("cron detection pass failed", zap.Error(err))
				return
			}
			logger.Info("cron detection pass ok",
				zap.Int("events_polled", res.EventsPolled),
				zap.Int("events_matched", res.EventsMatched),
				zap.Int("edges_found", res.EdgesFound),
				zap.Int("movement_confirmed", res.MovementConfirmed),
				zap.Int("alerts_sent", res.AlertsSent),
				zap.Int64("duration_ms", res.DurationMs))
		})
		if err != nil {
			logger.Warn("cron register detect failed", zap.Error(err))
		}

		_, err = cronRunner.Add("snapshot_prune", cfg.Cron.SnapshotPrune, func(ctx context.Context) {
			n, err := det.PruneSnapshots(ctx)
			if err != nil {
				logger.Warn("snapshot prune failed", zap.Error(err))
				return
			}
			if n > 0 {
				logger.Info("pruned sharp snapshots", zap.Int64("count", n))
			}
		})
		if err != nil {
			logger.Warn("cron register snapshot prune failed", zap.Error(err))
		}

		if cfg.CatalogSync.Enabled {
			_, err = cronRunner.Add("catalog_sync", cfg.Cron.CatalogSync, func(ctx context.Context) {
				if _, err := catalogService.Sync(ctx, service.SyncOptions{Resume: true}); err != nil {
					logger.Warn("cron catalog sync failed", zap.Error(err))
				}
			})
			if err != nil {
				logger.Warn("cron register catalog sync failed", zap.Error(err))
			}
		}

		cronRunner.Start()
		defer cronRunner.Stop()
	}

	if cfg.CatalogSync.Enabled {
		// Seed the watch set before the first scheduled pass fires.
		go func() {
			if _, err := catalogService.Sync(baseCtx, service.SyncOptions{Resume: true}); err != nil &&
				!errors.Is(err, context.Canceled) {
				logger.Warn("initial catalog sync failed", zap.Error(err))
			}
		}()
	}

	if cfg.QuoteStream.Enabled {
		go func() {
			if err := streamService.Run(baseCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("quote stream stopped", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
