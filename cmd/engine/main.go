package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"seeds/internal/anticipation"
	"seeds/internal/auction"
	"seeds/internal/config"
	cronrunner "seeds/internal/cron"
	"seeds/internal/db"
	"seeds/internal/handler"
	"seeds/internal/indicator"
	"seeds/internal/ledger"
	"seeds/internal/logger"
	gormrepository "seeds/internal/repository/gorm"
	"seeds/internal/resolution"
	"seeds/internal/settlement"
)

func main() {
	cfgPath := os.Getenv("SEEDS_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("SEEDS_ENV_ONLY"); envOnlyRaw != "" {
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
	seedsLedger := ledger.New(store, cfg.Rules, logger)
	aggregator := &indicator.Aggregator{
		Repo:   store,
		Rules:  cfg.Rules,
		Logger: logger,
	}
	settler := &settlement.Settler{
		Repo:    store,
		Ledger:  seedsLedger,
		Rules:   cfg.Rules,
		Logger:  logger,
		Workers: cfg.Settlement.Workers,
	}
	resolver := &resolution.Resolver{
		Repo:       store,
		Aggregator: aggregator,
		Settler:    settler,
		Rules:      cfg.Rules,
		Logger:     logger,
	}
	anticipationSvc := &anticipation.Service{
		Repo:   store,
		Ledger: seedsLedger,
		Logger: logger,
	}
	argumentAuction := &auction.Auction{
		Repo:       store,
		Ledger:     seedsLedger,
		Rules:      cfg.Rules,
		Logger:     logger,
		MaxRetries: cfg.Auction.MaxRetries,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	rulesHandler := &handler.RulesHandler{Rules: cfg.Rules}
	rulesHandler.Register(engine)
	userHandler := &handler.UserHandler{
		Repo:   store,
		Ledger: seedsLedger,
		Rules:  cfg.Rules,
		Logger: logger,
	}
	userHandler.Register(engine)
	decisionHandler := &handler.DecisionHandler{
		Repo:     store,
		Resolver: resolver,
		Auction:  argumentAuction,
		Logger:   logger,
	}
	decisionHandler.Register(engine)
	indicatorHandler := &handler.IndicatorHandler{
		Repo:       store,
		Aggregator: aggregator,
		Logger:     logger,
	}
	indicatorHandler.Register(engine)
	anticipationHandler := &handler.AnticipationHandler{
		Repo:    store,
		Service: anticipationSvc,
	}
	anticipationHandler.Register(engine)
	argumentHandler := &handler.ArgumentHandler{
		Repo:    store,
		Auction: argumentAuction,
	}
	argumentHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx)
		_, err = cronRunner.Add(cfg.Cron.DueScan, func(ctx context.Context) {
			resolved := resolver.ResolveDue(ctx, time.Now().UTC(), cfg.Resolver.DueScanLimit)
			if resolved > 0 {
				logger.Info("due decision sweep resolved decisions", zap.Int("count", resolved))
			}
		})
		if err != nil {
			logger.Warn("cron register due scan failed", zap.Error(err))
		}
		_, err = cronRunner.Add(cfg.Cron.LedgerAudit, func(ctx context.Context) {
			report, err := seedsLedger.Audit(ctx)
			if err != nil {
				logger.Warn("ledger audit failed", zap.Error(err))
				return
			}
			if len(report.Violations) > 0 {
				logger.Error("ledger audit found violations", zap.Int("count", len(report.Violations)))
			}
		})
		if err != nil {
			logger.Warn("cron register ledger audit failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 1)
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
