package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"healthsync/internal/background"
	"healthsync/internal/cache"
	"healthsync/internal/config"
	cronrunner "healthsync/internal/cron"
	"healthsync/internal/db"
	"healthsync/internal/handler"
	"healthsync/internal/health"
	"healthsync/internal/kv"
	"healthsync/internal/limiter"
	"healthsync/internal/logger"
	"healthsync/internal/provider/healthconnect"
	gormrepository "healthsync/internal/repository/gorm"
	"healthsync/internal/service"
	"healthsync/internal/watermark"

	_ "healthsync/docs"
)

func main() {
	cfgPath := os.Getenv("HS_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("HS_ENV_ONLY"); envOnlyRaw != "" {
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

	repo := gormrepository.New(dbConn.Gorm)
	store, readiness, closeKV, err := openKV(cfg.KV, repo)
	if err != nil {
		logger.Fatal("kv open failed", zap.Error(err))
	}
	defer closeKV()

	loc, err := cfg.Pipeline.Location()
	if err != nil {
		logger.Fatal("invalid pipeline timezone", zap.String("timezone", cfg.Pipeline.Timezone), zap.Error(err))
	}

	providerHTTP := &http.Client{Timeout: cfg.Provider.Timeout}
	provider := healthconnect.NewClient(providerHTTP, cfg.Provider.BaseURL, cfg.Provider.Token)
	fetcher := &health.ProviderFetcher{Provider: provider}
	// One gate for both run paths.
	lim := limiter.New(cfg.Pipeline.MaxConcurrentCalls)
	perms := &service.PermissionService{Provider: provider, KV: store, Logger: logger}
	wm := watermark.NewKVStore(store)

	pipeline := &service.DailyPipeline{
		Provider:    provider,
		Fetcher:     fetcher,
		Limiter:     lim,
		Permissions: perms,
		Cache:       cache.New[[]health.RawRecord](store, cfg.Pipeline.CacheTTL),
		Location:    loc,
		Logger:      logger,
	}
	snapshots := &service.SnapshotQueryService{KV: store, Watermark: wm, Repo: repo}
	hub := handler.NewStreamHub(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Not derived from ctx: with stop_on_terminate=false a running sync outlives SIGTERM.
	cronRunner := cronrunner.New(logger, context.Background())
	host := background.NewCronHost(cronRunner, logger)
	syncSvc := &service.BackgroundSyncService{
		Provider:    provider,
		Fetcher:     fetcher,
		Limiter:     lim,
		Permissions: perms,
		Watermark:   wm,
		KV:          store,
		Repo:        repo,
		Publisher:   hub,
		Host:        host,
		Options: background.Options{
			MinimumFetchInterval: cfg.Background.MinimumFetchInterval,
			StopOnTerminate:      cfg.Background.StopOnTerminate,
			StartOnBoot:          cfg.Background.StartOnBoot,
			EnableHeadless:       cfg.Background.EnableHeadless,
			TaskTimeout:          cfg.Background.TaskTimeout,
		},
		Lookback: cfg.Background.DefaultLookback,
		Logger:   logger,
	}
	if err := syncSvc.Setup(); err != nil {
		logger.Fatal("background sync setup failed", zap.Error(err))
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{Store: readiness}
	healthHandler.Register(engine)
	handler.RegisterDocs(engine)
	dataHandler := &handler.HealthDataHandler{
		Pipeline:    pipeline,
		Permissions: perms,
		Snapshots:   snapshots,
		Location:    loc,
		Logger:      logger,
	}
	dataHandler.Register(engine)
	syncHandler := &handler.SyncHandler{
		Service:      syncSvc,
		Snapshots:    snapshots,
		Events:       host,
		HistoryLimit: cfg.Background.HistoryLimit,
		Logger:       logger,
	}
	syncHandler.Register(engine)
	hub.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	if cfg.Background.Enabled {
		if err := host.Start(); err != nil {
			logger.Fatal("background host start failed", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := host.Stop(stopCtx); err != nil {
				logger.Warn("background host stop failed", zap.Error(err))
			}
		}()
	} else {
		logger.Info("background sync disabled; events are still accepted over http")
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

type pingers []handler.Pinger

func (p pingers) Ping(ctx context.Context) error {
	for _, item := range p {
		if err := item.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// openKV picks the key-value backend. The db backend reuses the gorm store.
func openKV(cfg config.KVConfig, repo *gormrepository.Store) (kv.Store, handler.Pinger, func(), error) {
	noop := func() {}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "db":
		return kv.WithPrefix(repo, cfg.KeyPrefix), repo, noop, nil
	case "redis":
		rs := kv.NewRedisStore(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, noop, err
		}
		return kv.WithPrefix(rs, cfg.KeyPrefix), pingers{repo, rs}, func() { _ = rs.Close() }, nil
	case "memory":
		return kv.WithPrefix(kv.NewMemoryStore(), cfg.KeyPrefix), repo, noop, nil
	default:
		return nil, nil, noop, fmt.Errorf("unsupported kv backend: %s", cfg.Backend)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
