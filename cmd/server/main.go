package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"ayursutra/internal/app"
	"ayursutra/internal/config"
	"ayursutra/internal/ratelimit"
	"ayursutra/internal/server"
	"ayursutra/internal/util"
	"ayursutra/pkg/storage"
	"ayursutra/pkg/store"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("failed to load timezone: %v", err)
	}

	dataStore, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer dataStore.Close()
	if cfg.DatabaseURL == "" {
		logger.Warn("databaseURL not set; records are kept in memory only")
	}

	appCfg := app.Config{Store: dataStore, Location: loc}
	minioCfg := storage.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	}
	if minioCfg.Enabled() {
		objects, err := storage.NewMinioStore(minioCfg)
		if err != nil {
			log.Fatalf("failed to init object storage: %v", err)
		}
		appCfg.Objects = objects
	}
	appCore, err := app.New(appCfg)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	proxies, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}
	srvCfg := server.Config{App: appCore, TrustedProxies: proxies}
	if cfg.RedisAddr != "" && cfg.MutationRateLimitPerMinute > 0 {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatalf("failed to reach redis: %v", err)
		}
		limiter, err := ratelimit.NewFixedWindowLimiter(rdb, ratelimit.Options{
			Limit:  cfg.MutationRateLimitPerMinute,
			Window: time.Minute,
		})
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
		srvCfg.Limiter = limiter
	}
	httpServer, err := server.New(srvCfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("ayursutra server listening",
			"addr", addr,
			"timezone", loc.String(),
			"rate_limit", srvCfg.Limiter != nil,
			"exports", appCfg.Objects != nil,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("shutting down", "grace", cfg.ShutdownGrace().String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "err", err)
		}
	}
}
