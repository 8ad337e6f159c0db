package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"issueboard/internal/auth"
	"issueboard/internal/feed"
	"issueboard/internal/server"
	"issueboard/internal/storage/sqlite"
	"issueboard/internal/util"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	addrFlag := flag.String("addr", util.EnvOrDefault("ISSUEBOARD_ADDR", ":8080"), "HTTP listen address")
	dbFlag := flag.String("db", util.EnvOrDefault("ISSUEBOARD_DB_PATH", "data/issueboard.db"), "Path to sqlite database file")
	staticFlag := flag.String("static", util.EnvOrDefault("ISSUEBOARD_STATIC_DIR", ""), "Directory with built frontend")
	originFlag := flag.String("allowed-origin", util.EnvOrDefault("ISSUEBOARD_ALLOWED_ORIGIN", ""), "Origin allowed to open live sessions")
	redisFlag := flag.String("redis", util.EnvOrDefault("ISSUEBOARD_REDIS_ADDR", ""), "Redis address for cross-instance change notifications")
	channelFlag := flag.String("redis-channel", util.EnvOrDefault("ISSUEBOARD_REDIS_CHANNEL", feed.DefaultChannel), "Redis pub/sub channel")
	ttlFlag := flag.Duration("token-ttl", util.EnvDuration("ISSUEBOARD_TOKEN_TTL", auth.DefaultTokenTTL), "Session token lifetime")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	secret := os.Getenv("ISSUEBOARD_JWT_SECRET")
	if secret == "" {
		logger.Error("ISSUEBOARD_JWT_SECRET is not set")
		os.Exit(1)
	}

	store, err := sqlite.Open(*dbFlag, logger)
	if err != nil {
		logger.Error("unable to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if *redisFlag != "" {
		rc := redis.NewClient(&redis.Options{Addr: *redisFlag})
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			logger.Error("unable to reach redis", slog.String("addr", *redisFlag), slog.String("error", err.Error()))
			os.Exit(1)
		}
		relay := feed.NewRedisRelay(rc, *channelFlag, logger)
		store.SetNotifier(relay)
		go relay.Run(ctx, store.Refresh)
		logger.Info("change relay enabled", slog.String("channel", *channelFlag), slog.String("instance", relay.Instance()))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	provider := auth.NewProvider(store, []byte(secret), *ttlFlag)
	srv := server.New(store, provider, logger, server.Options{
		StaticDir:     *staticFlag,
		AllowedOrigin: *originFlag,
		Registry:      registry,
	})

	httpServer := &http.Server{
		Addr:    *addrFlag,
		Handler: srv.Engine(),
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
