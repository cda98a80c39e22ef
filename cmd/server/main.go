// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/kaboom/internal/auth"
	"github.com/jason-s-yu/kaboom/internal/cache"
	"github.com/jason-s-yu/kaboom/internal/config"
	"github.com/jason-s-yu/kaboom/internal/database"
	"github.com/jason-s-yu/kaboom/internal/game"
	"github.com/jason-s-yu/kaboom/internal/handlers"
	"github.com/jason-s-yu/kaboom/internal/middleware"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	if err := auth.Init(cfg.TokenExpire); err != nil {
		logger.Fatalf("failed to initialize auth: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres and Redis are optional; without them matches still run, but accounts,
	// round history and the action log are unavailable.
	if cfg.PostgresDSN != "" {
		if err := database.ConnectDB(ctx, cfg.PostgresDSN); err != nil {
			logger.Warnf("postgres unavailable, continuing without persistence: %v", err)
		} else if err := database.EnsureSchema(ctx); err != nil {
			logger.Fatalf("failed to apply schema: %v", err)
		}
	}
	defer database.Close()

	cache.QueueName = cfg.QueueName
	if err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB); err != nil {
		logger.Warnf("redis unavailable, game actions will not be recorded: %v", err)
	} else {
		defer cache.Rdb.Close()
	}

	rules := game.DefaultHouseRules()
	rules.NopeWindow = cfg.NopeWindow
	rules.HandSize = cfg.HandSize
	rules.SeeFutureCount = cfg.SeeFutureCount
	if err := rules.Validate(); err != nil {
		logger.Fatalf("invalid house rules: %v", err)
	}

	gs := handlers.NewGameServer(logger, rules)
	logged := middleware.LogMiddleware(logger)

	mux := http.NewServeMux()
	mux.Handle("/user/create", logged(handlers.CreateUserHandler(logger)))
	mux.Handle("/user/login", logged(handlers.LoginHandler(logger)))
	mux.Handle("/game/ws/", logged(handlers.GameWSHandler(logger, gs)))
	mux.Handle("/game/state/", logged(http.HandlerFunc(gs.GameStateHandler)))
	mux.HandleFunc("/healthz", gs.HealthzHandler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}()

	logger.Infof("Running on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
}
