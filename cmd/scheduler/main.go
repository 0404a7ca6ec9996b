package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/class-scheduler/internal/application"
	"github.com/example/class-scheduler/internal/cache"
	"github.com/example/class-scheduler/internal/config"
	httptransport "github.com/example/class-scheduler/internal/http"
	"github.com/example/class-scheduler/internal/persistence/sqlite"
	"github.com/example/class-scheduler/internal/recurrence"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	location, err := cfg.Location()
	if err != nil {
		logger.Error("failed to resolve timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.NewConnectionPool(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := pool.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	var store cache.Store = cache.Noop{}
	if cfg.RedisAddr != "" {
		redisStore, err := cache.NewRedisStore(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer func() {
			if cerr := redisStore.Close(); cerr != nil {
				logger.Error("failed to close redis connection", "error", cerr)
			}
		}()
		store = redisStore
	}

	engine := recurrence.NewEngine(location, logger)

	classRepo := sqlite.NewClassRepository(pool)
	instructorRepo := sqlite.NewInstructorRepository(pool)
	roomRepo := sqlite.NewRoomRepository(pool)

	classService := application.NewClassService(classRepo, instructorRepo, roomRepo, engine, store, nil, nil, logger)
	instructorService := application.NewInstructorService(instructorRepo, store, nil, nil, logger)
	roomService := application.NewRoomService(roomRepo, store, nil, nil, logger)

	classHandler := httptransport.NewClassHandler(classService, store, cfg.CacheTTL, logger)
	instructorHandler := httptransport.NewInstructorHandler(instructorService, logger)
	roomHandler := httptransport.NewRoomHandler(roomService, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Classes:     classHandler,
		Instructors: instructorHandler,
		Rooms:       roomHandler,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("class scheduler API listening", "addr", server.Addr, "timezone", cfg.Timezone)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}
