// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/tokenrivals/internal/cache"
	"github.com/jason-s-yu/tokenrivals/internal/config"
	"github.com/jason-s-yu/tokenrivals/internal/handlers"
	"github.com/jason-s-yu/tokenrivals/internal/metrics"
	"github.com/jason-s-yu/tokenrivals/internal/middleware"
	"github.com/jason-s-yu/tokenrivals/internal/room"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.Logger()

	m := metrics.NewManager()
	opts := []room.Option{
		room.WithLogger(logrus.NewEntry(logger)),
		room.WithObserver(m),
		room.WithTTL(cfg.RoomTTL),
		room.WithSweepInterval(cfg.SweepInterval),
	}
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		q := cache.NewEventQueue(rdb, cfg.EventQueue)
		opts = append(opts, room.WithEventSink(q))
		logger.Infof("publishing room events to redis list %s", q.Name())
	}
	reg := room.NewRegistry(opts...)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		reg.Run(ctx)
	}()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	ws := handlers.RoomWSHandler(logger, reg, cfg.AllowedOrigins)
	r.Get("/ws", ws)
	r.Get("/", ws)
	r.Group(func(r chi.Router) {
		r.Use(middleware.LogMiddleware(logger))
		r.Get("/health", handlers.HealthHandler(reg))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("room server listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	<-runDone
	logger.Info("room server stopped")
}
