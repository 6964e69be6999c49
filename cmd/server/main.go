// Chat recorder server: mirrors chat pages, detects finished messages and
// broadcasts them to local consumers.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/chat-recorder/internal/api"
	"github.com/ashureev/chat-recorder/internal/broadcast"
	"github.com/ashureev/chat-recorder/internal/config"
	"github.com/ashureev/chat-recorder/internal/health"
	"github.com/ashureev/chat-recorder/internal/identity"
	"github.com/ashureev/chat-recorder/internal/middleware"
	"github.com/ashureev/chat-recorder/internal/recorder"
	"github.com/ashureev/chat-recorder/internal/shared"
	"github.com/ashureev/chat-recorder/internal/store"
	"github.com/ashureev/chat-recorder/internal/tab"
	"github.com/ashureev/chat-recorder/internal/vocab"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "topic", cfg.Broadcast.Topic)

	matcher, err := loadMatcher(cfg.Recorder.VocabularyFile)
	if err != nil {
		slog.Error("Failed to load vocabulary", "error", err, "path", cfg.Recorder.VocabularyFile)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Message bus and its consumers.
	hub := broadcast.NewHub(logger)
	defer hub.Close()

	var repo store.Repository
	var pinger health.Pinger
	var sinkDone <-chan struct{}
	if cfg.Store.Enabled {
		sqlite, err := store.NewSQLite(cfg.Store.DBPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := sqlite.Close(); closeErr != nil {
				slog.Error("Failed to close repository", "error", closeErr)
			}
		}()
		if err := sqlite.Ping(ctx); err != nil {
			slog.Error("Database health check failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Database connected", "path", cfg.Store.DBPath)
		repo, pinger = sqlite, sqlite

		sink := store.NewSink(sqlite, hub, store.SinkOptions{
			Topic: cfg.Broadcast.Topic,
			Retry: shared.RetryPolicy{
				Attempts:  cfg.Store.RetryAttempts,
				BaseDelay: cfg.Store.RetryBaseDelay,
			},
			Logger: logger,
		})
		sinkDone = sink.Start(ctx)
	} else {
		slog.Info("Transcript store disabled")
	}

	// Tabs.
	recCfg := recorder.DefaultConfig()
	recCfg.MaxChecks = cfg.Recorder.MaxChecks
	recCfg.RescanInterval = cfg.Recorder.RescanInterval

	tabs := tab.NewManager(tab.Options{
		Config:         recCfg,
		Matcher:        matcher,
		Emitter:        broadcast.NewEmitter(hub, cfg.Broadcast.Topic, nil),
		QueueSize:      cfg.Tabs.QueueSize,
		OutboundBuffer: cfg.Tabs.OutboundQueue,
		Logger:         logger,
	})
	defer tabs.CloseAll()
	reaperDone := tab.StartReaper(ctx, tabs, cfg.Tabs.IdleTTL, cfg.Tabs.ReapInterval, nil)

	// Handlers.
	baseHandler := api.NewHandler(tabs, hub, repo)
	healthHandler := api.NewHealthHandler(baseHandler)
	tabHandler := api.NewTabHandler(baseHandler)
	messageHandler := api.NewMessageHandler(baseHandler)
	pageHandler := tab.NewWebSocketHandler(tabs, cfg.AllowedOrigins, cfg.IsDevelopment(), logger)
	consumerHandler := broadcast.NewConsumerHandler(hub, cfg.Broadcast.Topic, cfg.AllowedOrigins, cfg.IsDevelopment(), logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	healthHandler.RegisterHealth(r)
	tabHandler.RegisterRoutes(r)
	messageHandler.RegisterRoutes(r)

	// WebSocket endpoints.
	r.With(identity.Middleware).Get("/ws/page", pageHandler.ServeHTTP)
	r.Get("/ws/messages", consumerHandler.ServeHTTP)

	// Websocket connections are long lived, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	var healthDone chan struct{}
	if cfg.GRPCHealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			slog.Error("Failed to listen for gRPC health", "error", err, "addr", cfg.GRPCHealthAddr)
			os.Exit(1)
		}
		var pingers []health.Pinger
		if pinger != nil {
			pingers = append(pingers, pinger)
		}
		hsrv := health.New(10*time.Second, logger, pingers...)
		healthDone = make(chan struct{})
		go func() {
			defer close(healthDone)
			if err := hsrv.Serve(ctx, lis); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	<-reaperDone
	if sinkDone != nil {
		<-sinkDone
	}
	if healthDone != nil {
		<-healthDone
	}

	slog.Info("Server stopped successfully")
}

func loadMatcher(path string) (*vocab.Matcher, error) {
	v := vocab.Default()
	if path != "" {
		loaded, err := vocab.Load(path)
		if err != nil {
			return nil, err
		}
		v = loaded
		slog.Info("Vocabulary loaded", "path", path)
	}
	return v.Compile()
}
