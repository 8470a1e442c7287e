package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ctchen222/Tic-Tac-Toe-Grid/internal/api/controller"
	"ctchen222/Tic-Tac-Toe-Grid/internal/api/repository"
	"ctchen222/Tic-Tac-Toe-Grid/internal/api/service"
	"ctchen222/Tic-Tac-Toe-Grid/internal/bot"
	"ctchen222/Tic-Tac-Toe-Grid/internal/config"
	"ctchen222/Tic-Tac-Toe-Grid/internal/db"
	"ctchen222/Tic-Tac-Toe-Grid/internal/events"
	"ctchen222/Tic-Tac-Toe-Grid/internal/hub"
	"ctchen222/Tic-Tac-Toe-Grid/internal/logger"
	"ctchen222/Tic-Tac-Toe-Grid/internal/server"
	"ctchen222/Tic-Tac-Toe-Grid/internal/session"
	"ctchen222/Tic-Tac-Toe-Grid/internal/telemetry"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	configPath := flag.String("config", "", "path to a yaml config file (environment only when empty)")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize telemetry
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:       cfg.Telemetry.Endpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
	})
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down telemetry: %v", err)
		}
	}()

	logger.Init(cfg.LogLevel)

	// Redis is optional and only carries lifecycle events.
	var publisher events.Publisher = events.Nop{}
	if cfg.Redis.ConnString != "" {
		rdb, err := db.NewRedisClient(ctx, cfg.Redis.ConnString)
		if err != nil {
			slog.Error("failed to initialize redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		publisher = events.NewRedisPublisher(rdb)
		slog.Info("Publishing game events to redis", "channel", events.EventsChannel)
	}

	// Create hub
	h := hub.NewHub(hub.Config{
		MatchmakingTimeout: cfg.Matchmaking.Timeout,
		HeartbeatInterval:  cfg.Matchmaking.HeartbeatInterval,
		DefaultGridSize:    cfg.Matchmaking.DefaultGridSize,
	}, publisher)
	go h.Run(ctx)

	// Create services and controllers
	gameService := service.NewGameService(repository.NewGameRepository(), bot.Selector{}, session.DefaultComputerDelay, service.Limits{
		MaxGames:    cfg.Games.MaxHosted,
		IdleTimeout: cfg.Games.IdleTimeout,
	})
	go gameService.RunJanitor(ctx, cfg.Games.SweepInterval)
	gameController := controller.NewGameController(gameService)
	playerController := controller.NewPlayerController(service.NewPlayerService())

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.NewServer(h, gameController, playerController)

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: otelhttp.NewHandler(srv.Engine(), "http.server"),
	}

	go func() {
		slog.Info("http server started", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("ListenAndServe failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	<-h.Done()

	slog.Info("Server exiting")
}
