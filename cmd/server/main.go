package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chessfree/chessboard-server-go/internal/board"
	"github.com/chessfree/chessboard-server-go/internal/config"
	"github.com/chessfree/chessboard-server-go/internal/game"
	"github.com/chessfree/chessboard-server-go/internal/server"
	"github.com/chessfree/chessboard-server-go/internal/stream"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting chessboard server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Connect to the event log.
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("chessboard-server"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		logger.Fatal("failed to connect to NATS", zap.Error(err))
	}
	defer nc.Close()
	logger.Info("connected to NATS", zap.String("url", cfg.NATS.URL))

	js, err := stream.NewJetStream(nc, cfg.NATS.Stream, cfg.NATS.SubjectPrefix, logger)
	if err != nil {
		logger.Fatal("failed to bind event stream", zap.Error(err))
	}

	gameBoard := board.New()
	svc := game.NewService(gameBoard, js, logger)
	defer svc.Close()

	// Rebuild state from the log before accepting traffic, then keep
	// following the stream for events produced elsewhere.
	if cfg.Replay.Enabled {
		replayer := game.NewReplayer(gameBoard, js, logger)
		go func() {
			if runErr := replayer.Run(ctx); runErr != nil && ctx.Err() == nil {
				logger.Error("replay task ended", zap.Error(runErr))
			}
		}()

		select {
		case <-replayer.CaughtUp():
			logger.Info("replay caught up",
				zap.Int("pieces", len(gameBoard.Snapshot().Pieces)),
			)
		case <-time.After(cfg.Replay.StartupTimeout):
			logger.Warn("replay catch-up timed out, serving anyway",
				zap.Duration("timeout", cfg.Replay.StartupTimeout),
			)
		}
	}

	feed := server.NewEventFeed(nc, cfg.NATS.SubjectPrefix+".>", logger)
	httpServer := &http.Server{
		Addr:    cfg.Server.HTTP.Address,
		Handler: server.New(svc, feed, logger).Router(),
	}

	go func() {
		logger.Info("starting HTTP server", zap.String("address", cfg.Server.HTTP.Address))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(serveErr))
		}
	}()

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("chessboard server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
