package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sergeijochim/BlueMemory/internal/board"
	"github.com/sergeijochim/BlueMemory/internal/client"
	"github.com/sergeijochim/BlueMemory/internal/config"
	"github.com/sergeijochim/BlueMemory/internal/deck"
	"github.com/sergeijochim/BlueMemory/internal/server"
	"github.com/sergeijochim/BlueMemory/internal/stats"
	"github.com/sergeijochim/BlueMemory/internal/termui"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	playerName = flag.String("name", "Host", "player name of the host")
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

	logger.Info("starting memory host",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	store := deck.NewStore(cfg.Decks.Dir, logger)
	downloader := deck.NewDownloader(cfg.Decks.DownloadURL, store, logger)

	var recorder stats.Recorder = stats.Noop{}
	if cfg.Stats.Enabled {
		pg, err := stats.NewPostgres(ctx, cfg.Stats.DSN, logger)
		if err != nil {
			logger.Fatal("failed to connect to stats database", zap.Error(err))
		}
		defer pg.Close()
		recorder = pg
		logger.Info("stats recorder initialized")
	}

	b, err := board.Generate(cfg.Game.Width, cfg.Game.Height, cfg.Game.Deck, cfg.Game.PauseMs, store)
	if err != nil {
		installed, _ := store.Installed()
		logger.Fatal("failed to generate board",
			zap.Error(err),
			zap.Strings("installed_decks", installed),
		)
	}

	coordinator := server.New(b, logger)

	surface := termui.New(*playerName, os.Stdout)
	proxy := client.New(*playerName, surface, store, recorder, logger)
	local := coordinator.AttachLocal()
	local.Bind(proxy)
	proxy.Connect(local)

	listener := server.NewListener(cfg.Server.ListenAddress, coordinator, logger)
	go func() {
		if serveErr := listener.Serve(); serveErr != nil {
			logger.Error("listener error", zap.Error(serveErr))
		}
	}()

	logger.Info("hosting session",
		zap.String("address", cfg.Server.ListenAddress),
		zap.String("deck", cfg.Game.Deck),
		zap.Int("cells", cfg.Game.Width*cfg.Game.Height),
	)

	go commandLoop(ctx, coordinator, proxy, downloader, logger)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-surface.Done():
	case <-coordinator.Done():
	}

	logger.Info("shutting down gracefully...")
	cancel()

	if err := listener.Shutdown(context.Background()); err != nil {
		logger.Warn("listener shutdown failed", zap.Error(err))
	}
	coordinator.Abort()
	<-coordinator.Done()

	logger.Info("memory host stopped")
}

// commandLoop reads host commands from stdin. The host plays through the same
// proxy as everyone else; the only extra powers are starting the game and
// managing decks.
func commandLoop(ctx context.Context, coordinator *server.Coordinator, proxy *client.Proxy, downloader *deck.Downloader, logger *zap.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "start":
			if err := coordinator.StartGame(); err != nil {
				fmt.Println(err)
			}
		case "play":
			if len(fields) != 2 {
				fmt.Println("usage: play <cell>")
				continue
			}
			cell, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("usage: play <cell>")
				continue
			}
			if err := proxy.PlayCell(cell); err != nil {
				fmt.Println(err)
			}
		case "decks":
			available, err := downloader.Available(ctx)
			if err != nil {
				fmt.Println("deck list unavailable:", err)
				continue
			}
			for _, name := range available {
				fmt.Println(name)
			}
		case "fetch":
			if len(fields) != 2 {
				fmt.Println("usage: fetch <deck.zip>")
				continue
			}
			if err := downloader.Install(ctx, fields[1]); err != nil {
				fmt.Println("deck install failed:", err)
			}
		case "quit":
			proxy.Leave()
			return
		default:
			fmt.Println("commands: start, play <cell>, decks, fetch <deck.zip>, quit")
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("stdin closed", zap.Error(err))
	}
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
