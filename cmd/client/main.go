package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/sergeijochim/BlueMemory/internal/channel"
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
	playerName = flag.String("name", "", "player name (required)")
	serverAddr = flag.String("server", "localhost:7667", "host address of the session to join")
)

func main() {
	flag.Parse()

	if *playerName == "" {
		fmt.Fprintln(os.Stderr, "a player name is required (-name)")
		os.Exit(1)
	}

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

	store := deck.NewStore(cfg.Decks.Dir, logger)

	joinURL := url.URL{Scheme: "ws", Host: *serverAddr, Path: server.JoinPath}
	conn, _, err := websocket.DefaultDialer.Dial(joinURL.String(), nil)
	if err != nil {
		logger.Fatal("failed to connect",
			zap.String("url", joinURL.String()),
			zap.Error(err),
		)
	}

	surface := termui.New(*playerName, os.Stdout)
	proxy := client.New(*playerName, surface, store, stats.Noop{}, logger)
	remote := channel.NewRemote(channel.NewWebSocketStream(conn), proxy, logger)
	proxy.Connect(remote)

	logger.Info("joined session",
		zap.String("server", *serverAddr),
		zap.String("player", *playerName),
	)

	go commandLoop(proxy)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		proxy.Leave()
		<-surface.Done()
	case <-surface.Done():
	}
}

func commandLoop(proxy *client.Proxy) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
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
		case "quit":
			proxy.Leave()
			return
		default:
			fmt.Println("commands: play <cell>, quit")
		}
	}
}

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
