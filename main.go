package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"fiveradio/audio"
	"fiveradio/catalog"
	"fiveradio/config"
	"fiveradio/player"
	"fiveradio/server"
	"fiveradio/tui"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (default: user config dir)")
	volumePercent := flag.Int("volume", -1, "Initial volume (0-100), -1 means use config")
	endpoint := flag.String("endpoint", "", "Station feed URL (overrides config)")
	serverMode := flag.Bool("server", false, "Run the HTTP control server instead of the terminal UI")
	port := flag.Int("port", 0, "Server port (server mode only, overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("⚠ Failed to load config, using defaults: %v\n", err)
	}

	// If volume is specified via command line, override config
	if *volumePercent >= 0 {
		cfg.Player.Volume = min(1, float64(*volumePercent)/100.0)
	}
	if *endpoint != "" {
		cfg.Catalog.Endpoint = *endpoint
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	closeLog, err := setupLogging(cfg, *serverMode)
	if err != nil {
		fmt.Printf("⚠ Failed to open log file: %v\n", err)
	}
	defer closeLog()

	cat := catalog.New(cfg.Catalog.Endpoint, &http.Client{Timeout: cfg.Catalog.Timeout})
	ctrl := player.NewController(
		audio.NewBackend(nil, audio.WithStallTimeout(cfg.Player.StallTimeout)),
		player.WithVolume(cfg.Player.Volume),
		player.WithMuted(cfg.Player.Muted),
		player.WithAttachTimeout(cfg.Player.AttachTimeout),
		player.WithSpectrumBands(cfg.Player.SpectrumBands),
	)
	defer ctrl.Close()

	if *serverMode {
		runServer(cfg, cat, ctrl)
		return
	}
	runTUI(cat, ctrl)
}

// setupLogging points the global logger at stderr in server mode and at a
// file otherwise, since bubbletea owns the terminal.
func setupLogging(cfg config.Config, console bool) (func(), error) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if console {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
		return func() {}, nil
	}

	path := cfg.LogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Logger = zerolog.New(io.Discard)
		return func() {}, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Logger = zerolog.New(io.Discard)
		return func() {}, err
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return func() { f.Close() }, nil
}

// runServer starts the HTTP control server
func runServer(cfg config.Config, cat *catalog.Catalog, ctrl *player.Controller) {
	fmt.Println("🚀 Starting in server mode...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("📡 Loading station list...")
	stations := cat.Stations(ctx)
	fmt.Printf("✓ %d stations available\n", len(stations))

	s := server.NewServer(cfg.Server.Port, cat, ctrl)
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()
	fmt.Printf("📡 Control API: http://localhost:%d/api/status\n", cfg.Server.Port)

	select {
	case err := <-errCh:
		if err != nil {
			fmt.Printf("❌ Server error: %v\n", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		fmt.Println("👋 Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("server shutdown")
		}
	}
}

// runTUI starts the terminal UI
func runTUI(cat *catalog.Catalog, ctrl *player.Controller) {
	fmt.Println("📡 Loading station list...")
	stations := cat.Stations(context.Background())
	fmt.Printf("✓ %d stations available\n", len(stations))

	fmt.Println("🚀 Starting interface...")
	if err := tui.Run(stations, ctrl); err != nil {
		fmt.Printf("❌ Interface error: %v\n", err)
		os.Exit(1)
	}
}
