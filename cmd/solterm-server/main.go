package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/solterm/solterm/pkg/database"
	"github.com/solterm/solterm/pkg/server"
)

var Version = "dev"

func main() {
	configPath := flag.String("config", "~/.solterm/server.toml", "Path to config file")
	portFlag := flag.Int("port", 0, "Override HTTP port from config")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("solterm-server %s\n", Version)
		return
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if *portFlag != 0 {
		cfg.HTTPPort = *portFlag
	}

	dbPath := cfg.ExpandedDatabasePath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		logger.Fatal().Err(err).Str("path", dbPath).Msg("failed to create data directory")
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", dbPath).Msg("failed to open database")
	}
	defer db.Close()

	if err := db.SeedDefaultChannels(); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed channels")
	}

	srv := server.NewServer(db, cfg, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server failed")
		}
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("shutdown error")
		}
	}
}
