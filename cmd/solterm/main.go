package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/solterm/solterm/cmd/solterm/ui"
	"github.com/solterm/solterm/pkg/client"
)

var Version = "dev"

func main() {
	configPath := flag.String("config", "~/.solterm/config.toml", "Path to config file")
	walletFlag := flag.String("wallet", "", "Wallet address to bind on startup")
	debugLog := flag.String("log", "", "Write debug log to this file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("solterm %s\n", Version)
		return
	}

	logger := zerolog.Nop()
	if *debugLog != "" {
		f, err := os.OpenFile(*debugLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logger = zerolog.New(f).With().Timestamp().Logger()
	}

	cfg, err := client.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// State lives under XDG data, same as other local tooling.
	xdgData := os.Getenv("XDG_DATA_HOME")
	if xdgData == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to get home directory: %v\n", err)
			os.Exit(1)
		}
		xdgData = filepath.Join(homeDir, ".local", "share")
	}
	statePath := filepath.Join(xdgData, "solterm", "state.db")

	state, err := client.OpenState(statePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open state database: %v\n", err)
		os.Exit(1)
	}
	defer state.Close()

	conn, err := client.NewTransportSession(cfg.Server.SocketURL, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid socket URL %q: %v\n", cfg.Server.SocketURL, err)
		os.Exit(1)
	}
	conn.SetReconnectPolicy(
		time.Duration(cfg.Reconnect.InitialDelaySeconds)*time.Second,
		time.Duration(cfg.Reconnect.MaxDelaySeconds)*time.Second,
	)
	defer conn.Close()

	backfill := client.NewBackfillClient(cfg.Server.APIBaseURL, logger)

	wallet := *walletFlag
	if wallet == "" {
		wallet = os.Getenv("SOLTERM_WALLET")
	}
	if wallet != "" && !client.IsWalletAddress(wallet) {
		fmt.Fprintf(os.Stderr, "Invalid wallet address: %s\n", wallet)
		os.Exit(1)
	}

	engine := client.NewEngine(cfg, conn, backfill, state, client.NewStaticWallet(wallet), logger)

	if err := conn.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to %s: %v\n", cfg.Server.SocketURL, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- engine.Run(ctx)
	}()

	p := tea.NewProgram(ui.NewModel(engine, logger), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "UI error: %v\n", err)
		os.Exit(1)
	}

	cancel()
	select {
	case <-engineDone:
	case <-time.After(2 * time.Second):
	}
}
