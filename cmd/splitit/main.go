package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/splitit/internal/config"
	"github.com/zombor/splitit/internal/receipt"
	"github.com/zombor/splitit/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Warn("Ignoring .env file", "error", err)
	}

	fs, values := config.NewFlagSet()
	cfg, err := config.Parse(fs, values, os.Args[1:])
	if errors.Is(err, ff.ErrHelp) {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if cfg.ShowVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	scanner, err := newScanner(cfg)
	if err != nil {
		slog.Error("Failed to initialize scanner", "scanner", cfg.Scanner, "error", err)
		os.Exit(1)
	}
	if scanner != nil {
		defer scanner.Close()
	}

	// A nil scanner still starts the server; parse requests then report the missing key
	service := receipt.NewService(scanner, cfg.Model())

	basicAuth := receipt.BasicAuth{
		Username: cfg.AuthUser,
		Password: cfg.AuthPass,
	}
	server := receipt.NewServer(service, basicAuth)

	go func() {
		if err := server.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", "http://"+cfg.Addr(), "version", version)
	if cfg.AuthUser != "" || cfg.AuthPass != "" {
		slog.Info("Basic auth enabled", "user", cfg.AuthUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}

// newScanner builds the configured scanner. It returns nil without an error when
// Gemini is selected but no key is set.
func newScanner(cfg config.Config) (scanning.Scanner, error) {
	switch cfg.Scanner {
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
		return scanning.NewOllama(cfg.OllamaURL, cfg.OllamaModel, cfg.Timeout)
	default:
		if cfg.GeminiKey == "" {
			slog.Warn("No Gemini API key. Set --gemini-key or GEMINI_API_KEY; get a free key at https://aistudio.google.com/apikey")
			return nil, nil
		}
		slog.Info("Initializing Gemini scanner...", "model", cfg.GeminiModel)
		return scanning.NewGemini(cfg.GeminiKey, cfg.GeminiModel, cfg.Timeout)
	}
}
