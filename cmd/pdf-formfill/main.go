package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/a3tai/mcp-pdf-formfill/internal/chat"
	"github.com/a3tai/mcp-pdf-formfill/internal/config"
	"github.com/a3tai/mcp-pdf-formfill/internal/mcp"
	"github.com/a3tai/mcp-pdf-formfill/internal/metrics"
	"github.com/a3tai/mcp-pdf-formfill/internal/session"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the mode
func setupLogging(cfg *config.Config) {
	switch {
	case cfg.IsStdioMode():
		// stdout carries the MCP protocol
		log.SetOutput(os.Stderr)
		if !cfg.IsDebug() {
			log.SetOutput(io.Discard)
		}
	case cfg.IsChatMode():
		// stdout carries the conversation
		log.SetOutput(os.Stderr)
		if !cfg.IsDebug() {
			log.SetOutput(io.Discard)
		}
		log.SetFlags(log.LstdFlags)
	default:
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
}

// runServerMode handles server mode execution with signal handling
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	select {
	case sig := <-signalCh:
		log.Printf("Received signal: %s", sig)
		log.Println("Initiating graceful shutdown...")
		cancel()

		if err := <-serverErrCh; err != nil {
			log.Printf("Server shutdown with error: %v", err)
			os.Exit(1)
		}

	case err := <-serverErrCh:
		if err != nil {
			log.Printf("Server error: %v", err)
			os.Exit(1)
		}
	}

	log.Println("Server stopped successfully")
}

// runStdioMode handles stdio mode execution
func runStdioMode(ctx context.Context, server *mcp.Server) {
	// The parent process controls our lifecycle
	if err := server.Run(ctx); err != nil {
		log.Printf("Server error: %v", err)
		os.Exit(1)
	}
}

// runChatMode fills the default form in the terminal
func runChatMode(ctx context.Context, cfg *config.Config, sessions *session.Service) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shell := chat.NewShell(sessions, os.Stdin, os.Stdout)
	if cfg.AnswersFile == "" {
		return shell.Run(ctx)
	}

	answers, err := chat.LoadAnswers(cfg.AnswersFile)
	if err != nil {
		return err
	}
	return shell.RunBatch(ctx, answers)
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg)

	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	sessions, err := session.NewService(cfg, metrics.NewRecorder())
	if err != nil {
		log.Fatalf("Failed to create session service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch {
	case cfg.IsChatMode():
		if err := runChatMode(ctx, cfg, sessions); err != nil {
			if !errors.Is(err, context.Canceled) {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			os.Exit(1)
		}
	case cfg.IsServerMode():
		server, err := mcp.NewServer(cfg, sessions)
		if err != nil {
			log.Fatalf("Failed to create server: %v", err)
		}
		runServerMode(ctx, cancel, server)
	default:
		server, err := mcp.NewServer(cfg, sessions)
		if err != nil {
			log.Fatalf("Failed to create server: %v", err)
		}
		runStdioMode(ctx, server)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("PDF Form Filler\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
