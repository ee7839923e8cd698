// Package main implements studiod, the studio peer: it serves the design,
// template and AI methods over JSON-RPC on a WebSocket endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/studioforge/studiorpc/internal/config"
	"github.com/studioforge/studiorpc/internal/dispatcher"
	"github.com/studioforge/studiorpc/internal/logging"
	"github.com/studioforge/studiorpc/internal/studio"
)

const (
	ProgramName     = "studiod"
	shutdownTimeout = 15 * time.Second
)

// CommandLineArgs represents parsed command-line arguments
type CommandLineArgs struct {
	ConfigPath  string
	Listen      string
	Path        string
	ShowVersion bool
}

func main() {
	args := parseCommandLineArgs()
	if args.ShowVersion {
		fmt.Printf("%s v%s\n", ProgramName, dispatcher.Version)
		return
	}

	if err := run(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseCommandLineArgs() CommandLineArgs {
	var args CommandLineArgs

	flag.StringVar(&args.ConfigPath, "config", "", "Path to profiles.yaml (default: $XDG_CONFIG_HOME/studiorpc/profiles.yaml)")
	flag.StringVar(&args.Listen, "listen", "", "Listen address, overrides the server section and STUDIORPC_LISTEN")
	flag.StringVar(&args.Path, "path", "", "WebSocket endpoint path, overrides the server section")
	flag.BoolVar(&args.ShowVersion, "version", false, "Display version information and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s serves the studio JSON-RPC methods over WebSocket.\n\n", ProgramName, dispatcher.Version)
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEndpoints:\n")
		fmt.Fprintf(os.Stderr, "  GET /rpc       WebSocket upgrade, JSON-RPC 2.0 text frames\n")
		fmt.Fprintf(os.Stderr, "  GET /healthz   liveness probe\n")
	}

	flag.Parse()
	return args
}

func openConfig(path string) (*config.Manager, error) {
	if path != "" {
		return config.NewManagerAt(path)
	}
	return config.NewManager()
}

func run(args CommandLineArgs) error {
	configManager, err := openConfig(args.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to initialize config manager: %w", err)
	}

	logConfig, err := configManager.LoadLoggingConfig()
	if err != nil {
		return err
	}
	if err := logging.InitGlobalLogger(logConfig.LoggerConfig(ProgramName)); err != nil {
		return err
	}
	logger := logging.GetGlobalLogger()

	serverConfig, err := configManager.LoadServerConfig()
	if err != nil {
		logger.LogConfigError("load server config", err)
		return err
	}
	if args.Listen != "" {
		serverConfig.ListenAddr = args.Listen
	}
	if args.Path != "" {
		serverConfig.Path = args.Path
	}
	logger.LogConfigLoad(configManager.GetConfigPath(), "server")

	server, err := buildServer(serverConfig, time.Now())
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              serverConfig.ListenAddr,
		Handler:           server.Handler(serverConfig.Path),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Studio peer listening",
			"addr", serverConfig.ListenAddr,
			"path", serverConfig.Path,
			"name", serverConfig.Name,
			"version", dispatcher.Version)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err.Error())
	}
	// hijacked WebSocket connections are not tracked by http.Server
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dispatcher shutdown: %w", err)
	}
	logger.Info("Shutdown complete")
	return nil
}

// buildServer wires the registry, built-ins and studio methods into a peer server
func buildServer(cfg *config.ServerConfig, started time.Time) (*dispatcher.Server, error) {
	registry := dispatcher.NewRegistry()
	if err := dispatcher.RegisterBuiltins(registry, started); err != nil {
		return nil, fmt.Errorf("register built-in methods: %w", err)
	}

	store := studio.NewStore(studio.DefaultTemplates())
	service := studio.NewService(store, cfg.Latency, logging.GetStudioLogger())
	if err := service.Register(registry); err != nil {
		return nil, fmt.Errorf("register studio methods: %w", err)
	}

	d := dispatcher.New(registry, logging.GetDispatchLogger())
	return dispatcher.NewServer(d, cfg.Name, logging.GetDispatchLogger()), nil
}
