// Package main implements studioctl, the studio console. It either runs the
// interactive terminal console or performs a single call and prints the result.
package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/studioforge/studiorpc/internal/config"
	"github.com/studioforge/studiorpc/internal/content"
	"github.com/studioforge/studiorpc/internal/errors"
	"github.com/studioforge/studiorpc/internal/health"
	"github.com/studioforge/studiorpc/internal/logging"
	"github.com/studioforge/studiorpc/internal/protocol"
	"github.com/studioforge/studiorpc/internal/ui/components"
	"github.com/studioforge/studiorpc/internal/ui/console"
)

const ProgramName = "studioctl"

// CommandLineArgs represents parsed command-line arguments
type CommandLineArgs struct {
	ConfigPath  string
	Profile     string
	URL         string
	Theme       string
	Call        string
	Params      string
	Timeout     time.Duration
	Plain       bool
	ShowVersion bool
}

func main() {
	args := parseCommandLineArgs()
	if args.ShowVersion {
		fmt.Printf("%s v%s\n", ProgramName, protocol.Version)
		return
	}

	if err := run(args); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints the classified failure and its recovery hints
func reportError(w io.Writer, err error) {
	ce := errors.Classify(err)
	if ce.Type == errors.ErrorTypeConfiguration {
		fmt.Fprintf(w, "Error: %s\n", ce.GetUserMessage())
		fmt.Fprintf(w, "  %s\n", ce.Message)
	} else {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
	for _, hint := range ce.GetRecoveryHints() {
		fmt.Fprintf(w, "hint: %s\n", hint)
	}
}

func parseCommandLineArgs() CommandLineArgs {
	var args CommandLineArgs

	flag.StringVar(&args.ConfigPath, "config", "", "Path to profiles.yaml (default: $XDG_CONFIG_HOME/studiorpc/profiles.yaml)")
	flag.StringVar(&args.Profile, "profile", "default", "Profile name from the configuration file")
	flag.StringVar(&args.URL, "url", "", "Server URL, overrides the profile and STUDIORPC_URL")
	flag.StringVar(&args.Theme, "theme", "", "Colour theme for the console and JSON highlighting")
	flag.StringVar(&args.Call, "call", "", "Call one method, print the result and exit")
	flag.StringVar(&args.Params, "params", "", "JSON params for --call")
	flag.DurationVar(&args.Timeout, "timeout", 0, "Timeout for --call (default: the profile request timeout)")
	flag.BoolVar(&args.Plain, "plain", false, "Print --call results without colour")
	flag.BoolVar(&args.ShowVersion, "version", false, "Display version information and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s talks JSON-RPC to a studio peer over WebSocket.\n\n", ProgramName, protocol.Version)
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                   # interactive console\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --call design.list --params '{}'   # one-shot call\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --url ws://10.0.0.5:8080/rpc      # connect elsewhere\n", os.Args[0])
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

	interactive := args.Call == ""
	if err := initializeLogging(configManager, interactive); err != nil {
		return err
	}
	logger := logging.GetGlobalLogger()

	profile, err := resolveProfile(configManager, args)
	if err != nil {
		logger.LogConfigError("load profile", err)
		return err
	}

	theme, err := configManager.LoadTheme(profile.Theme)
	if err != nil {
		logger.Warn("Theme not found, using defaults", "theme", profile.Theme)
		theme = nil
	}

	client := protocol.NewClient(profile.ClientOptions(), logging.GetProtocolLogger())
	defer client.Close()

	formatterName := content.FormatterTerminal256
	if args.Plain {
		formatterName = content.FormatterNoop
	}
	highlighter := content.NewSyntaxHighlighter(profile.Theme, formatterName)

	if !interactive {
		return callOnce(client, highlighter, args, os.Stdout)
	}

	monitor := health.NewMonitor(client, 0, 0, logging.GetProtocolLogger().WithComponent("health"))
	monitor.Start(context.Background())
	defer monitor.Stop()

	palette := components.NewPalette(theme)
	model := console.New(client, console.Options{
		Palette:        &palette,
		Highlighter:    highlighter,
		MaxAttempts:    profile.MaxReconnectAttempts,
		ConnectTimeout: profile.ConnectTimeout,
		ConnectOnStart: true,
		Health:         monitor,
		Logger:         logging.GetUILogger(),
	})

	logger.Info("Starting console", "url", profile.ServerURL, "profile", profile.Name)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("console failed: %w", err)
	}
	return nil
}

// initializeLogging keeps log records off the terminal while the console owns it
func initializeLogging(configManager *config.Manager, interactive bool) error {
	logConfig, err := configManager.LoadLoggingConfig()
	if err != nil {
		return err
	}
	cfg := logConfig.LoggerConfig(ProgramName)
	if interactive && (cfg.Output == "stdout" || cfg.Output == "stderr") {
		cfg.Output = filepath.Join(filepath.Dir(configManager.GetConfigPath()), ProgramName+".log")
	}
	if !interactive && cfg.Output == "stdout" {
		cfg.Output = "stderr"
	}
	return logging.InitGlobalLogger(cfg)
}

func resolveProfile(configManager *config.Manager, args CommandLineArgs) (*config.Profile, error) {
	profile, err := configManager.LoadProfile(args.Profile)
	if err != nil {
		var ce *errors.ContextualError
		if stderrors.As(err, &ce) {
			return nil, err
		}
		return nil, errors.NewConfigurationError(ProgramName).
			WithCode("profile_unavailable").
			WithOperation("load profile").
			WithUserMessage(fmt.Sprintf("Cannot load profile %q", args.Profile)).
			WithContext("profile", args.Profile).
			WithHints("profiles live in "+configManager.GetConfigPath(), "pass -profile to pick another").
			WithCause(err).
			WithoutStackTrace().
			WithoutLogging().
			Build()
	}
	if args.URL != "" {
		profile.ServerURL = args.URL
	}
	if args.Theme != "" {
		profile.Theme = args.Theme
	}
	if err := configManager.ValidateProfile(profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// callOnce performs --call and writes the highlighted result to out
func callOnce(client *protocol.Client, highlighter *content.SyntaxHighlighter, args CommandLineArgs, out io.Writer) error {
	var params interface{}
	if args.Params != "" {
		if !json.Valid([]byte(args.Params)) {
			return fmt.Errorf("--params is not valid JSON")
		}
		params = json.RawMessage(args.Params)
	}

	ctx := context.Background()
	result, err := client.Call(ctx, args.Call, params, args.Timeout)
	if err != nil {
		ce := errors.Classify(err)
		for _, hint := range ce.GetRecoveryHints() {
			fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
		}
		return fmt.Errorf("%s: %s", args.Call, ce.GetUserMessage())
	}

	body, err := highlighter.HighlightJSON(result)
	if err != nil {
		body = string(result)
	}
	fmt.Fprintln(out, body)
	return nil
}
