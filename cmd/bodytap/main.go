// Package main is the entrypoint for the bodytap capture CLI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/obswire/bodytap"
	"github.com/obswire/bodytap/internal/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// defaultConfigPath is where the CLI looks for configuration unless told
// otherwise.
const defaultConfigPath = "bodytap.yaml"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Global flags
	fs := flag.NewFlagSet("bodytap", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	showVersion := fs.Bool("version", false, "print version and exit")

	// Parse only known flags before the subcommand
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			printUsage()
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *showVersion {
		fmt.Printf("bodytap %s\n", Version)
		return 0
	}

	// Setup structured logging (JSON format); subcommands rebuild the
	// logger from configuration once it is loaded.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Determine subcommand
	subcmd := "demo"
	remaining := fs.Args()
	if len(remaining) > 0 {
		subcmd = remaining[0]
		remaining = remaining[1:]
	}

	switch subcmd {
	case "demo":
		return cmdDemo(*configPath)
	case "send":
		return cmdSend(*configPath, remaining)
	case "validate":
		return cmdValidate(*configPath)
	case "init":
		return cmdInit(remaining)
	case "help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", subcmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `bodytap %s - bounded HTTP body capture for instrumented clients

Usage:
  bodytap [flags] <command>

Commands:
  demo       Run captured exchanges against a local echo server (default)
  send       Send requests to a URL through the capturing client
  validate   Validate configuration file
  init       Generate a new bodytap.yaml
  help       Show this help message

Flags:
  --config string   Path to configuration file (default "bodytap.yaml")
  --version         Print version and exit

Examples:
  bodytap demo
  bodytap send --url https://httpbin.org/post --method POST --body '{"k":"v"}'
  bodytap send --url http://localhost:8080/echo --count 100 --rps 10
  bodytap validate --config bodytap.yaml
  bodytap init --profile dev
`, Version)
}

// cmdValidate loads and validates the configuration file.
func cmdValidate(configPath string) int {
	logger := slog.Default()
	logger.Info("validating configuration", "config", configPath)

	if _, err := config.Load(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Println("config valid")
	return 0
}

// cmdInit generates a new bodytap.yaml with the specified profile.
func cmdInit(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	profile := fs.String("profile", "dev", "configuration profile (dev or prod)")
	output := fs.String("output", defaultConfigPath, "output file path")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	var profileYAML string
	switch *profile {
	case "prod":
		profileYAML = config.ProdProfile()
	case "dev":
		profileYAML = config.DevProfile()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown profile %q (use dev or prod)\n", *profile)
		return 1
	}

	if err := os.WriteFile(*output, []byte(profileYAML), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *output, err)
		return 1
	}

	fmt.Printf("Generated %s with profile %q\n", *output, *profile)
	return 0
}

// loadOrDefault loads the config file. When the default config file is
// absent, it falls back to a built-in configuration with both capture
// directions enabled, so demo and send work out of the box.
func loadOrDefault(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) && path == defaultConfigPath {
		var c config.Config
		c.Capture.RequestBody = true
		c.Capture.ResponseBody = true
		config.ApplyDefaults(&c)
		return &c, nil
	}
	return nil, err
}

// newLogger builds a slog.Logger from the logging section of the config.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// buildClient assembles the instrumented HTTP client from configuration.
func buildClient(cfg *config.Config, logger *slog.Logger) (*http.Client, *bodytap.Transport) {
	client, transport := bodytap.NewClient(bodytap.Config{
		CaptureRequestBody:  cfg.Capture.RequestBody,
		CaptureResponseBody: cfg.Capture.ResponseBody,
		MaxBodySize:         cfg.Capture.MaxBodySize,
	},
		bodytap.WithBase(bodytap.NewBaseTransport(cfg.Client)),
		bodytap.WithLogger(logger),
		bodytap.WithExchangeLog(),
	)
	client.Timeout = cfg.Client.Timeout.Duration
	transport.SetBuildInfo(Version)
	return client, transport
}

// serveMetrics starts the Prometheus exposition listener when enabled and
// returns a shutdown function.
func serveMetrics(cfg config.MetricsConfig, transport *bodytap.Transport, logger *slog.Logger) func() {
	if !cfg.Enabled {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", transport.MetricsHandler())
	srv := &http.Server{Addr: cfg.Listen, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics listener error", "error", err)
		}
	}()
	logger.Info("metrics listener started", "addr", cfg.Listen)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
