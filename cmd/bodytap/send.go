package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/obswire/bodytap"
	"github.com/obswire/bodytap/internal/config"
)

// cmdSend sends one or more requests to a URL through the capturing client.
// Repeated sends are paced with a rate limiter, and the config file is
// hot-reloaded (SIGHUP / file watch) while the loop runs, so capture flags
// and the size cap can be flipped mid-run.
func cmdSend(configPath string, args []string) int {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	urlFlag := fs.String("url", "", "target URL (required)")
	method := fs.String("method", http.MethodGet, "HTTP method")
	body := fs.String("body", "", "inline request body")
	bodyFile := fs.String("body-file", "", "file to read the request body from")
	contentType := fs.String("content-type", "application/json", "Content-Type for the request body")
	count := fs.Int("count", 1, "number of requests to send")
	rps := fs.Float64("rps", 5, "request rate for repeated sends")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *urlFlag == "" {
		fmt.Fprintln(os.Stderr, "Error: --url is required")
		return 1
	}
	if *count < 1 {
		fmt.Fprintf(os.Stderr, "Error: --count must be at least 1 (got %d)\n", *count)
		return 1
	}
	if *rps <= 0 {
		fmt.Fprintf(os.Stderr, "Error: --rps must be positive (got %v)\n", *rps)
		return 1
	}

	cfg, err := loadOrDefault(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	payload := *body
	if *bodyFile != "" {
		data, err := os.ReadFile(*bodyFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading body file: %v\n", err)
			return 1
		}
		payload = string(data)
	}

	client, transport := buildClient(cfg, logger)
	stopMetrics := serveMetrics(cfg.Metrics, transport, logger)
	defer stopMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Hot reload only matters while the send loop is running.
	if cfg.Reload.Enabled && *count > 1 {
		reloader := config.NewReloader(configPath, cfg, logger)
		reloader.Register(transport)
		if err := reloader.Start(ctx); err != nil {
			logger.Warn("config reloader not started", "error", err)
		} else {
			defer reloader.Stop()
		}
	}

	limiter := rate.NewLimiter(rate.Limit(*rps), 1)
	for i := 0; i < *count; i++ {
		if err := limiter.Wait(ctx); err != nil {
			logger.Info("send loop stopped", "sent", i)
			break
		}
		if err := sendOnce(ctx, client, *method, *urlFlag, payload, *contentType); err != nil {
			logger.Error("request failed", "error", err, "attempt", i+1)
		}
	}

	return 0
}

// sendOnce performs a single exchange and prints the recorded attributes.
func sendOnce(ctx context.Context, client *http.Client, method, url, payload, contentType string) error {
	sink := bodytap.MapSink{}
	ctx = bodytap.ContextWithSink(ctx, sink)

	var body io.Reader
	if payload != "" {
		body = strings.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if payload != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	n, err := io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if err != nil {
		return err
	}

	fmt.Printf("status=%d body_read=%d\n", resp.StatusCode, n)
	printSink(sink)
	return nil
}
