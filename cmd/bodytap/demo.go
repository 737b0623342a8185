package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/obswire/bodytap"
)

// cmdDemo runs three exchanges against a local echo server: a GET with a
// response body, a small POST, and an oversized POST that gets truncated in
// the recorded attributes. Captured attributes are printed per exchange.
func cmdDemo(configPath string) int {
	cfg, err := loadOrDefault(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	client, transport := buildClient(cfg, logger)
	stopMetrics := serveMetrics(cfg.Metrics, transport, logger)
	defer stopMetrics()

	srv, baseURL, err := startEchoServer()
	if err != nil {
		logger.Error("starting echo server", "error", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("=== GET request (response body capture) ===")
	if err := exchange(ctx, client, http.MethodGet, baseURL+"/json", ""); err != nil {
		logger.Error("GET exchange failed", "error", err)
		return 1
	}

	fmt.Println("\n=== POST request (both bodies captured) ===")
	body := fmt.Sprintf(`{"message": "Hello, World!", "timestamp": %d}`, time.Now().UnixMilli())
	if err := exchange(ctx, client, http.MethodPost, baseURL+"/echo", body); err != nil {
		logger.Error("POST exchange failed", "error", err)
		return 1
	}

	fmt.Println("\n=== Oversized POST (truncated in attributes) ===")
	large := `{"data": "` + strings.Repeat("x", 5000) + `"}`
	if err := exchange(ctx, client, http.MethodPost, baseURL+"/echo", large); err != nil {
		logger.Error("oversized POST exchange failed", "error", err)
		return 1
	}

	fmt.Println("\nAll exchanges completed.")
	return 0
}

// exchange sends one request with a per-exchange attribute sink and prints
// what was recorded.
func exchange(ctx context.Context, client *http.Client, method, url, body string) error {
	sink := bodytap.MapSink{}
	ctx = bodytap.ContextWithSink(ctx, sink)

	var payload io.Reader
	if body != "" {
		payload = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
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

// printSink prints recorded attributes in a stable order, shortening long
// values for the terminal.
func printSink(sink bodytap.MapSink) {
	if len(sink) == 0 {
		fmt.Println("  (no attributes recorded)")
		return
	}

	keys := make([]string, 0, len(sink))
	for k := range sink {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := fmt.Sprintf("%v", sink[k])
		if len(v) > 120 {
			v = v[:117] + "..."
		}
		fmt.Printf("  %s = %s\n", k, v)
	}
}

// startEchoServer starts a local HTTP server with a /json endpoint and an
// /echo endpoint that reflects the request body, and returns its base URL.
func startEchoServer() (*http.Server, string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"service": "bodytap-demo", "status": "ok"}`)
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		_, _ = io.Copy(w, r.Body)
	})

	srv := &http.Server{Handler: mux}
	go func() {
		_ = srv.Serve(ln)
	}()

	return srv, "http://" + ln.Addr().String(), nil
}
