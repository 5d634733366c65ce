// Command intervox-bridge serves the interview session over a websocket
// so a browser client provides the microphone, speaker, and UI.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/genai"

	"github.com/intervox-ai/intervox/internal/config"
	"github.com/intervox-ai/intervox/internal/dotenv"
	"github.com/intervox-ai/intervox/pkg/bridge"
	"github.com/intervox-ai/intervox/pkg/interview"
	"github.com/intervox-ai/intervox/pkg/live"
)

func buildHandler(cfg config.Config, client *genai.Client, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/v1/interview", bridge.Handler{
		Analyzer:  interview.NewService(client, cfg.TextModel),
		Transport: live.NewGeminiTransport(client),
		LiveModel: cfg.LiveModel,
		Voice:     cfg.Voice,
		Logger:    logger,
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return mux
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           buildHandler(cfg, client, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting bridge", "addr", cfg.Addr, "live_model", cfg.LiveModel)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("bridge stopped")
	return nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "intervox-bridge: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		fmt.Fprintf(os.Stderr, "intervox-bridge: %v\n", err)
		os.Exit(1)
	}
}
