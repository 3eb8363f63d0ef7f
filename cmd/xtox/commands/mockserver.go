package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/xtox/cmd/xtox/ui"
	"github.com/spherical/xtox/internal/stubserver"
)

var (
	mockAddr    string
	mockToken   string
	mockLatency time.Duration
)

var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Run a local stand-in for the conversion service",
	Long: `Serve the conversion API from memory for development. LaTeX sources
become a one-page PDF; audio is tagged rather than transcoded.

Point the client at it with BACKEND_URL=http://localhost:8000.`,
	Args: cobra.NoArgs,
	RunE: runMockServer,
}

func init() {
	mockServerCmd.Flags().StringVar(&mockAddr, "addr", ":8000", "listen address")
	mockServerCmd.Flags().StringVar(&mockToken, "token", "", "require this bearer token")
	mockServerCmd.Flags().DurationVar(&mockLatency, "latency", 3*time.Second, "artificial conversion delay")
	rootCmd.AddCommand(mockServerCmd)
}

func runMockServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stub := stubserver.New(stubserver.Config{
		Token:           mockToken,
		MaxDocumentSize: cfg.Document.MaxFileSize,
		MaxAudioSize:    cfg.Audio.MaxFileSize,
		Latency:         mockLatency,
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:              mockAddr,
		Handler:           stub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	ui.Info("Mock conversion service listening on %s (API under /api)", mockAddr)
	if mockToken != "" {
		ui.Info("Bearer token required")
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	ui.Info("Mock conversion service stopped")
	return nil
}
