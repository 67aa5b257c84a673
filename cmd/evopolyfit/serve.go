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

	"github.com/spf13/cobra"

	"github.com/cwbudde/evopolyfit/internal/server"
	"github.com/cwbudde/evopolyfit/internal/store"
)

var (
	serveAddr       string
	serveDataDir    string
	shutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the job server",
	Long: `Serves the job API on --addr: create, list, cancel and stream jobs,
fetch best/diff images, manage checkpoints, and scrape /metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "./data", "Checkpoint store directory (empty = no checkpoints)")
	serveCmd.Flags().StringVar(&historyKind, "history", "", "Epoch history backend (memory, sqlite)")
	serveCmd.Flags().StringVar(&historyPath, "history-db", "history.db", "SQLite database for --history sqlite")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "Grace period for in-flight requests")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st *store.FSStore
	if serveDataDir != "" {
		var err error
		if st, err = store.NewFSStore(serveDataDir); err != nil {
			return fmt.Errorf("failed to create checkpoint store: %w", err)
		}
	}

	var history store.History
	if historyKind != "" {
		h, err := store.NewHistory(ctx, historyKind, historyPath)
		if err != nil {
			return err
		}
		defer h.Close()
		history = h
	}

	srv, err := server.NewServer(serveAddr, st, history)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}
