package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/emltools/eml2pdf/internal/config"
	"github.com/emltools/eml2pdf/internal/server"
	"github.com/emltools/eml2pdf/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the conversion history web UI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.HistoryPath == "" {
			return fmt.Errorf("the web UI needs a history database; set --history or history_path")
		}

		conv, store, err := newConverter(cfg)
		if err != nil {
			return err
		}
		defer closeStore(store)

		// Uploads fall back to failure records when rendering is broken,
		// so a missing binary downgrades to a warning here.
		if err := conv.Probe(); err != nil {
			slog.Warn("renderer unavailable, uploads will fail until it is installed", "error", err)
		}

		srv := server.New(store, conv, cfg, slog.Default())
		if err := srv.LoadTemplates(web.Assets); err != nil {
			return fmt.Errorf("failed to load templates: %w", err)
		}

		httpSrv := &http.Server{
			Addr:         cfg.Address(),
			Handler:      srv.Router(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 5 * time.Minute, // SSE connections hold the response open
			IdleTimeout:  60 * time.Second,
		}

		errChan := make(chan error, 1)
		go func() {
			slog.Info("starting server", "url", cfg.URL())
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		open, err := cmd.Flags().GetBool("open")
		if err != nil {
			return err
		}
		if open {
			time.Sleep(500 * time.Millisecond) // give the listener time to come up
			if err := openBrowser(cfg.URL()); err != nil {
				slog.Warn("failed to open browser", "url", cfg.URL(), "error", err)
			}
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errChan:
			return fmt.Errorf("server failed: %w", err)
		case <-sigChan:
		}

		slog.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringP("output", "o", "", "Output directory for converted files")
	serveCmd.Flags().Bool("open", false, "Open the browser once the server starts")
	config.RegisterParseFlags(serveCmd)
	config.RegisterRenderFlags(serveCmd)
	config.RegisterBatchFlags(serveCmd)
	config.RegisterServerFlags(serveCmd)

	rootCmd.AddCommand(serveCmd)
}

// openBrowser opens the default browser at the given URL.
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	return cmd.Start()
}
