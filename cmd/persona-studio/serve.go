// ABOUTME: serve command: runs the HTTP API until interrupted
// ABOUTME: Server and shutdown watcher share an errgroup so either failure stops both

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/2389/persona-studio/internal/api"
	"github.com/2389/persona-studio/internal/config"
)

const banner = `
                                                 _             _ _
 _ __   ___ _ __ ___  ___  _ __   __ _       ___| |_ _   _  __| (_) ___
| '_ \ / _ \ '__/ __|/ _ \| '_ \ / _' |_____/ __| __| | | |/ _' | |/ _ \
| |_) |  __/ |  \__ \ (_) | | | | (_| |_____\__ \ |_| |_| | (_| | | (_) |
| .__/ \___|_|  |___/\___/|_| |_|\__,_|     |___/\__|\__,_|\__,_|_|\___/
|_|
`

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.HTTPAddr = addr
			}
			return runServe(cmd.Context(), cfg, path)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "override server.http_addr")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, configPath string) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	if configPath == "" {
		configPath = "(defaults)"
	}
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Store:     %s\n", cfg.Store.Driver)
	green.Print("    ▶ ")
	fmt.Printf("Replies:   %s..%s\n", cfg.Replies.DelayMin, cfg.Replies.DelayMax)
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:   %s\n", cfg.Metrics.Path)
	}
	fmt.Println()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	serverCfg := api.Config{
		Service:  a.svc,
		Personas: a.personas,
		Notices:  a.notices,
		Logger:   logger,
	}
	if cfg.Metrics.Enabled {
		serverCfg.Metrics = a.metrics
		serverCfg.MetricsPath = cfg.Metrics.Path
	}

	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.NewServer(serverCfg).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts end with the group so event streams close on shutdown
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	logger.Info("starting persona-studio",
		"http_addr", cfg.Server.HTTPAddr,
		"store", cfg.Store.Driver)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}
