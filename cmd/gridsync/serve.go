package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/javajack/gridsync/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type serveFlags struct {
	cfg       server.Config
	logLevel  string
	logFormat string
}

func newServeCmd() *cobra.Command {
	f := &serveFlags{cfg: server.DefaultConfig()}
	if secret := os.Getenv("SECRET_KEY"); secret != "" {
		f.cfg.Secret = secret
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), f.logLevel, f.logFormat)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, f.cfg, logger)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.cfg.Addr, "addr", f.cfg.Addr, "Listen address")
	fl.StringVar(&f.cfg.Secret, "secret", f.cfg.Secret, "Token signing secret (default from SECRET_KEY)")
	fl.DurationVar(&f.cfg.TokenTTL, "token-ttl", f.cfg.TokenTTL, "Lifetime of issued tokens")
	fl.IntVar(&f.cfg.Rows, "rows", f.cfg.Rows, "Rows of a new sheet")
	fl.IntVar(&f.cfg.Columns, "columns", f.cfg.Columns, "Columns of a new sheet")
	fl.IntVar(&f.cfg.MaxRows, "max-rows", f.cfg.MaxRows, "Row limit for add-row")
	fl.IntVar(&f.cfg.MaxColumns, "max-columns", f.cfg.MaxColumns, "Column limit for add-column")
	fl.BoolVar(&f.cfg.Recalculate, "recalc", f.cfg.Recalculate, "Recompute dependent formulas after each edit")
	fl.IntVar(&f.cfg.SendBuffer, "send-buffer", f.cfg.SendBuffer, "Outbound frames queued per session before dropping")
	fl.Int64Var(&f.cfg.MaxUploadBytes, "max-upload-bytes", f.cfg.MaxUploadBytes, "Largest accepted import upload")
	fl.DurationVar(&f.cfg.ShutdownTimeout, "shutdown-timeout", f.cfg.ShutdownTimeout, "Grace period for in-flight requests on shutdown")
	fl.StringVar(&f.logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error")
	fl.StringVar(&f.logFormat, "log-format", "json", "Log format: json or console")
	return cmd
}

func newLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	switch format {
	case "json":
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Logger{}, fmt.Errorf("invalid log format %q (must be json or console)", format)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// serve runs the server until ctx is cancelled, then shuts it down within
// cfg.ShutdownTimeout.
func serve(ctx context.Context, cfg server.Config, logger zerolog.Logger) error {
	srv, err := server.New(cfg, logger)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
