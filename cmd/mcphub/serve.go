package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"code.cloudfoundry.org/lager/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/mcphub/mcphub/internal/api"
	"github.com/mcphub/mcphub/internal/config"
	"github.com/mcphub/mcphub/internal/detection"
	"github.com/mcphub/mcphub/internal/mcp"
	"github.com/mcphub/mcphub/internal/metrics"
	"github.com/mcphub/mcphub/internal/service"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "serve <" + strings.Join(service.Names(), "|") + ">",
		Short:     "Serve a tool server over HTTP JSON-RPC",
		Args:      cobra.ExactArgs(1),
		ValidArgs: service.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := service.Lookup(args[0])
			if err != nil {
				return err
			}

			v.SetDefault("server.port", svc.DefaultPort)
			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			return serve(cmd.Context(), svc, cfg)
		},
	}

	cmd.Flags().Int("port", 0, "listen port (default: the service's own port, or SERVER_PORT)")
	_ = v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	return cmd
}

func newLogger(level string) (lager.Logger, error) {
	minLevel, err := config.ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	logger := lager.NewLogger("mcphub")
	logger.RegisterSink(lager.NewWriterSink(os.Stderr, minLevel))
	return logger, nil
}

func serve(ctx context.Context, svc service.Service, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger = logger.Session(svc.Name, lager.Data{"instance": cfg.InstanceID})

	composition, err := svc.Compose(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := composition.Close(); err != nil {
			logger.Error("failed-to-release-resources", err)
		}
	}()

	m := metrics.New(svc.Name)
	opts := []mcp.Option{
		mcp.WithObserver(m),
		mcp.WithToolTimeout(cfg.ToolTimeout),
	}
	if cfg.Guard.Enabled {
		engine, err := detection.NewEngine(cfg.Guard.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to create detection engine: %w", err)
		}
		opts = append(opts, mcp.WithArgumentGuard(engine))
	}

	dispatcher, err := mcp.NewDispatcher(composition.Registry, svc.Info, opts...)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           api.NewAPI(cfg, dispatcher, m, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", lager.Data{
			"addr":  server.Addr,
			"tools": composition.Registry.Len(),
			"guard": cfg.Guard.Enabled,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error starting server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting-down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}
