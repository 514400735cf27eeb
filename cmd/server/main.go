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

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"frpanel/internal/api"
	"frpanel/internal/config"
	"frpanel/internal/frpconf"
	"frpanel/internal/metrics"
	"frpanel/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "frpanel: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	envErr := godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	pflag.StringVarP(&cfg.Paths.Document, "config", "c", cfg.Paths.Document, "path to the frpc.toml to manage")
	pflag.StringVar(&cfg.Paths.ProcessConfig, "process-config", cfg.Paths.ProcessConfig, "path to the client process configuration (YAML)")
	pflag.StringVar(&cfg.Server.Address, "addr", cfg.Server.Address, "HTTP listen address")
	pflag.Parse()

	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn("failed to load .env file", "error", envErr)
	}

	procCfg, err := config.LoadProcessConfig(cfg.Paths.ProcessConfig)
	if err != nil {
		return fmt.Errorf("load process config: %w", err)
	}
	clientCfg := procCfg.Client
	if err := clientCfg.Resolve(cfg.Paths.Document, cfg.Client); err != nil {
		return fmt.Errorf("resolve client config: %w", err)
	}

	m := metrics.New()
	store := frpconf.NewStore(clientCfg.DocumentPath)
	cs := service.NewConfigService(store, logger, m)
	pm := service.NewProcessManager(clientCfg, service.NewLogBuffer(cfg.Log.Capacity), logger, m)

	router := api.NewRouter(cs, pm, logger, m)

	// WriteTimeout must outlast a stop request, which may wait the full grace period.
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: clientCfg.StopGrace() + 20*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting frpanel",
			"address", cfg.Server.Address,
			"document", cs.Path(),
			"client", clientCfg.Command,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		pm.AutoStart(gctx)
		<-gctx.Done()

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), clientCfg.StopGrace()+30*time.Second)
		defer cancel()

		pm.Shutdown(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		logger.Info("server exited gracefully")
		return nil
	})

	return g.Wait()
}
