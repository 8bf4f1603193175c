package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cityresilience/scenario-engine/internal/config"
	"github.com/cityresilience/scenario-engine/pkg/edge"
	"github.com/cityresilience/scenario-engine/pkg/runner"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP edge",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	closeAutoload, err := maybeStartAutoload(cfg, s, logger)
	if err != nil {
		return err
	}
	defer closeAutoload()

	facade := buildFacade(cfg, s, logger)
	server := edge.New(cfg.Addr(), facade, edge.WithLogger(logger))

	gcTicker := time.NewTicker(config.RegistryGCInterval)
	defer gcTicker.Stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-gcTicker.C:
				facade.RunRegistryGC(runner.DefaultGCOptions)
			}
		}
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
