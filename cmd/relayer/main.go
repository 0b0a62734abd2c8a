// Command relayer runs the Aurum recurring-payment relayer: the HTTP API
// that accepts signed subscription intents and serves merchant-facing
// queries, and the background scheduler that drives due payments forward.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aurum-protocol/relayer/pkg/chain"
	"github.com/aurum-protocol/relayer/pkg/config"
	"github.com/aurum-protocol/relayer/pkg/da"
	"github.com/aurum-protocol/relayer/pkg/indexer"
	"github.com/aurum-protocol/relayer/pkg/ingestion"
	"github.com/aurum-protocol/relayer/pkg/intent"
	"github.com/aurum-protocol/relayer/pkg/metrics"
	"github.com/aurum-protocol/relayer/pkg/scheduler"
	"github.com/aurum-protocol/relayer/pkg/server"
	"github.com/aurum-protocol/relayer/pkg/store"
)

// defaultChainTag selects which registered chain newly submitted intents
// are verified and registered against.
const defaultChainTag = "sepolia"

func main() {
	root := &cobra.Command{
		Use:   "relayer",
		Short: "Runs the Aurum subscription relayer's API server and payment scheduler",
		RunE:  run,
	}
	root.Flags().Bool("no-scheduler", false, "disable the background payment scheduler, serving API traffic only")

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Fatal("relayer exited with error")
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := logrus.StandardLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	client, err := store.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.MigrateUp(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	chains := chain.NewRegistry()
	for tag, chainCfg := range cfg.Chains {
		if chainCfg.RPCURL == "" {
			continue
		}
		gateway, err := chain.NewEVMGateway(ctx, tag, chainCfg.RPCURL, chainCfg.SubscriptionManagerAddr, cfg.RelayerPrivateKey)
		if err != nil {
			return fmt.Errorf("build gateway for chain %s: %w", tag, err)
		}
		chains.Register(gateway)
		logger.WithField("chain", tag).Info("registered chain gateway")
	}

	daClient := da.NewClient(cfg)
	indexerClient := indexer.NewClient(cfg)
	metricsReg := metrics.New()

	tokens := intent.NewTokenRegistry()
	for tag, chainCfg := range cfg.Chains {
		if chainCfg.PYUSDAddr != "" {
			tokens.RegisterPYUSD(tag, chainCfg.PYUSDAddr)
		}
	}

	ingestionSvc := ingestion.New(cfg, client, chains, daClient, defaultChainTag)
	handlers := server.New(ingestionSvc, client, chains, indexerClient, daClient, tokens, logger)
	router := server.NewRouter(handlers, cfg.JWTSecret, logger, metricsReg.Handler())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler: router,
	}

	runScheduler, _ := cmd.Flags().GetBool("no-scheduler")
	runScheduler = !runScheduler

	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	if runScheduler {
		sched := scheduler.New(client, chains, daClient, metricsReg)
		go runTicks(schedulerCtx, sched, time.Duration(cfg.ExecutionIntervalSeconds)*time.Second, logger)
	}

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("relayer API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down relayer")
	cancelScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("http server shutdown error")
	}

	return nil
}

// runTicks drives sched.Tick on a fixed interval until ctx is cancelled.
func runTicks(ctx context.Context, sched *scheduler.Scheduler, interval time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sched.Tick(ctx); err != nil {
				logger.WithError(err).Error("scheduler tick failed")
			}
		}
	}
}
