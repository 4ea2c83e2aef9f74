package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/core/api"
	"github.com/solatis/rulekeeper/internal/core/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start gRPC rule evaluation service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "gRPC server host")
	serveCmd.Flags().Int("port", 0, "gRPC server port")
	serveCmd.Flags().Int("metrics-port", 0, "Prometheus metrics port (0 disables)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("metrics-port") {
		cfg.Server.MetricsPort, _ = cmd.Flags().GetInt("metrics-port")
	}

	database, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	evaluator, err := newEvaluator(cfg, database, logger)
	if err != nil {
		return err
	}

	service, err := api.NewRuleEvaluationService(evaluator, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg.Server, service, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting rulekeeper",
		slog.String("version", Version),
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("empty_root_policy", cfg.Engine.EmptyRootPolicy.String()),
	)
	errChan := make(chan error, 2)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	var metricsServer *server.MetricsServer
	if cfg.Server.MetricsPort > 0 {
		metricsServer = server.NewMetricsServer(cfg.Server.Host, cfg.Server.MetricsPort, logger)
		logger.Info("serving metrics",
			slog.Int("port", cfg.Server.MetricsPort),
			slog.String("path", server.MetricsPath),
		)
		go func() {
			errChan <- metricsServer.Start(ctx)
		}()
	}

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 35*time.Second)
		defer cancel()
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown failed", slog.Any("error", err))
			}
		}
		return grpcServer.Shutdown(shutdownCtx)
	}
}
