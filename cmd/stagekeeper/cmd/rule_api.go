package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/stagekeeper/internal/core/api"
	"github.com/solatis/stagekeeper/internal/core/auth"
	"github.com/solatis/stagekeeper/internal/core/config"
	"github.com/solatis/stagekeeper/internal/core/db"
	"github.com/solatis/stagekeeper/internal/core/server"
	"github.com/solatis/stagekeeper/internal/core/telemetry"
)

var ruleAPICmd = &cobra.Command{
	Use:   "rule-api",
	Short: "Start gRPC rule API service",
	RunE:  runRuleAPI,
}

func init() {
	rootCmd.AddCommand(ruleAPICmd)
	ruleAPICmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	ruleAPICmd.Flags().Int("port", 50052, "gRPC server port")
}

func runRuleAPI(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiCfg := cfg.RuleAPI
	if cmd.Flags().Changed("host") {
		apiCfg.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		apiCfg.Port, _ = cmd.Flags().GetInt("port")
	}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	database, queries, err := openCurrentDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set SK_HMAC_SECRET environment variable)")
	}
	authenticator := auth.NewAuthenticator(secrets, queries)

	catalog, err := buildCatalog()
	if err != nil {
		return err
	}

	service, err := api.NewRuleAPIService(db.NewRuleStore(queries), db.NewListStore(queries), catalog, &apiCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(&apiCfg, service, authenticator, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting StageKeeper rule API",
		"version", Version,
		"host", apiCfg.Host,
		"port", apiCfg.Port,
		"secrets", len(secrets),
		"tracing", cfg.Telemetry.Enabled,
	)
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), apiCfg.RequestTimeout+5*time.Second)
		defer cancel()
		return grpcServer.Shutdown(shutdownCtx)
	}
}
