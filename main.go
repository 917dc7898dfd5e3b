// Package main is the entry point for the expense approval command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/yelinaung/expense-approval/internal/approval"
	"gitlab.com/yelinaung/expense-approval/internal/cli"
	"gitlab.com/yelinaung/expense-approval/internal/config"
	"gitlab.com/yelinaung/expense-approval/internal/database"
	"gitlab.com/yelinaung/expense-approval/internal/events"
	"gitlab.com/yelinaung/expense-approval/internal/logger"
	"gitlab.com/yelinaung/expense-approval/internal/models"
	"gitlab.com/yelinaung/expense-approval/internal/repository"
	"gitlab.com/yelinaung/expense-approval/internal/repository/memory"
	"gitlab.com/yelinaung/expense-approval/internal/telemetry"
	"go.opentelemetry.io/otel"
)

const meterName = "gitlab.com/yelinaung/expense-approval"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	buildInfo := fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("expense-approval %s\n", buildInfo)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Log.Info().Msg("Shutting down...")
		cancel()
	}()

	err := run(ctx, buildInfo, os.Args[1:])
	if err == nil {
		return
	}
	if errors.Is(err, cli.ErrUsage) {
		os.Exit(2)
	}

	var domainErr *models.Error
	if errors.As(err, &domainErr) {
		logger.Log.Error().
			Str("error_code", domainErr.Code).
			Str("kind", string(domainErr.Kind)).
			Msg(domainErr.Error())
	} else {
		logger.Log.Error().Err(err).Msg("Command failed")
	}
	os.Exit(1)
}

func run(ctx context.Context, buildInfo string, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.SetLevel(cfg.LogLevel)
	logger.SetFormat(cfg.LogFormat)
	logger.SetHashSalt(cfg.LogHashSalt)

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Exporter:       cfg.OTelExporter,
		Endpoint:       cfg.OTelEndpoint,
		Protocol:       cfg.OTelProtocol,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to flush telemetry")
		}
	}()

	app := &cli.App{Version: buildInfo, Out: os.Stdout, Err: os.Stderr}

	var (
		chains    approval.ChainRepository
		workflows approval.WorkflowRepository
	)
	if cfg.UsesMemoryStore() {
		logger.Log.Warn().Msg("Using in-memory store; state is lost when the process exits")
		app.Ephemeral = true
		chains = memory.NewApprovalChainStore()
		workflows = memory.NewExpenseWorkflowStore()
	} else {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		chains = repository.NewApprovalChainRepository(pool)
		workflows = repository.NewExpenseWorkflowRepository(pool)
		app.Migrate = func(ctx context.Context) error {
			return database.RunMigrations(ctx, pool)
		}
	}

	if cfg.ChainCacheTTL > 0 {
		chains = approval.NewCachedChainRepository(chains, cfg.ChainCacheTTL)
	}

	publisher := events.Multi{events.NewLogPublisher(logger.Log)}
	if counter, err := events.NewMetricPublisher(otel.Meter(meterName)); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to create event counter")
	} else {
		publisher = append(publisher, counter)
	}

	app.Chains = approval.NewChainService(chains, nil)
	app.Workflows = approval.NewWorkflowService(workflows, chains,
		approval.WithAutoApprovalThreshold(cfg.AutoApprovalThreshold),
		approval.WithAuthorizer(cfg),
		approval.WithPublisher(publisher),
	)

	return app.Run(ctx, args)
}
