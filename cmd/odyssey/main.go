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

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-pharmacy/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/app"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/auth"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/inventory"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/masterdata"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/observability"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/procurement"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/rbac"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/shared"
	"github.com/odyssey-erp/odyssey-pharmacy/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	if len(os.Args) > 1 {
		os.Exit(runCommand(cfg, os.Args[1], os.Args[2:]))
	}

	if err := serve(cfg); err != nil {
		os.Exit(1)
	}
}

func runCommand(cfg *app.Config, name string, args []string) int {
	switch name {
	case "token":
		return cli.IssueTokenCommand(cli.TokenOptions{
			Args:   args,
			Secret: cfg.AuthTokenSecret,
			Issuer: cfg.AuthTokenIssuer,
			Stdout: os.Stdout,
			Stderr: os.Stderr,
		})
	case "jobs":
		return runJobsCommand(cfg, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected token or jobs)\n", name)
		return 2
	}
}

func runJobsCommand(cfg *app.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: odyssey jobs trigger <task> [key=value...] | odyssey jobs stats")
		return 2
	}
	jobsCLI, err := cli.NewJobsCLI(cfg.Redis())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer jobsCLI.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "jobs trigger: task name required")
			return 2
		}
		info, err := jobsCLI.Trigger(ctx, args[1], args[2:])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return 0
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if err := cli.WriteStats(os.Stdout, stats); err != nil {
			return 1
		}
		return 0
	default:
		fmt.Fprintf(os.Stderr, "jobs: unknown subcommand %q\n", args[0])
		return 2
	}
}

func serve(cfg *app.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.Database())
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return err
	}
	defer dbpool.Close()

	redisCfg := cfg.Redis()
	redisOpts := asynq.RedisClientOpt{Addr: redisCfg.Addr, Password: redisCfg.Password, DB: redisCfg.DB}
	jobClient := jobs.NewClient(redisOpts, logger)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	rbacMiddleware := rbac.Middleware{Logger: logger}
	tokens := auth.NewTokenService(cfg.AuthTokenSecret, cfg.AuthTokenIssuer)

	masterRepo := masterdata.NewRepository(dbpool)
	inventoryRepo := inventory.NewRepository(dbpool)
	synchronizer := inventory.NewSynchronizer(inventory.SyncConfig{FreeQuantityPolicy: cfg.FreeQuantityPolicy()})

	procurementRepo := procurement.NewRepository(dbpool)
	procurementService := procurement.NewService(procurementRepo, masterRepo, synchronizer, procurement.ServiceConfig{
		Approvals:           approvalRecorder,
		Audit:               auditLogger,
		Idempotency:         idempotencyStore,
		Events:              jobClient,
		Metrics:             metrics,
		Logger:              logger,
		MaxItems:            cfg.GRNMaxItems,
		ApprovalParallelism: cfg.BulkApproveParallelism,
	})

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Tokens:             tokens,
		ProcurementHandler: procurement.NewHandler(logger, procurementService, rbacMiddleware),
		InventoryHandler:   inventory.NewHandler(logger, inventoryRepo, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			serverErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return err
	}
	select {
	case err := <-serverErr:
		return err
	default:
		return nil
	}
}
