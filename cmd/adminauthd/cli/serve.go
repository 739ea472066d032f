package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/internal/httpapi"
	"github.com/MrEthical07/adminauth/store/sqlstore"
)

func newServeCmd(a *app) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.runServe(ctx, migrate)
		},
	}

	cmd.Flags().String("addr", "", "HTTP listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply migrations before serving")
	_ = a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func (a *app) runServe(ctx context.Context, migrate bool) error {
	logger, err := a.cfg.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	engineCfg, err := a.cfg.Engine()
	if err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	store, err := sqlstore.Open(ctx, a.cfg.Store(), logger.Named("store"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if migrate {
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	n, err := store.Users().Count(ctx)
	if err != nil {
		logger.Warn("failed to count users", zap.Error(err))
	} else if n == 0 {
		logger.Warn("no administrator found, run: adminauthd bootstrap-admin")
	}

	rdb := redis.NewClient(a.cfg.RedisOptions())
	defer rdb.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	builder := adminauth.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithStore(store).
		WithLogger(logger.Named("engine"))
	if len(a.cfg.Roles) > 0 {
		builder = builder.WithRoles(a.cfg.Roles)
	}
	if engineCfg.Audit.Enabled {
		builder = builder.WithAuditSink(sqlstore.NewActivitySink(store))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info("engine ready",
		zap.String("signing_algorithm", report.SigningAlgorithm),
		zap.Duration("inactivity_ceiling", report.InactivityCeiling),
		zap.Bool("distinct_reviewer", report.RequireDistinctReviewer),
	)
	for _, w := range report.Warnings {
		logger.Warn("security posture", zap.String("warning", w))
	}

	srv := httpapi.New(a.cfg.HTTP(), engine, store, logger.Named("http"))
	return srv.Run(ctx)
}
