package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:           "helpdesk",
		Short:         "Multi-tenant helpdesk API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	rootCmd.AddCommand(
		&cobra.Command{Use: "serve", Short: "Run the HTTP API, worker pool and scheduler", RunE: runServe},
		&cobra.Command{Use: "migrate", Short: "Apply pending database migrations", RunE: runMigrate},
		newTenantCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger.With(zap.String("service", cfg.App.Name)), nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	ctx := cmd.Context()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer rdb.Close()

	app, err := buildApplication(ctx, cfg, logger, pg, rdb)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.pool.Run(gctx) })
	g.Go(func() error { return app.scheduler.Run(gctx) })
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.http.Listen(cfg.App.Addr()); err != nil {
			return fmt.Errorf("http listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.http.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := app.jobs.ResumePending(ctx); err != nil {
		logger.Warn("failed to resume pending jobs", zap.Error(err))
	}
	return g.Wait()
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	return persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), logger)
}

func newTenantCommand() *cobra.Command {
	var input service.CreateTenantInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant with built-in roles and an administrator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pg.Close()

			pool := pg.PoolHandle()
			// running servers pick up the new roles on their next authz.reload
			tenants := service.NewTenantService(service.TenantDependencies{
				TenantRepo: repository.NewTenantRepository(pool),
				RoleRepo:   repository.NewRoleRepository(pool),
				UserRepo:   repository.NewUserRepository(pool),
				BcryptCost: cfg.Auth.BcryptCost,
				Logger:     logger,
			})
			result, err := tenants.CreateTenant(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tenant %s (%s) created, admin %s\n",
				result.Tenant.Slug, result.Tenant.ID, result.Admin.Email)
			return nil
		},
	}
	flags := create.Flags()
	flags.StringVar(&input.Name, "name", "", "tenant display name")
	flags.StringVar(&input.Slug, "slug", "", "tenant slug used at login")
	flags.StringVar(&input.TimeZone, "time-zone", "UTC", "IANA time zone")
	flags.StringVar(&input.AdminName, "admin-name", "Administrator", "administrator name")
	flags.StringVar(&input.AdminEmail, "admin-email", "", "administrator email")
	flags.StringVar(&input.AdminPassword, "admin-password", "", "administrator password")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("slug")
	_ = create.MarkFlagRequired("admin-email")
	_ = create.MarkFlagRequired("admin-password")

	cmd := &cobra.Command{Use: "tenant", Short: "Tenant administration"}
	cmd.AddCommand(create)
	return cmd
}
