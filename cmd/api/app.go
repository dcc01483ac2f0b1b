package main

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/notify"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	"github.com/spec-kit/helpdesk-service/internal/storage"
	"github.com/spec-kit/helpdesk-service/internal/worker"
)

const (
	jobExportsCleanup = "exports.cleanup"
	jobAuthzReload    = "authz.reload"
	jobJobsResume     = "jobs.resume"
)

// repositories groups every postgres repository.
type repositories struct {
	tenants        repository.TenantRepository
	users          repository.UserRepository
	roles          repository.RoleRepository
	apiKeys        repository.APIKeyRepository
	resets         repository.PasswordResetRepository
	contacts       repository.ContactRepository
	teams          repository.TeamRepository
	tickets        repository.TicketRepository
	history        repository.TicketHistoryRepository
	slaRules       repository.SLARuleRepository
	notifications  repository.NotificationRepository
	emailTemplates repository.EmailTemplateRepository
	appointments   repository.AppointmentRepository
	exports        repository.ExportJobRepository
	imports        repository.ImportJobRepository
}

func newRepositories(pg *persistence.Postgres) repositories {
	pool := pg.PoolHandle()
	return repositories{
		tenants:        repository.NewTenantRepository(pool),
		users:          repository.NewUserRepository(pool),
		roles:          repository.NewRoleRepository(pool),
		apiKeys:        repository.NewAPIKeyRepository(pool),
		resets:         repository.NewPasswordResetRepository(pool),
		contacts:       repository.NewContactRepository(pool),
		teams:          repository.NewTeamRepository(pool),
		tickets:        repository.NewTicketRepository(pool),
		history:        repository.NewTicketHistoryRepository(pool),
		slaRules:       repository.NewSLARuleRepository(pool),
		notifications:  repository.NewNotificationRepository(pool),
		emailTemplates: repository.NewEmailTemplateRepository(pool),
		appointments:   repository.NewAppointmentRepository(pool),
		exports:        repository.NewExportJobRepository(pool),
		imports:        repository.NewImportJobRepository(pool),
	}
}

// application is the fully wired server process.
type application struct {
	cfg       *config.Config
	logger    *zap.Logger
	http      *fiber.App
	pool      *worker.Pool
	scheduler *worker.Scheduler
	jobs      *service.JobService
	enforcer  *auth.Enforcer
}

func buildApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger, pg *persistence.Postgres, rdb *persistence.Redis) (*application, error) {
	metrics := observability.NewMetrics()
	repos := newRepositories(pg)

	files, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	enforcer, err := auth.NewEnforcer(repos.roles, repos.users, logger)
	if err != nil {
		return nil, fmt.Errorf("init authorizer: %w", err)
	}
	if err := enforcer.Reload(ctx); err != nil {
		return nil, fmt.Errorf("load authorization policies: %w", err)
	}

	pool := worker.NewPool(cfg.Jobs.Workers, cfg.Jobs.QueueSize, logger.Named("worker"), metrics)
	dispatcher := worker.NewAsyncDispatcher(events.NewInMemoryDispatcher(logger), pool, logger)

	notifications := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo:  repos.notifications,
		EmailTemplateRepo: repos.emailTemplates,
		UserRepo:          repos.users,
		TenantRepo:        repos.tenants,
		TicketRepo:        repos.tickets,
		TeamRepo:          repos.teams,
		AppointmentRepo:   repos.appointments,
		ExportRepo:        repos.exports,
		ImportRepo:        repos.imports,
		Renderer:          notify.NewRenderer(),
		Sender:            notify.NewSender(cfg.Notification, logger),
		Dispatcher:        dispatcher,
		PublicURL:         cfg.Notification.PublicURL,
		Logger:            logger,
	})
	notifications.RegisterHandlers()

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		TenantRepo:        repos.tenants,
		UserRepo:          repos.users,
		PasswordResetRepo: repos.resets,
		Mailer:            notifications,
		Logger:            logger,
	})
	tenants := service.NewTenantService(service.TenantDependencies{
		TenantRepo: repos.tenants,
		RoleRepo:   repos.roles,
		UserRepo:   repos.users,
		Authorizer: enforcer,
		BcryptCost: cfg.Auth.BcryptCost,
		Logger:     logger,
	})
	users := service.NewUserService(service.UserDependencies{
		UserRepo:   repos.users,
		RoleRepo:   repos.roles,
		TenantRepo: repos.tenants,
		Authorizer: enforcer,
		Mailer:     notifications,
		BcryptCost: cfg.Auth.BcryptCost,
		Logger:     logger,
	})
	roles := service.NewRoleService(service.RoleDependencies{RoleRepo: repos.roles, Authorizer: enforcer})
	apiKeys := service.NewAPIKeyService(service.APIKeyDependencies{APIKeyRepo: repos.apiKeys, UserRepo: repos.users})
	contacts := service.NewContactService(service.ContactDependencies{ContactRepo: repos.contacts})
	teams := service.NewTeamService(service.TeamDependencies{TeamRepo: repos.teams, UserRepo: repos.users})
	slaService := service.NewSLAService(service.SLADependencies{
		RuleRepo:    repos.slaRules,
		TicketRepo:  repos.tickets,
		TenantRepo:  repos.tenants,
		HistoryRepo: repos.history,
		Engine:      sla.NewEngine(cfg.SLA.WarningRatio()),
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})
	assignment := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:  repos.tickets,
		UserRepo:    repos.users,
		TeamRepo:    repos.teams,
		HistoryRepo: repos.history,
		SLA:         slaService,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  repos.tickets,
		ContactRepo: repos.contacts,
		TeamRepo:    repos.teams,
		UserRepo:    repos.users,
		HistoryRepo: repos.history,
		SLA:         slaService,
		Assignment:  assignment,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	appointments := service.NewAppointmentService(service.AppointmentDependencies{
		AppointmentRepo: repos.appointments,
		UserRepo:        repos.users,
		ContactRepo:     repos.contacts,
		TicketRepo:      repos.tickets,
		TenantRepo:      repos.tenants,
		Dispatcher:      dispatcher,
		Logger:          logger,
	})
	jobs := service.NewJobService(service.JobDependencies{
		ExportRepo:     repos.exports,
		ImportRepo:     repos.imports,
		ContactRepo:    repos.contacts,
		ContactService: contacts,
		TicketService:  tickets,
		UserService:    users,
		Storage:        files,
		Queue:          pool,
		Dispatcher:     dispatcher,
		Config:         cfg.Jobs,
		Logger:         logger,
	})

	scheduler := worker.NewScheduler(logger.Named("scheduler"),
		worker.WithLocker(worker.NewRedisLocker(rdb.Client), cfg.Jobs.LockTTL()),
		worker.WithMetrics(metrics),
	)
	if err := registerJobs(scheduler, cfg.Jobs, slaService, jobs, enforcer, logger); err != nil {
		return nil, err
	}

	var limiter auth.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = auth.NewRedisRateLimiter(rdb.Client, cfg.RateLimit.Requests, cfg.RateLimit.Window())
	}
	authMiddleware := auth.NewAuthMiddleware(auth.AuthMiddlewareDependencies{
		Tokens:     authService.TokenManager(),
		Users:      repos.users,
		APIKeys:    repos.apiKeys,
		Authorizer: enforcer,
		Limiter:    limiter,
		Logger:     logger,
	})

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
		BodyLimit:             32 << 20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    rdb,
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(users, roles, apiKeys),
		Settings:       handlers.NewSettingsHandler(tenants, appointments),
		Contacts:       handlers.NewContactsHandler(contacts),
		Teams:          handlers.NewTeamsHandler(teams),
		Tickets:        handlers.NewTicketsHandler(tickets, assignment, slaService),
		SLA:            handlers.NewSLAHandler(slaService, scheduler),
		Notifications:  handlers.NewNotificationsHandler(notifications),
		Appointments:   handlers.NewAppointmentsHandler(appointments),
		Jobs:           handlers.NewJobsHandler(jobs),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	return &application{
		cfg:       cfg,
		logger:    logger,
		http:      app,
		pool:      pool,
		scheduler: scheduler,
		jobs:      jobs,
		enforcer:  enforcer,
	}, nil
}

func registerJobs(scheduler *worker.Scheduler, cfg config.JobsConfig, slaService *service.SLAService, jobs *service.JobService, enforcer *auth.Enforcer, logger *zap.Logger) error {
	return registerAll(scheduler,
		worker.Job{
			Name: handlers.SLAEvaluateJob,
			Spec: cfg.SLAEvaluateSpec,
			Run: func(ctx context.Context) error {
				summary, err := slaService.Evaluate(ctx)
				if err != nil {
					return err
				}
				if summary.Warned > 0 || summary.Breached > 0 {
					logger.Info("sla evaluation",
						zap.Int("scanned", summary.Scanned),
						zap.Int("warned", summary.Warned),
						zap.Int("breached", summary.Breached),
					)
				}
				return nil
			},
		},
		worker.Job{
			Name: jobExportsCleanup,
			Spec: cfg.ExportCleanupSpec,
			Run: func(ctx context.Context) error {
				expired, err := jobs.CleanupExports(ctx)
				if expired > 0 {
					logger.Info("expired exports removed", zap.Int("count", expired))
				}
				return err
			},
		},
		worker.Job{
			Name: jobJobsResume,
			Spec: cfg.ResumeSpec,
			Run:  jobs.ResumePending,
		},
		worker.Job{
			Name: jobAuthzReload,
			Spec: cfg.AuthzReloadSpec,
			Run:  enforcer.Reload,
		},
	)
}

func registerAll(scheduler *worker.Scheduler, jobs ...worker.Job) error {
	for _, job := range jobs {
		if err := scheduler.Register(job); err != nil {
			return err
		}
	}
	return nil
}
