// Package container is the dependency-injection root. It is built once at
// process start and owns every long-lived component, including the
// reconciliation scheduler and its running state.
package container

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/fleetward/fleetward/app/controllers"
	"github.com/fleetward/fleetward/app/models"
	"github.com/fleetward/fleetward/app/repository"
	"github.com/fleetward/fleetward/internal/pkg/authz"
	"github.com/fleetward/fleetward/internal/pkg/billing"
	"github.com/fleetward/fleetward/internal/pkg/cache"
	"github.com/fleetward/fleetward/internal/pkg/config"
	"github.com/fleetward/fleetward/internal/pkg/database"
	"github.com/fleetward/fleetward/internal/pkg/delegation"
	"github.com/fleetward/fleetward/internal/pkg/entitlements"
	"github.com/fleetward/fleetward/internal/pkg/jobqueue"
	"github.com/fleetward/fleetward/internal/pkg/metrics"
	"github.com/fleetward/fleetward/internal/pkg/middleware"
)

type Controllers struct {
	Renewals        *controllers.ResourceController[models.RenewalItem, *models.RenewalItem]
	TrainingRecords *controllers.ResourceController[models.TrainingRecord, *models.TrainingRecord]
	Audits          *controllers.ResourceController[models.Audit, *models.Audit]
	SpotChecks      *controllers.ResourceController[models.SpotCheck, *models.SpotCheck]
	Delegations     *controllers.DelegationController
	Subscriptions   *controllers.SubscriptionController
	Account         *controllers.AccountController
	Reconcile       *controllers.ReconcileController
}

type Container struct {
	Config      config.Config
	DB          *gorm.DB
	Cache       *cache.Cache
	Metrics     *metrics.Metrics
	Repos       *repository.Repositories
	Registry    *delegation.Registry
	Gateway     *authz.Gateway
	Gate        *entitlements.Gate
	Billing     *billing.Service
	Scheduler   *jobqueue.Manager
	Identity    *middleware.Identity
	Controllers Controllers
}

// Bootstrap connects to the database and cache described by cfg, migrates
// the schema and builds the container.
func Bootstrap(cfg config.Config) (*Container, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return New(cfg, db, cache.New(cfg))
}

// New wires every component on top of already opened infrastructure.
func New(cfg config.Config, db *gorm.DB, c *cache.Cache) (*Container, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	hour, minute, err := cfg.ReconcileClock()
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	repos := repository.NewFactory(db).GetRepositories()
	registry := delegation.NewRegistry(delegation.NewGormStore(db), cfg.Roster.DefaultCapacity)
	gateway := authz.NewGateway(registry, m)
	billingRepo := billing.NewRepository(db)
	gate := entitlements.NewGate(billingRepo)
	billingService := billing.NewService(billingRepo, gate, cfg.Billing.TrialDays, cfg.Billing.WebhookSecret)

	reconciler := jobqueue.NewReconciler(repos.Temporal, jobqueue.NewCacheSummaryStore(c), m, loc)
	scheduler := jobqueue.NewManager(reconciler, hour, minute, loc)

	return &Container{
		Config:    cfg,
		DB:        db,
		Cache:     c,
		Metrics:   m,
		Repos:     repos,
		Registry:  registry,
		Gateway:   gateway,
		Gate:      gate,
		Billing:   billingService,
		Scheduler: scheduler,
		Identity:  middleware.NewIdentity(repos.User, repos.Settings, cfg.JWT.Secret),
		Controllers: Controllers{
			Renewals:        controllers.NewResourceController[models.RenewalItem, *models.RenewalItem]("renewal item", repos.RenewalItem, gateway, gate, loc),
			TrainingRecords: controllers.NewResourceController[models.TrainingRecord, *models.TrainingRecord]("training record", repos.TrainingRecord, gateway, gate, loc),
			Audits:          controllers.NewResourceController[models.Audit, *models.Audit]("audit", repos.Audit, gateway, gate, loc),
			SpotChecks:      controllers.NewResourceController[models.SpotCheck, *models.SpotCheck]("spot check", repos.SpotCheck, gateway, gate, loc),
			Delegations:     controllers.NewDelegationController(registry, repos.User, m),
			Subscriptions:   controllers.NewSubscriptionController(billingService, gate, repos.User),
			Account:         controllers.NewAccountController(repos.User, repos.Settings, gate, registry, cfg.JWT.Secret),
			Reconcile:       controllers.NewReconcileController(scheduler),
		},
	}, nil
}

// Close stops the scheduler and releases connections.
func (c *Container) Close() error {
	c.Scheduler.Stop()
	if err := c.Cache.Close(); err != nil {
		return err
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
