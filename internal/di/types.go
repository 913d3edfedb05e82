/**
 * Package di provides dependency injection type definitions and wiring.
 *
 * The Container is the single source of truth for all service instances and is
 * passed to the HTTP server, the scheduler and the CLI.
 */
package di

import (
	"github.com/aristath/rebalancer/internal/clients/paper"
	"github.com/aristath/rebalancer/internal/database"
	"github.com/aristath/rebalancer/internal/metrics"
	"github.com/aristath/rebalancer/internal/modules/allocation"
	"github.com/aristath/rebalancer/internal/modules/harvesting"
	"github.com/aristath/rebalancer/internal/modules/orders"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/aristath/rebalancer/internal/modules/rebalancing"
	"github.com/aristath/rebalancer/internal/modules/sleeves"
	"github.com/aristath/rebalancer/internal/modules/washsale"
	"github.com/aristath/rebalancer/internal/scheduler"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: portfolio (accounts, positions, sleeves, models) and ledger (orders, restrictions)
 * - Clients: paper broker
 * - Repositories: data access layer
 * - Services: harvesting, drift and order lifecycle
 * - Scheduler: cron jobs created by RegisterJobs
 */
type Container struct {
	// Databases
	PortfolioDB *database.DB
	LedgerDB    *database.DB

	// Clients
	Broker *paper.Client

	// Repositories
	PortfolioRepo   *portfolio.Repository
	SleeveRepo      *sleeves.Repository
	ModelRepo       *allocation.Repository
	RestrictionRepo *washsale.Repository
	OrderRepo       *orders.Repository

	// Services
	Metrics            *metrics.Registry
	PortfolioService   *portfolio.Service
	OrderService       *orders.Service
	Generator          *harvesting.Generator
	Caches             *rebalancing.Caches
	RebalancingService *rebalancing.Service

	Scheduler *scheduler.Scheduler
}

// JobInstances holds references to the registered jobs for manual triggering
type JobInstances struct {
	HarvestScan    scheduler.Job
	CachePurge     scheduler.Job
	CheckDatabases scheduler.Job
}

// Close closes both databases
func (c *Container) Close() error {
	var firstErr error
	for _, db := range []*database.DB{c.PortfolioDB, c.LedgerDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
