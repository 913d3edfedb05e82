package di

import (
	"github.com/aristath/rebalancer/internal/clients/paper"
	"github.com/aristath/rebalancer/internal/config"
	"github.com/aristath/rebalancer/internal/metrics"
	"github.com/aristath/rebalancer/internal/modules/allocation"
	"github.com/aristath/rebalancer/internal/modules/harvesting"
	"github.com/aristath/rebalancer/internal/modules/orders"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	"github.com/aristath/rebalancer/internal/modules/rebalancing"
	"github.com/aristath/rebalancer/internal/modules/sleeves"
	"github.com/aristath/rebalancer/internal/modules/washsale"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates all repositories on the container's databases
func InitializeRepositories(container *Container, log zerolog.Logger) {
	container.PortfolioRepo = portfolio.NewRepository(container.PortfolioDB.Conn(), log)
	container.SleeveRepo = sleeves.NewRepository(container.PortfolioDB.Conn(), log)
	container.ModelRepo = allocation.NewRepository(container.PortfolioDB.Conn(), log)
	container.RestrictionRepo = washsale.NewRepository(container.LedgerDB.Conn(), log)
	container.OrderRepo = orders.NewRepository(container.LedgerDB.Conn(), log)
}

// InitializeServices creates the broker, metrics and services.
// Repositories must be initialized first.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) {
	container.Metrics = metrics.NewRegistry()
	container.Broker = paper.NewClient(cfg.PaperWarnValue, log)

	container.PortfolioService = portfolio.NewService(container.PortfolioRepo, log)

	container.OrderService = orders.NewService(container.OrderRepo, container.Broker, container.RestrictionRepo, log)
	container.OrderService.SetObserver(container.Metrics)

	container.Generator = harvesting.NewGenerator(cfg.Thresholds(), log).WithObserver(container.Metrics)
	container.Caches = rebalancing.NewCaches(cfg.CacheTTL, nil)

	container.RebalancingService = rebalancing.NewService(rebalancing.Deps{
		Positions:    container.PortfolioRepo,
		Prices:       container.PortfolioRepo,
		Sleeves:      container.SleeveRepo,
		Models:       container.ModelRepo,
		Restrictions: container.RestrictionRepo,
		Orders:       container.OrderService,
	}, container.Generator, container.Caches, cfg.DriftToleranceBP, log)
}
