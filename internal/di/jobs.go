package di

import (
	"fmt"

	"github.com/aristath/rebalancer/internal/config"
	"github.com/aristath/rebalancer/internal/scheduler"
	"github.com/rs/zerolog"
)

const checkDatabasesSchedule = "@hourly"

// RegisterJobs creates the scheduler and registers every job on its schedule.
// The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	sched := scheduler.New(container.Metrics, log)

	jobs := &JobInstances{
		HarvestScan:    scheduler.NewHarvestScanJob(container.PortfolioRepo, container.RebalancingService, log),
		CachePurge:     scheduler.NewCachePurgeJob(container.Caches, log),
		CheckDatabases: scheduler.NewCheckDatabasesJob(log, container.PortfolioDB, container.LedgerDB),
	}

	schedules := []struct {
		spec string
		job  scheduler.Job
	}{
		{cfg.HarvestSchedule, jobs.HarvestScan},
		{cfg.PurgeSchedule, jobs.CachePurge},
		{checkDatabasesSchedule, jobs.CheckDatabases},
	}
	for _, s := range schedules {
		if err := sched.AddJob(s.spec, s.job); err != nil {
			return nil, fmt.Errorf("failed to register job: %w", err)
		}
	}

	container.Scheduler = sched
	return jobs, nil
}
