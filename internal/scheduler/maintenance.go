package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/rebalancer/internal/database"
	"github.com/rs/zerolog"
)

// ExpiringCache drops expired entries
type ExpiringCache interface {
	PurgeExpired() int
	Len() int
}

// CachePurgeJob drops expired proposal and drift results
type CachePurgeJob struct {
	cache ExpiringCache
	log   zerolog.Logger
}

// NewCachePurgeJob creates a new CachePurgeJob
func NewCachePurgeJob(cache ExpiringCache, log zerolog.Logger) *CachePurgeJob {
	return &CachePurgeJob{
		cache: cache,
		log:   log.With().Str("job", "cache-purge").Logger(),
	}
}

// Name returns the job name
func (j *CachePurgeJob) Name() string {
	return "cache-purge"
}

// Run executes the purge
func (j *CachePurgeJob) Run() error {
	purged := j.cache.PurgeExpired()
	j.log.Info().
		Int("purged", purged).
		Int("remaining", j.cache.Len()).
		Msg("Cache purge completed")
	return nil
}

// CheckDatabasesJob verifies database integrity and truncates the write-ahead logs
type CheckDatabasesJob struct {
	databases []*database.DB
	log       zerolog.Logger
}

// NewCheckDatabasesJob creates a new CheckDatabasesJob; nil databases are skipped
func NewCheckDatabasesJob(log zerolog.Logger, databases ...*database.DB) *CheckDatabasesJob {
	return &CheckDatabasesJob{
		databases: databases,
		log:       log.With().Str("job", "check-databases").Logger(),
	}
}

// Name returns the job name
func (j *CheckDatabasesJob) Name() string {
	return "check-databases"
}

// Run executes the check. Corruption is fatal for the run; a failed checkpoint is only logged.
func (j *CheckDatabasesJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	checked := 0
	for _, db := range j.databases {
		if db == nil {
			continue
		}

		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().
				Err(err).
				Str("database", db.Name()).
				Msg("Database integrity check failed")
			return fmt.Errorf("database %s failed integrity check: %w", db.Name(), err)
		}

		if err := db.WALCheckpoint(); err != nil {
			j.log.Warn().
				Err(err).
				Str("database", db.Name()).
				Msg("Failed to checkpoint WAL")
		}
		checked++
	}

	j.log.Info().Int("checked", checked).Msg("Database check completed")
	return nil
}
