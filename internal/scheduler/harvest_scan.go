package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/rebalancing"
	"github.com/rs/zerolog"
)

// AccountLister lists accounts
type AccountLister interface {
	GetAccounts(ctx context.Context) ([]domain.Account, error)
}

// ProposalScanner computes and caches proposals per account
type ProposalScanner interface {
	Invalidate(accountID string)
	ProposeTrades(ctx context.Context, accountID string) (*rebalancing.ProposalSet, error)
}

// HarvestScanJob recomputes harvest proposals for every taxable account so the
// cache holds fresh results when the user looks at them
type HarvestScanJob struct {
	accounts AccountLister
	scanner  ProposalScanner
	timeout  time.Duration
	log      zerolog.Logger
}

// NewHarvestScanJob creates a new HarvestScanJob
func NewHarvestScanJob(accounts AccountLister, scanner ProposalScanner, log zerolog.Logger) *HarvestScanJob {
	return &HarvestScanJob{
		accounts: accounts,
		scanner:  scanner,
		timeout:  2 * time.Minute,
		log:      log.With().Str("job", "harvest-scan").Logger(),
	}
}

// Name returns the job name
func (j *HarvestScanJob) Name() string {
	return "harvest-scan"
}

// Run executes the scan. A failing account is logged and the scan moves on;
// the job fails only if no taxable account could be scanned.
func (j *HarvestScanJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	accounts, err := j.accounts.GetAccounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	var scanned, failed, proposals, blocked int
	for _, account := range accounts {
		if !account.IsTaxable() {
			continue
		}

		j.scanner.Invalidate(account.ID)
		set, err := j.scanner.ProposeTrades(ctx, account.ID)
		if err != nil {
			failed++
			j.log.Error().Err(err).Str("account_id", account.ID).Msg("Harvest scan failed for account")
			continue
		}

		scanned++
		proposals += len(set.Proposals)
		blocked += set.Summary.Blocked
		j.log.Info().
			Str("account_id", account.ID).
			Int("sells", set.Summary.Sells).
			Int("buys", set.Summary.Buys).
			Int("blocked", set.Summary.Blocked).
			Str("executable_loss", set.Summary.ExecutableLoss.StringFixed(2)).
			Msg("Harvest scan completed for account")
	}

	j.log.Info().
		Int("scanned", scanned).
		Int("failed", failed).
		Int("proposals", proposals).
		Int("blocked", blocked).
		Msg("Harvest scan finished")

	if scanned == 0 && failed > 0 {
		return fmt.Errorf("harvest scan failed for all %d taxable accounts", failed)
	}
	return nil
}
