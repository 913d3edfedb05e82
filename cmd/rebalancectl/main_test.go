package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aristath/rebalancer/internal/config"
	"github.com/aristath/rebalancer/internal/di"
	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/modules/orders"
	"github.com/aristath/rebalancer/internal/modules/rebalancing"
	testingpkg "github.com/aristath/rebalancer/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedDataDir writes the fixture portfolio into a fresh data directory
func seedDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("REBALANCER_DATA_DIR", dir)

	container, _, err := di.Wire(&config.Config{
		DataDir:          dir,
		MinLossPercent:   decimal.NewFromInt(5),
		MinLossDollars:   decimal.NewFromInt(2500),
		CacheTTL:         time.Minute,
		HarvestSchedule:  "30 15 * * 1-5",
		PurgeSchedule:    "0 3 * * *",
		DriftToleranceBP: 250,
	}, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	ctx := context.Background()
	require.NoError(t, container.PortfolioRepo.CreateAccount(ctx, testingpkg.NewAccountFixture()))
	for _, pos := range testingpkg.NewPositionFixtures() {
		require.NoError(t, container.PortfolioRepo.UpsertSecurity(ctx, domain.Security{Ticker: pos.Ticker, Price: pos.CurrentPrice}))
		require.NoError(t, container.PortfolioRepo.UpsertPosition(ctx, pos))
	}
	for _, s := range testingpkg.NewSleeveFixtures() {
		_, err := container.SleeveRepo.Create(ctx, s)
		require.NoError(t, err)
	}
	_, err = container.ModelRepo.Create(ctx, testingpkg.NewModelFixture())
	require.NoError(t, err)

	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd()

	names := make([]string, 0)
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"proposals", "drift", "promote", "restrictions", "jobs"})
	assert.NotNil(t, cmd.PersistentFlags().Lookup("data-dir"))
}

func TestProposalsCommand(t *testing.T) {
	dir := seedDataDir(t)

	out, err := run(t, "proposals", "--data-dir", dir, "--account", "taxable-1")
	require.NoError(t, err)

	var set rebalancing.ProposalSet
	require.NoError(t, json.Unmarshal([]byte(out), &set))
	assert.Equal(t, "taxable-1", set.AccountID)
	require.Len(t, set.Proposals, 2)
	assert.Equal(t, "VTI", set.Proposals[0].Ticker)
	assert.Equal(t, "ITOT", set.Proposals[1].Ticker)
}

func TestDriftCommand(t *testing.T) {
	dir := seedDataDir(t)

	out, err := run(t, "drift", "--data-dir", dir, "--account", "taxable-1", "--model", "sixty-forty")
	require.NoError(t, err)

	var report map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "sixty-forty", report["model_id"])
	assert.Equal(t, "62000", report["total_value"])

	_, err = run(t, "drift", "--data-dir", dir, "--model", "missing")
	assert.ErrorContains(t, err, "allocation model not found")

	_, err = run(t, "drift", "--data-dir", dir)
	assert.Error(t, err)
}

func TestPromoteCommand(t *testing.T) {
	dir := seedDataDir(t)

	out, err := run(t, "promote", "--data-dir", dir, "--account", "taxable-1")
	require.NoError(t, err)
	var result orders.PromotionResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.Created)

	// A second run in a new process finds the stored idempotency keys
	out, err = run(t, "promote", "--data-dir", dir, "--account", "taxable-1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 2, result.Skipped)
}

func TestRestrictionsAndJobsCommands(t *testing.T) {
	dir := seedDataDir(t)

	out, err := run(t, "restrictions", "--data-dir", dir)
	require.NoError(t, err)
	var restrictions []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &restrictions))
	assert.Empty(t, restrictions)

	out, err = run(t, "jobs", "--data-dir", dir)
	require.NoError(t, err)
	var jobs []string
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	assert.Equal(t, []string{"cache-purge", "check-databases", "harvest-scan"}, jobs)

	_, err = run(t, "jobs", "run", "check-databases", "--data-dir", dir)
	assert.NoError(t, err)

	_, err = run(t, "jobs", "run", "nope", "--data-dir", dir)
	assert.ErrorContains(t, err, "unknown job")
}
