package main

import (
	"sort"

	"github.com/aristath/rebalancer/internal/modules/orders"
	"github.com/spf13/cobra"
)

func newProposalsCmd(a *app) *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "proposals",
		Short: "Scan holdings and print harvest proposals",
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			set, err := a.container.RebalancingService.ProposeTrades(cmd.Context(), accountID)
			if err != nil {
				return err
			}
			return printJSON(cmd, set)
		}),
	}
	cmd.Flags().StringVar(&accountID, "account", "", "Account ID (all accounts when empty)")
	return cmd
}

func newDriftCmd(a *app) *cobra.Command {
	var (
		accountID string
		modelID   string
		suggest   bool
	)

	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Compare holdings against an allocation model",
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			if suggest {
				trades, err := a.container.RebalancingService.SuggestRebalance(cmd.Context(), accountID, modelID)
				if err != nil {
					return err
				}
				return printJSON(cmd, trades)
			}

			report, err := a.container.RebalancingService.ComputeDrift(cmd.Context(), accountID, modelID)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		}),
	}
	cmd.Flags().StringVar(&accountID, "account", "", "Account ID (all accounts when empty)")
	cmd.Flags().StringVar(&modelID, "model", "", "Allocation model ID")
	cmd.Flags().BoolVar(&suggest, "suggest", false, "Print rebalance trades for sleeves out of tolerance")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func newPromoteCmd(a *app) *cobra.Command {
	var (
		accountID string
		perDay    bool
	)

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote executable harvest proposals to draft orders",
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			result, err := a.container.RebalancingService.PromoteProposals(cmd.Context(), accountID,
				orders.IdempotencyPolicy{PerTradingDay: perDay})
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		}),
	}
	cmd.Flags().StringVar(&accountID, "account", "", "Account ID")
	cmd.Flags().BoolVar(&perDay, "per-day", false, "Scope idempotency keys to the trading day")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newRestrictionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restrictions",
		Short: "List active wash-sale restrictions",
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			restrictions, err := a.container.RebalancingService.ActiveRestrictions(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, restrictions)
		}),
	}
}

func newJobsCmd(a *app) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "List or run scheduled jobs",
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			names := a.container.Scheduler.Jobs()
			sort.Strings(names)
			return printJSON(cmd, names)
		}),
	}

	jobsCmd.AddCommand(&cobra.Command{
		Use:   "run <name>",
		Short: "Run a scheduled job once",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			return a.container.Scheduler.RunNow(args[0])
		}),
	})
	return jobsCmd
}
