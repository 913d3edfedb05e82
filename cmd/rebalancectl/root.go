package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aristath/rebalancer/internal/config"
	"github.com/aristath/rebalancer/internal/di"
	"github.com/aristath/rebalancer/pkg/logger"
	"github.com/spf13/cobra"
)

// app carries the wired container into subcommands
type app struct {
	dataDir   string
	verbose   bool
	container *di.Container
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "rebalancectl",
		Short: "Inspect and drive the portfolio rebalancer",
		Long: `rebalancectl opens the rebalancer databases directly and runs harvest
scans, drift reports and order promotion without the HTTP server.

Examples:
  rebalancectl proposals --account taxable-1
  rebalancectl drift --account taxable-1 --model sixty-forty --suggest
  rebalancectl promote --account taxable-1 --per-day
  rebalancectl restrictions`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "Data directory (overrides REBALANCER_DATA_DIR)")
	rootCmd.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "Log at debug level to stderr")

	rootCmd.AddCommand(
		newProposalsCmd(a),
		newDriftCmd(a),
		newPromoteCmd(a),
		newRestrictionsCmd(a),
		newJobsCmd(a),
	)

	return rootCmd
}

// run wraps a subcommand so the container is wired before it runs and closed after,
// whatever the outcome
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		if err := a.open(cmd); err != nil {
			return err
		}
		defer func() {
			if closeErr := a.close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		return fn(cmd, args)
	}
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.dataDir != "" {
		if err := os.MkdirAll(a.dataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		cfg.DataDir = a.dataDir
	}

	level := "warn"
	if a.verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{
		Level:  level,
		Pretty: true,
		Output: cmd.ErrOrStderr(),
	})

	container, _, err := di.Wire(cfg, log)
	if err != nil {
		return err
	}
	a.container = container
	return nil
}

func (a *app) close() error {
	if a.container == nil {
		return nil
	}
	err := a.container.Close()
	a.container = nil
	return err
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
