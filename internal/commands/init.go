package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/densify/internal/config"
	"github.com/cleared-dev/densify/internal/gitops"
	"github.com/cleared-dev/densify/internal/ledgerfile"
	"github.com/cleared-dev/densify/internal/model"
)

// SampleLedgerFile is the example ledger written by init.
const SampleLedgerFile = "ledger.yaml"

func newInitCommand() *cobra.Command {
	var name string
	var initGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new densify project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.OutOrStdout(), absDir, name, initGit)
		},
	}

	cmd.Flags().StringVar(&name, "name", "Example Trading Co", "organization name for the sample ledger")
	cmd.Flags().BoolVar(&initGit, "git", false, "initialize a git repository and commit the project")

	return cmd
}

func runInit(w io.Writer, dir, name string, initGit bool) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	cfg := config.Default()
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if err := ledgerfile.Save(filepath.Join(dir, SampleLedgerFile), sampleLedger(name)); err != nil {
		return fmt.Errorf("writing sample ledger: %w", err)
	}

	gitignore := "*.prom\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	if initGit {
		if err := gitops.Init(dir); err != nil {
			return err
		}
		author := gitops.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail}
		if _, err := gitops.Commit(dir, "init: densify project for "+name, author); err != nil {
			return fmt.Errorf("initial commit: %w", err)
		}
	}

	fmt.Fprintf(w, "Initialized densify project at %s\n", dir)
	fmt.Fprintf(w, "Next: densify run --ledger %s\n", SampleLedgerFile)
	return nil
}

func sampleLedger(name string) *model.Ledger {
	end := func(m time.Month) time.Time { return time.Date(2023, m+1, 0, 0, 0, 0, 0, time.UTC) }
	start := func(m time.Month) time.Time { return time.Date(2023, m, 1, 0, 0, 0, 0, time.UTC) }
	year := func(v float64) model.PeriodConstraint {
		return model.PeriodConstraint{Start: start(time.January), End: end(time.December), Value: v, Source: "FY23 P&L"}
	}

	return &model.Ledger{
		Organization:       name,
		FiscalYearEndMonth: time.December,
		Stock: []model.StockAccount{
			{
				Name: "Cash", Type: model.AccountTypeAsset, Category: "Current Assets",
				Method: model.Linear, NoiseFactor: 0.02,
				Snapshots: []model.Snapshot{
					{Date: end(time.January), Value: 50000, Source: "Jan bank statement"},
					{Date: end(time.June), Value: 61000, Source: "H1 balance sheet"},
					{Date: end(time.December), Value: 75000, Source: "FY23 balance sheet"},
				},
			},
			{
				Name: "Accounts Receivable", Type: model.AccountTypeAsset, Category: "Current Assets",
				Method: model.Curve, NoiseFactor: 0.03,
				Snapshots: []model.Snapshot{
					{Date: end(time.March), Value: 18000},
					{Date: end(time.September), Value: 24000},
					{Date: end(time.December), Value: 21000},
				},
			},
			{
				Name: "Accounts Payable", Type: model.AccountTypeLiability, Category: "Current Liabilities",
				Method: model.Step,
				Snapshots: []model.Snapshot{
					{Date: end(time.January), Value: 12000},
					{Date: end(time.July), Value: 15000},
				},
			},
			{
				Name: "Share Capital", Type: model.AccountTypeEquity, Method: model.Step,
				Snapshots: []model.Snapshot{{Date: end(time.January), Value: 40000}},
			},
			{
				Name: "Retained Earnings", Type: model.AccountTypeEquity, Method: model.Linear, Balancing: true,
			},
		},
		Flow: []model.FlowAccount{
			{
				Name: "Revenue", Type: model.AccountTypeRevenue, NoiseFactor: 0.05,
				Seasonality: model.Seasonality{Profile: model.ProfileRetailPeak},
				Constraints: []model.PeriodConstraint{
					year(480000),
					{Start: start(time.October), End: end(time.December), Value: 190000, Source: "Q4 management accounts"},
				},
			},
			{
				Name: "Cost of Sales", Type: model.AccountTypeCostOfSales, NoiseFactor: 0.05,
				Seasonality: model.Seasonality{Profile: model.ProfileRetailPeak},
				Constraints: []model.PeriodConstraint{year(260000)},
			},
			{
				Name: "Rent", Type: model.AccountTypeOperatingExpense,
				Seasonality: model.Seasonality{Profile: model.ProfileFlat},
				Constraints: []model.PeriodConstraint{year(36000)},
			},
			{
				Name: "Salaries", Type: model.AccountTypeOperatingExpense, NoiseFactor: 0.02,
				Seasonality: model.Seasonality{Profile: model.ProfileFlat},
				Constraints: []model.PeriodConstraint{
					year(120000),
					{Start: start(time.June), End: end(time.June), Value: 14000, Source: "bonus run"},
				},
			},
			{
				Name: "Interest Income", Type: model.AccountTypeOtherIncome,
				Seasonality: model.Seasonality{
					Profile: model.ProfileCustom,
					Weights: []float64{0, 0, 0.25, 0, 0, 0.25, 0, 0, 0.25, 0, 0, 0.25},
				},
				Constraints: []model.PeriodConstraint{year(1200)},
			},
		},
	}
}
