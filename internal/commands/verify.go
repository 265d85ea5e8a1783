package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/densify/internal/accounts"
	"github.com/cleared-dev/densify/internal/balance"
	"github.com/cleared-dev/densify/internal/export"
	"github.com/cleared-dev/densify/internal/runlog"
)

// defaultVerifyTolerance leaves room for values rounded on export.
const defaultVerifyTolerance = 1e-4

type verifyParams struct {
	ledgerPath    string
	overridesPath string
	densePath     string
	tolerance     float64
}

func newVerifyCommand(o *options) *cobra.Command {
	var p verifyParams

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that a dense ledger balances in every month",
		Long: "Reads a dense CSV and checks Assets = Liabilities + Equity for every month.\n" +
			"Accounts are classified by --ledger, or by the chart-of-accounts.csv written\n" +
			"next to the dense file when no ledger is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.OutOrStdout(), o, p)
		},
	}

	cmd.Flags().StringVar(&p.ledgerPath, "ledger", "", "ledger YAML the dense file was produced from")
	cmd.Flags().StringVar(&p.overridesPath, "overrides", "", "overrides YAML applied to the ledger")
	cmd.Flags().StringVar(&p.densePath, "dense", "", "dense CSV to check (required)")
	_ = cmd.MarkFlagRequired("dense")
	cmd.Flags().Float64Var(&p.tolerance, "tolerance", defaultVerifyTolerance, "relative tolerance per month")

	return cmd
}

func runVerify(w io.Writer, o *options, p verifyParams) error {
	out, err := export.Load(p.densePath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.densePath)
	var classifier balance.Classifier
	if p.ledgerPath != "" {
		l, err := loadLedger(p.ledgerPath, p.overridesPath)
		if err != nil {
			return err
		}
		classifier = l
	} else {
		chart, err := accounts.Load(dir)
		if err != nil {
			return fmt.Errorf("no --ledger given: %w", err)
		}
		classifier = chart
	}

	failures := balance.Verify(classifier, out, p.tolerance)
	if len(failures) == 0 {
		fmt.Fprintf(w, "OK: %d months balance (%s)\n", out.Range.Len(), out.Range)
		return nil
	}

	for _, f := range failures {
		fmt.Fprintln(w, f.Error())
	}
	if err := runlog.Append(dir, runlog.VerifyEntries(runlog.NewRunID(), time.Now().UTC(), failures)); err != nil {
		o.logger.Error().Err(err).Msg("run log not written")
	}
	return fmt.Errorf("%d of %d months out of balance", len(failures), out.Range.Len())
}
