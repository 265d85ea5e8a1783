package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/densify/internal/importer"
	"github.com/cleared-dev/densify/internal/ledgerfile"
)

type importParams struct {
	format        string
	csvPath       string
	name          string
	fiscalYearEnd int
	outPath       string
}

func newImportCommand(o *options) *cobra.Command {
	var p importParams

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Convert a trial balance export into a ledger YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.OutOrStdout(), o, p)
		},
	}

	cmd.Flags().StringVar(&p.format, "format", "trial-balance", "input format")
	cmd.Flags().StringVar(&p.csvPath, "csv", "", "CSV file to import (required)")
	_ = cmd.MarkFlagRequired("csv")
	cmd.Flags().StringVar(&p.name, "name", "", "organization name")
	cmd.Flags().IntVar(&p.fiscalYearEnd, "fiscal-year-end", 12, "month the fiscal year ends (1-12)")
	cmd.Flags().StringVarP(&p.outPath, "output", "o", "", "write the ledger here instead of stdout")

	return cmd
}

func runImport(w io.Writer, o *options, p importParams) error {
	if p.fiscalYearEnd < 1 || p.fiscalYearEnd > 12 {
		return fmt.Errorf("--fiscal-year-end %d outside 1..12", p.fiscalYearEnd)
	}

	rows, err := importer.DefaultRegistry().ParseFile(p.format, p.csvPath)
	if err != nil {
		return err
	}
	l := importer.Convert(p.name, time.Month(p.fiscalYearEnd), rows)
	o.logger.Info().Int("rows", len(rows)).Int("stock", len(l.Stock)).Int("flow", len(l.Flow)).Msg("imported")

	if p.outPath == "" {
		return ledgerfile.Encode(w, l)
	}
	if _, err := os.Stat(p.outPath); err == nil {
		return fmt.Errorf("%s already exists", p.outPath)
	}
	return ledgerfile.Save(p.outPath, l)
}
