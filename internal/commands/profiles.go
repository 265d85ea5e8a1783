package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/densify/internal/model"
	"github.com/cleared-dev/densify/internal/seasonality"
)

func newProfilesCommand() *cobra.Command {
	var fiscalYearEnd int

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Show the built-in seasonality profiles per calendar month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fiscalYearEnd < 1 || fiscalYearEnd > 12 {
				return fmt.Errorf("--fiscal-year-end %d outside 1..12", fiscalYearEnd)
			}
			return runProfiles(cmd.OutOrStdout(), time.Month(fiscalYearEnd))
		},
	}

	cmd.Flags().IntVar(&fiscalYearEnd, "fiscal-year-end", 12, "month the fiscal year ends (1-12)")

	return cmd
}

func runProfiles(w io.Writer, fyEnd time.Month) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	header := []string{"profile"}
	for m := time.January; m <= time.December; m++ {
		header = append(header, m.String()[:3])
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

	provider := seasonality.NewProvider(fyEnd)
	for _, id := range seasonality.Builtin() {
		weights, err := provider.Weights(model.Seasonality{Profile: id})
		if err != nil {
			return err
		}
		row := []string{string(id)}
		for m := time.January; m <= time.December; m++ {
			row = append(row, fmt.Sprintf("%.4f", weights.For(m)))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t")+"\t")
	}
	return tw.Flush()
}
