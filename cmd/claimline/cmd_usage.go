package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/claimline/internal/state"
)

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.Flags().String("month", "", "month to report (YYYY-MM, default current)")
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Report AI token usage and cost for a month",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		month, _ := cmd.Flags().GetString("month")
		if month == "" {
			month = time.Now().UTC().Format("2006-01")
		} else if _, err := time.Parse("2006-01", month); err != nil {
			return fmt.Errorf("invalid month %q: want YYYY-MM", month)
		}

		records, err := state.NewUsageLedger(loadConfig().DataDir).Month(cmd.Context(), month)
		if err != nil {
			return fmt.Errorf("read usage: %w", err)
		}
		if len(records) == 0 {
			fmt.Printf("No usage recorded for %s.\n", month)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "OPERATION\tCALLS\tINPUT\tOUTPUT\tCOST (USD)\t")
		var total state.UsageTotals
		for _, t := range state.Summarize(records) {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.4f\t\n", t.Operation, t.Calls, t.InputTokens, t.OutputTokens, t.CostUSD)
			total.Calls += t.Calls
			total.InputTokens += t.InputTokens
			total.OutputTokens += t.OutputTokens
			total.CostUSD += t.CostUSD
		}
		fmt.Fprintf(w, "total\t%d\t%d\t%d\t%.4f\t\n", total.Calls, total.InputTokens, total.OutputTokens, total.CostUSD)
		return w.Flush()
	},
}
