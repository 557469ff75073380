package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/claimline/internal/claim"
	"github.com/user/claimline/internal/state"
	"github.com/user/claimline/internal/types"
)

func init() {
	rootCmd.AddCommand(claimCmd)
	claimCmd.AddCommand(claimListCmd, claimShowCmd, claimStatusCmd, claimUsefulCmd, claimPaidCmd)

	claimListCmd.Flags().String("status", "", "filter by status")
	claimListCmd.Flags().String("type", "", "filter by claim type (CD or H)")
	claimListCmd.Flags().String("from", "", "created on or after (YYYY-MM-DD)")
	claimListCmd.Flags().String("to", "", "created on or before (YYYY-MM-DD)")
	claimStatusCmd.Flags().String("memo", "", "officer memo")
}

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Inspect and review claims",
}

func claimStore() *state.ClaimStore {
	return state.NewClaimStore(loadConfig().DataDir)
}

var claimListCmd = &cobra.Command{
	Use:   "list",
	Short: "List claims, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var f types.ClaimFilter
		if s, _ := cmd.Flags().GetString("status"); s != "" {
			st, err := claim.ParseStatus(s)
			if err != nil {
				return err
			}
			f.Status = st
		}
		if s, _ := cmd.Flags().GetString("type"); s != "" {
			t, err := claim.ParseType(s)
			if err != nil {
				return err
			}
			f.Type = t
		}
		f.DateFrom, _ = cmd.Flags().GetString("from")
		f.DateTo, _ = cmd.Flags().GetString("to")
		for _, d := range []string{f.DateFrom, f.DateTo} {
			if d == "" {
				continue
			}
			if _, err := time.Parse(time.DateOnly, d); err != nil {
				return fmt.Errorf("invalid date %q: want YYYY-MM-DD", d)
			}
		}

		records, err := claimStore().List(cmd.Context(), f)
		if err != nil {
			return fmt.Errorf("list claims: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("No claims.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tDOCS\tCREATED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				r.ClaimID, r.ClaimType, r.Status, len(r.Documents), r.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var claimShowCmd = &cobra.Command{
	Use:   "show <claim-id>",
	Short: "Show a claim with its documents, extracted data and summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store := claimStore()
		rec, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Claim:     %s\n", rec.ClaimID)
		fmt.Printf("Type:      %s\n", rec.ClaimType)
		fmt.Printf("Status:    %s\n", rec.Status)
		fmt.Printf("Owner:     %s\n", rec.UserID)
		fmt.Printf("Created:   %s\n", rec.CreatedAt.Local().Format(time.RFC3339))
		if rec.SubmittedAt != nil {
			fmt.Printf("Submitted: %s\n", rec.SubmittedAt.Local().Format(time.RFC3339))
		}
		if rec.HasCounterpart != nil {
			fmt.Printf("Counterpart: %t\n", *rec.HasCounterpart)
		}
		if rec.PaidAmount != nil {
			fmt.Printf("Paid:      %.2f\n", *rec.PaidAmount)
		}
		if rec.Memo != "" {
			fmt.Printf("Memo:      %s\n", rec.Memo)
		}

		if len(rec.Documents) > 0 {
			fmt.Println("\nDocuments:")
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, d := range rec.Documents {
				useful := "-"
				if d.Useful != nil {
					useful = strconv.FormatBool(*d.Useful)
				}
				fmt.Fprintf(w, "  %s\t%s\t%s\n", d.Category, d.Filename, useful)
			}
			w.Flush()
		}

		if extracted, err := store.ExtractedFields(ctx, rec.ClaimID); err == nil && len(extracted) > 0 {
			data, _ := json.MarshalIndent(extracted, "  ", "  ")
			fmt.Printf("\nExtracted:\n  %s\n", data)
		}
		if summary, err := store.Summary(ctx, rec.ClaimID); err == nil && summary != "" {
			fmt.Printf("\nSummary:\n%s\n", summary)
		}
		return nil
	},
}

// updateStatus applies a review step to an existing claim. UpdateStatus
// ignores unknown claims, so the claim is looked up first.
func updateStatus(ctx context.Context, claimID string, u types.StatusUpdate) error {
	store := claimStore()
	if _, err := store.Get(ctx, claimID); err != nil {
		return err
	}
	if err := store.UpdateStatus(ctx, claimID, u); err != nil {
		return err
	}
	fmt.Printf("Claim %s is now %s.\n", claimID, u.Status)
	return nil
}

var claimStatusCmd = &cobra.Command{
	Use:   "status <claim-id> <status>",
	Short: "Move a claim through review (Under Review, Pending, Approved, Rejected)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := claim.ParseStatus(args[1])
		if err != nil {
			return err
		}
		u := types.StatusUpdate{Status: st}
		if cmd.Flags().Changed("memo") {
			memo, _ := cmd.Flags().GetString("memo")
			u.Memo = &memo
		}
		return updateStatus(cmd.Context(), args[0], u)
	},
}

var claimPaidCmd = &cobra.Command{
	Use:   "paid <claim-id> <amount>",
	Short: "Record the payout of an approved claim",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseFloat(args[1], 64)
		if err != nil || amount < 0 {
			return fmt.Errorf("invalid amount: %s", args[1])
		}
		return updateStatus(cmd.Context(), args[0], types.StatusUpdate{
			Status:     claim.StatusPaid,
			PaidAmount: &amount,
		})
	},
}

var claimUsefulCmd = &cobra.Command{
	Use:   "useful <claim-id> <filename> <true|false>",
	Short: "Flag whether a document was useful for the assessment",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		useful, err := strconv.ParseBool(args[2])
		if err != nil {
			return fmt.Errorf("invalid flag %q: want true or false", args[2])
		}
		if err := claimStore().MarkDocumentUseful(cmd.Context(), args[0], args[1], useful); err != nil {
			return err
		}
		fmt.Printf("Marked %s useful=%t.\n", args[1], useful)
		return nil
	},
}
