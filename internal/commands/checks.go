package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
	"github.com/odyssey-erp/ledger-core/jobs"
)

func newIntegrityCommand(g *globals) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Verify that posted transactions and balances are consistent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			branchID, err := g.branchID()
			if err != nil {
				return err
			}
			deps, closeFn, err := g.deps(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			if deps.Integrity == nil {
				return errors.New("integrity: scan is not configured")
			}

			found, err := deps.Integrity.Run(cmd.Context(), jobs.IntegrityPayload{
				ScopePayload: jobs.ScopePayload{BranchID: branchID},
				Limit:        limit,
			})
			if err != nil {
				return fmt.Errorf("integrity: %w", err)
			}
			out := cmd.OutOrStdout()
			if g.json {
				if found == nil {
					found = []jobs.Anomaly{}
				}
				if err := json.NewEncoder(out).Encode(found); err != nil {
					return err
				}
			} else if len(found) == 0 {
				_, _ = fmt.Fprintln(out, "ledger is consistent")
			} else {
				p := g.printer()
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "CHECK\tBRANCH\tSUBJECT\tEXPECTED\tACTUAL")
				for _, a := range found {
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.Check, shared.BranchToken(a.BranchID), a.Subject, amount(p, a.Expected), amount(p, a.Actual))
				}
				_ = w.Flush()
			}
			if len(found) > 0 {
				return fmt.Errorf("%w: %d anomaly(ies)", ErrFindings, len(found))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "max unbalanced transactions reported per branch")
	return cmd
}

func newCreditCommand(g *globals) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "credit",
		Short: "List counterparties over their credit limit or past their credit days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			branchID, err := g.branchID()
			if err != nil {
				return err
			}
			if _, err := shared.ParseDate("as-of", asOf); err != nil {
				return err
			}
			deps, closeFn, err := g.deps(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			if deps.Credit == nil {
				return errors.New("credit: scan is not configured")
			}

			found, err := deps.Credit.Run(cmd.Context(), jobs.CreditExposurePayload{
				ScopePayload: jobs.ScopePayload{BranchID: branchID},
				AsOf:         asOf,
			})
			if err != nil {
				return fmt.Errorf("credit: %w", err)
			}
			out := cmd.OutOrStdout()
			if g.json {
				if found == nil {
					found = []jobs.Exposure{}
				}
				return json.NewEncoder(out).Encode(found)
			}
			if len(found) == 0 {
				_, _ = fmt.Fprintln(out, "no credit exposures")
				return nil
			}
			p := g.printer()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "CHECK\tACCOUNT\tNAME\tBALANCE\tLIMIT\tAVAILABLE")
			for _, e := range found {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Check, e.Code, e.Name, amount(p, e.Net), amount(p, e.Limit), amount(p, e.Available))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluation date (YYYY-MM-DD), defaults to today")
	return cmd
}

func newEnqueueCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:       "enqueue <integrity|warmup|credit>",
		Short:     "Queue a background job for the worker",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"integrity", "warmup", "credit"},
		RunE: func(cmd *cobra.Command, args []string) error {
			branchID, err := g.branchID()
			if err != nil {
				return err
			}
			scope := jobs.ScopePayload{BranchID: branchID}
			var task *asynq.Task
			switch args[0] {
			case "integrity":
				task, err = jobs.NewIntegrityTask(jobs.IntegrityPayload{ScopePayload: scope})
			case "warmup":
				task, err = jobs.NewReportWarmupTask(scope)
			case "credit":
				task, err = jobs.NewCreditExposureTask(jobs.CreditExposurePayload{ScopePayload: scope})
			default:
				return fmt.Errorf("enqueue: unsupported job %q", args[0])
			}
			if err != nil {
				return err
			}
			deps, closeFn, err := g.deps(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			if deps.Queue == nil {
				return errors.New("enqueue: queue is not configured")
			}
			info, err := deps.Queue.EnqueueContext(cmd.Context(), task)
			if err != nil {
				return fmt.Errorf("enqueue %s: %w", args[0], err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "queued %s as %s on %s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
}
