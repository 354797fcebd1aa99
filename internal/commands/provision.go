package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledger-core/internal/accounting/provisioning"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

func newProvisionCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Create the default chart of accounts for a branch",
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
			if deps.Provisioner == nil {
				return errors.New("provision: CHART_TEMPLATE is not configured")
			}

			res, err := deps.Provisioner.EnsureDefaultAccounts(cmd.Context(), branchID)
			if err != nil {
				return fmt.Errorf("provision: %w", err)
			}
			out := cmd.OutOrStdout()
			if g.json {
				if err := json.NewEncoder(out).Encode(res); err != nil {
					return err
				}
			} else {
				_, _ = fmt.Fprintf(out, "branch %s: %d group(s), %d account(s) created\n",
					shared.BranchToken(branchID), len(res.CreatedGroups), len(res.CreatedAccounts))
				for _, a := range res.CreatedAccounts {
					_, _ = fmt.Fprintf(out, " + %s %s (%s)\n", a.Code, a.Name, a.Role)
				}
				for _, code := range res.Unresolved {
					_, _ = fmt.Fprintf(out, " ! group %s: parent never resolved\n", code)
				}
				for _, issue := range res.Invalid {
					_, _ = fmt.Fprintf(out, " ! %s: %s\n", issue.Code, issue.Reason)
				}
			}
			if err := provisioning.EnsureReady(res); err != nil {
				return fmt.Errorf("%w: %v", ErrFindings, err)
			}
			return nil
		},
	}
}
