// Package provisioning lays down the default chart of a branch from a
// template and reports what could not be placed.
package provisioning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

// Result describes one provisioning run.
type Result struct {
	BranchID        *int64             `json:"branch_id,omitempty"`
	CreatedGroups   []accounts.Group   `json:"created_groups"`
	CreatedAccounts []accounts.Account `json:"created_accounts"`
	Unresolved      []string           `json:"unresolved,omitempty"`
	Invalid         []Issue            `json:"invalid,omitempty"`
}

// Provisioner ensures a branch has its default chart.
type Provisioner interface {
	EnsureDefaultAccounts(ctx context.Context, branchID *int64) (Result, error)
}

// EnsureReady fails when a run left groups or accounts unplaced.
func EnsureReady(res Result) error {
	if len(res.Unresolved) == 0 && len(res.Invalid) == 0 {
		return nil
	}
	var parts []string
	if len(res.Unresolved) > 0 {
		parts = append(parts, "unresolved groups "+strings.Join(res.Unresolved, ", "))
	}
	for _, issue := range res.Invalid {
		parts = append(parts, issue.Code+": "+issue.Reason)
	}
	return shared.Misconfigured("", shared.BranchToken(res.BranchID), "default chart incomplete: "+strings.Join(parts, "; "))
}

// ChartStore is the slice of the chart service provisioning needs.
type ChartStore interface {
	LoadChart(ctx context.Context, branchID *int64) (*accounts.Chart, error)
	CreateGroup(ctx context.Context, in accounts.CreateGroupInput) (accounts.Group, error)
	CreateAccount(ctx context.Context, in accounts.CreateAccountInput) (accounts.Account, error)
}

// ChartProvisioner creates missing template groups and accounts. Rows that
// already exist in the branch are left alone, so runs are repeatable.
type ChartProvisioner struct {
	store     ChartStore
	template  Template
	logger    *slog.Logger
	maxPasses int
	actorID   int64
}

// NewChartProvisioner builds a provisioner for tpl.
func NewChartProvisioner(store ChartStore, tpl Template, logger *slog.Logger) *ChartProvisioner {
	return &ChartProvisioner{store: store, template: tpl, logger: logger, maxPasses: DefaultMaxPasses}
}

// WithMaxPasses overrides the ordering bound.
func (p *ChartProvisioner) WithMaxPasses(n int) *ChartProvisioner {
	if n > 0 {
		p.maxPasses = n
	}
	return p
}

// WithActor attributes created rows to actorID in the audit log.
func (p *ChartProvisioner) WithActor(actorID int64) *ChartProvisioner {
	p.actorID = actorID
	return p
}

// CodePrefix is prepended to template account codes of a branch.
func CodePrefix(branchID *int64) string {
	if branchID == nil {
		return ""
	}
	return fmt.Sprintf("BR%03d-", *branchID)
}

// EnsureDefaultAccounts implements Provisioner.
func (p *ChartProvisioner) EnsureDefaultAccounts(ctx context.Context, branchID *int64) (Result, error) {
	res := Result{BranchID: branchID}
	chart, err := p.store.LoadChart(ctx, branchID)
	if err != nil {
		return res, err
	}

	groupIDs := make(map[string]int64)
	existing := make(map[string]bool)
	for _, g := range chart.Groups() {
		if shared.SameBranch(g.BranchID, branchID) {
			groupIDs[g.Code] = g.ID
			existing[g.Code] = true
		}
	}
	codes := make(map[string]bool)
	roles := make(map[accounts.SystemRole]bool)
	for _, a := range chart.Accounts() {
		if shared.SameBranch(a.BranchID, branchID) {
			codes[a.Code] = true
			if a.Role != accounts.RoleNone {
				roles[a.Role] = true
			}
		}
	}

	plan := Plan(p.template.Groups, existing, p.maxPasses)
	res.Unresolved = plan.Unresolved
	res.Invalid = plan.Invalid
	for _, code := range plan.Unresolved {
		p.logger.Warn("template group unresolved", slog.String("code", code), slog.String("branch", shared.BranchToken(branchID)))
	}

	for _, planned := range plan.Order {
		in := accounts.CreateGroupInput{
			BranchID:    branchID,
			Code:        planned.Spec.Code,
			Name:        planned.Spec.Name,
			Nature:      planned.Nature,
			MainGroup:   planned.MainGroup,
			Role:        planned.Role,
			Locked:      true,
			Description: planned.Spec.Description,
			ActorID:     p.actorID,
		}
		if planned.Spec.Parent != "" {
			parent := groupIDs[planned.Spec.Parent]
			in.ParentID = &parent
		}
		if in.Description == "" {
			in.Description = "System generated group: " + planned.Spec.Name
		}
		g, err := p.store.CreateGroup(ctx, in)
		if err != nil {
			return res, fmt.Errorf("create group %s: %w", planned.Spec.Code, err)
		}
		groupIDs[g.Code] = g.ID
		res.CreatedGroups = append(res.CreatedGroups, g)
	}

	for _, spec := range p.template.Accounts {
		role, ok := accounts.ParseSystemRole(spec.Role)
		if !ok || role == accounts.RoleNone {
			res.Invalid = append(res.Invalid, Issue{Code: spec.Code, Reason: "account needs a known system role"})
			continue
		}
		if roles[role] {
			continue
		}
		groupID, ok := groupIDs[spec.Group]
		if !ok {
			res.Invalid = append(res.Invalid, Issue{Code: spec.Code, Reason: "group " + spec.Group + " not provisioned"})
			continue
		}
		code, ok := freeCode(CodePrefix(branchID)+spec.Code, codes)
		if !ok {
			res.Invalid = append(res.Invalid, Issue{Code: spec.Code, Reason: "no free account code"})
			continue
		}
		a, err := p.store.CreateAccount(ctx, accounts.CreateAccountInput{
			BranchID:   branchID,
			GroupID:    groupID,
			Code:       code,
			Name:       spec.Name,
			LedgerType: accounts.LedgerGeneral,
			Role:       role,
			Locked:     true,
			ActorID:    p.actorID,
		})
		if err != nil {
			return res, fmt.Errorf("create account %s: %w", code, err)
		}
		codes[a.Code] = true
		roles[role] = true
		res.CreatedAccounts = append(res.CreatedAccounts, a)
	}

	p.logger.Info("default chart provisioned",
		slog.String("branch", shared.BranchToken(branchID)),
		slog.Int("groups", len(res.CreatedGroups)),
		slog.Int("accounts", len(res.CreatedAccounts)),
		slog.Int("unresolved", len(res.Unresolved)),
		slog.Int("invalid", len(res.Invalid)),
	)
	return res, nil
}

const maxCodeSuffix = 50

func freeCode(base string, taken map[string]bool) (string, bool) {
	if !taken[base] {
		return base, true
	}
	for i := 1; i <= maxCodeSuffix; i++ {
		code := fmt.Sprintf("%s-%02d", base, i)
		if !taken[code] {
			return code, true
		}
	}
	return "", false
}
