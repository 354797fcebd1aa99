package provisioning

import (
	"sort"

	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

// DefaultMaxPasses bounds the ordering loop of Plan.
const DefaultMaxPasses = 10

// Issue names a template entry that could not be used.
type Issue struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// PlannedGroup is a validated group ready to be created.
type PlannedGroup struct {
	Spec      GroupSpec
	Nature    shared.Nature
	MainGroup accounts.MainGroup
	Role      accounts.SystemRole
}

// GroupPlan is the creation order of a template.
type GroupPlan struct {
	Order      []PlannedGroup
	Unresolved []string
	Invalid    []Issue
}

// Plan orders groups parent-before-child. Codes in existing count as already
// created. Each pass places every group whose parent is known; the loop stops
// after maxPasses or when a pass makes no progress, leaving the rest unresolved.
func Plan(groups []GroupSpec, existing map[string]bool, maxPasses int) GroupPlan {
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}
	var plan GroupPlan
	known := make(map[string]bool, len(existing)+len(groups))
	for code := range existing {
		known[code] = true
	}

	pending := make([]GroupSpec, 0, len(groups))
	seen := make(map[string]bool, len(groups))
	for _, g := range groups {
		switch {
		case g.Code == "":
			plan.Invalid = append(plan.Invalid, Issue{Code: g.Name, Reason: "code is required"})
		case seen[g.Code]:
			plan.Invalid = append(plan.Invalid, Issue{Code: g.Code, Reason: "duplicate code in template"})
		case known[g.Code]:
			seen[g.Code] = true
		default:
			seen[g.Code] = true
			pending = append(pending, g)
		}
	}

	for pass := 0; pass < maxPasses && len(pending) > 0; pass++ {
		var next []GroupSpec
		progress := false
		for _, g := range pending {
			if g.Parent != "" && !known[g.Parent] {
				next = append(next, g)
				continue
			}
			progress = true
			planned, reason := validate(g)
			if reason != "" {
				plan.Invalid = append(plan.Invalid, Issue{Code: g.Code, Reason: reason})
				continue
			}
			known[g.Code] = true
			plan.Order = append(plan.Order, planned)
		}
		pending = next
		if !progress {
			break
		}
	}

	for _, g := range pending {
		plan.Unresolved = append(plan.Unresolved, g.Code)
	}
	sort.Strings(plan.Unresolved)
	return plan
}

func validate(g GroupSpec) (PlannedGroup, string) {
	nature, ok := shared.ParseNature(g.Nature)
	if !ok {
		return PlannedGroup{}, "unknown nature " + g.Nature
	}
	main := accounts.MainGroup(g.MainGroup)
	if main == "" {
		main = accounts.DefaultMainGroup(nature)
	}
	if !main.Valid() {
		return PlannedGroup{}, "unknown main group " + g.MainGroup
	}
	role, ok := accounts.ParseSystemRole(g.Role)
	if !ok {
		return PlannedGroup{}, "unknown system role " + g.Role
	}
	return PlannedGroup{Spec: g, Nature: nature, MainGroup: main, Role: role}, ""
}
