package provisioning_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/odyssey-erp/ledger-core/internal/accounting/provisioning"
)

func codes(plan provisioning.GroupPlan) []string {
	out := make([]string, 0, len(plan.Order))
	for _, g := range plan.Order {
		out = append(out, g.Spec.Code)
	}
	return out
}

func TestPlanPlacesParentsFirst(t *testing.T) {
	plan := provisioning.Plan([]provisioning.GroupSpec{
		{Code: "111", Name: "Cash", Nature: "Assets", Parent: "11", Role: "cash_account"},
		{Code: "11", Name: "Current Assets", Nature: "asset", Parent: "1"},
		{Code: "1", Name: "Assets", Nature: "asset"},
	}, nil, 0)

	if len(plan.Unresolved) != 0 || len(plan.Invalid) != 0 {
		t.Fatalf("unexpected leftovers %+v", plan)
	}
	if got := strings.Join(codes(plan), ","); got != "1,11,111" {
		t.Fatalf("expected parent-first order, got %s", got)
	}
	if plan.Order[2].Role != "cash_account" || plan.Order[2].MainGroup != "balance_sheet" {
		t.Fatalf("unexpected planned group %+v", plan.Order[2])
	}
}

func TestPlanUsesExistingParents(t *testing.T) {
	plan := provisioning.Plan([]provisioning.GroupSpec{
		{Code: "1", Name: "Assets", Nature: "asset"},
		{Code: "12", Name: "Fixed Assets", Nature: "asset", Parent: "1"},
	}, map[string]bool{"1": true}, 0)

	if got := strings.Join(codes(plan), ","); got != "12" {
		t.Fatalf("existing group must be skipped, got %s", got)
	}
}

func TestPlanFlagsInvalidAndUnresolved(t *testing.T) {
	plan := provisioning.Plan([]provisioning.GroupSpec{
		{Code: "1", Name: "Assets", Nature: "asset"},
		{Code: "X", Name: "Bad nature", Nature: "wealth", Parent: "1"},
		{Code: "Y", Name: "Child of bad", Nature: "asset", Parent: "X"},
		{Code: "Z", Name: "Bad role", Nature: "asset", Role: "treasure"},
		{Code: "A", Name: "Cycle a", Nature: "asset", Parent: "B"},
		{Code: "B", Name: "Cycle b", Nature: "asset", Parent: "A"},
		{Code: "1", Name: "Duplicate", Nature: "asset"},
	}, nil, 0)

	if got := strings.Join(codes(plan), ","); got != "1" {
		t.Fatalf("expected only the valid root, got %s", got)
	}
	if got := strings.Join(plan.Unresolved, ","); got != "A,B,Y" {
		t.Fatalf("unexpected unresolved %v", plan.Unresolved)
	}
	invalid := map[string]string{}
	for _, issue := range plan.Invalid {
		invalid[issue.Code] = issue.Reason
	}
	if len(invalid) != 3 || invalid["X"] == "" || invalid["Z"] == "" || invalid["1"] == "" {
		t.Fatalf("unexpected invalid entries %+v", plan.Invalid)
	}
}

func TestPlanStopsAfterMaxPasses(t *testing.T) {
	// A chain listed child-first resolves one level per pass.
	var chain []provisioning.GroupSpec
	for depth := 12; depth >= 1; depth-- {
		spec := provisioning.GroupSpec{Code: strconv.Itoa(depth), Name: "Level", Nature: "asset"}
		if depth > 1 {
			spec.Parent = strconv.Itoa(depth - 1)
		}
		chain = append(chain, spec)
	}

	plan := provisioning.Plan(chain, nil, provisioning.DefaultMaxPasses)
	if len(plan.Order) != 10 {
		t.Fatalf("expected 10 levels placed, got %d", len(plan.Order))
	}
	if got := strings.Join(plan.Unresolved, ","); got != "11,12" {
		t.Fatalf("expected deepest levels unresolved, got %v", plan.Unresolved)
	}

	full := provisioning.Plan(chain, nil, 12)
	if len(full.Order) != 12 || len(full.Unresolved) != 0 {
		t.Fatalf("expected full placement with 12 passes, got %+v", full)
	}
}

func TestShippedTemplatePlansCompletely(t *testing.T) {
	tpl, err := provisioning.LoadTemplate("../../../scripts/seed/chart_template.yaml")
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	plan := provisioning.Plan(tpl.Groups, nil, 0)
	if len(plan.Unresolved) != 0 || len(plan.Invalid) != 0 {
		t.Fatalf("template must plan cleanly: %+v %+v", plan.Unresolved, plan.Invalid)
	}
	if len(plan.Order) != len(tpl.Groups) {
		t.Fatalf("expected %d groups, got %d", len(tpl.Groups), len(plan.Order))
	}
}

func TestDecodeTemplateRejectsUnknownFields(t *testing.T) {
	_, err := provisioning.DecodeTemplate(strings.NewReader("groups:\n  - {code: \"1\", colour: red}\n"))
	if err == nil {
		t.Fatalf("expected unknown field error")
	}
}
