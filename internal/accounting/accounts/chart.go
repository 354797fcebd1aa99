package accounts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

// Chart is an immutable in-memory view of the groups and accounts visible in
// one branch scope. Reports answer every tree question from it.
type Chart struct {
	branchID *int64
	groups   map[int64]Group
	accounts map[int64]Account
	children map[int64][]int64
	members  map[int64][]int64
	roots    []int64
	order    []int64
}

// NewChart indexes groups and accounts and verifies the tree shape.
func NewChart(branchID *int64, groups []Group, accts []Account) (*Chart, error) {
	scope := shared.BranchToken(branchID)
	c := &Chart{
		branchID: branchID,
		groups:   make(map[int64]Group, len(groups)),
		accounts: make(map[int64]Account, len(accts)),
		children: make(map[int64][]int64),
		members:  make(map[int64][]int64),
	}
	for _, g := range groups {
		if _, dup := c.groups[g.ID]; dup {
			return nil, shared.Misconfigured("", scope, fmt.Sprintf("group %d listed twice", g.ID))
		}
		c.groups[g.ID] = g
	}
	for _, g := range groups {
		if g.ParentID == nil {
			c.roots = append(c.roots, g.ID)
			continue
		}
		parent, ok := c.groups[*g.ParentID]
		if !ok {
			return nil, shared.Misconfigured("", scope, fmt.Sprintf("group %s has unresolved parent %d", g.Code, *g.ParentID))
		}
		if !shared.SameBranch(parent.BranchID, g.BranchID) {
			return nil, shared.Misconfigured("", scope, fmt.Sprintf("group %s crosses branches with parent %s", g.Code, parent.Code))
		}
		c.children[parent.ID] = append(c.children[parent.ID], g.ID)
	}
	depths, err := c.resolveDepths(scope)
	if err != nil {
		return nil, err
	}
	for _, a := range accts {
		g, ok := c.groups[a.GroupID]
		if !ok {
			return nil, shared.Misconfigured("", scope, fmt.Sprintf("account %s has unresolved group %d", a.Code, a.GroupID))
		}
		if !shared.SameBranch(g.BranchID, a.BranchID) {
			return nil, shared.Misconfigured("", scope, fmt.Sprintf("account %s crosses branches with group %s", a.Code, g.Code))
		}
		c.accounts[a.ID] = a
		c.members[a.GroupID] = append(c.members[a.GroupID], a.ID)
	}

	c.sortGroupIDs(c.roots)
	for id := range c.children {
		c.sortGroupIDs(c.children[id])
	}
	for id := range c.members {
		c.sortAccountIDs(c.members[id])
	}
	c.order = make([]int64, 0, len(c.groups))
	for id := range c.groups {
		c.order = append(c.order, id)
	}
	sort.Slice(c.order, func(i, j int) bool {
		di, dj := depths[c.order[i]], depths[c.order[j]]
		if di != dj {
			return di > dj
		}
		return c.order[i] < c.order[j]
	})
	return c, nil
}

// resolveDepths walks every group to its root, rejecting cycles, and
// refreshes the cached depth on each group.
func (c *Chart) resolveDepths(scope string) (map[int64]int, error) {
	depths := make(map[int64]int, len(c.groups))
	for id := range c.groups {
		var trail []int64
		seen := map[int64]bool{}
		cur := id
		base := 0
		for {
			if d, ok := depths[cur]; ok {
				base = d + 1
				break
			}
			if seen[cur] {
				return nil, shared.Misconfigured("", scope, fmt.Sprintf("group %s is part of a cycle", c.groups[cur].Code))
			}
			seen[cur] = true
			trail = append(trail, cur)
			g := c.groups[cur]
			if g.ParentID == nil {
				break
			}
			cur = *g.ParentID
		}
		for i := len(trail) - 1; i >= 0; i-- {
			depths[trail[i]] = base
			base++
		}
	}
	for id, d := range depths {
		g := c.groups[id]
		g.Depth = d
		c.groups[id] = g
	}
	return depths, nil
}

func (c *Chart) sortGroupIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool {
		gi, gj := c.groups[ids[i]], c.groups[ids[j]]
		if gi.Code != gj.Code {
			return gi.Code < gj.Code
		}
		return gi.ID < gj.ID
	})
}

func (c *Chart) sortAccountIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool {
		ai, aj := c.accounts[ids[i]], c.accounts[ids[j]]
		if ai.Code != aj.Code {
			return ai.Code < aj.Code
		}
		return ai.ID < aj.ID
	})
}

// BranchID returns the scope the chart was loaded for.
func (c *Chart) BranchID() *int64 { return c.branchID }

// Scope renders the branch scope for error messages.
func (c *Chart) Scope() string { return shared.BranchToken(c.branchID) }

// Group returns the group with id.
func (c *Chart) Group(id int64) (Group, bool) {
	g, ok := c.groups[id]
	return g, ok
}

// Account returns the account with id.
func (c *Chart) Account(id int64) (Account, bool) {
	a, ok := c.accounts[id]
	return a, ok
}

// Groups lists every group sorted by code.
func (c *Chart) Groups() []Group {
	ids := make([]int64, 0, len(c.groups))
	for id := range c.groups {
		ids = append(ids, id)
	}
	c.sortGroupIDs(ids)
	return c.groupsOf(ids)
}

// Accounts lists every account sorted by code.
func (c *Chart) Accounts() []Account {
	ids := make([]int64, 0, len(c.accounts))
	for id := range c.accounts {
		ids = append(ids, id)
	}
	c.sortAccountIDs(ids)
	return c.accountsOf(ids)
}

// Roots lists top-level groups sorted by code.
func (c *Chart) Roots() []Group { return c.groupsOf(c.roots) }

// RootsOf lists the top-level groups of one nature.
func (c *Chart) RootsOf(n shared.Nature) []Group {
	var out []Group
	for _, id := range c.roots {
		if g := c.groups[id]; g.Nature == n {
			out = append(out, g)
		}
	}
	return out
}

// Children lists the direct sub-groups of id sorted by code.
func (c *Chart) Children(id int64) []Group { return c.groupsOf(c.children[id]) }

// AccountsIn lists accounts directly under group id sorted by code.
func (c *Chart) AccountsIn(id int64) []Account { return c.accountsOf(c.members[id]) }

// RollupOrder returns group ids deepest first. Adding each group into its
// parent in this order resolves every subtotal in one pass.
func (c *Chart) RollupOrder() []int64 {
	out := make([]int64, len(c.order))
	copy(out, c.order)
	return out
}

// Ancestors returns the chain from the root down to id inclusive.
func (c *Chart) Ancestors(id int64) ([]Group, error) {
	g, ok := c.groups[id]
	if !ok {
		return nil, shared.NotFound("account_group", id)
	}
	chain := []Group{g}
	for g.ParentID != nil {
		g = c.groups[*g.ParentID]
		chain = append(chain, g)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// FullPath joins ancestor names top-down with " > ".
func (c *Chart) FullPath(id int64) (string, error) {
	chain, err := c.Ancestors(id)
	if err != nil {
		return "", err
	}
	names := make([]string, len(chain))
	for i, g := range chain {
		names[i] = g.Name
	}
	return strings.Join(names, " > "), nil
}

// Descendants returns id and every group below it, parents before children.
func (c *Chart) Descendants(id int64) ([]Group, error) {
	if _, ok := c.groups[id]; !ok {
		return nil, shared.NotFound("account_group", id)
	}
	var out []Group
	queue := []int64{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, c.groups[cur])
		queue = append(queue, c.children[cur]...)
	}
	return out, nil
}

// AccountsUnder returns every account reachable below group id.
func (c *Chart) AccountsUnder(id int64) ([]Account, error) {
	groups, err := c.Descendants(id)
	if err != nil {
		return nil, err
	}
	var out []Account
	for _, g := range groups {
		out = append(out, c.accountsOf(c.members[g.ID])...)
	}
	return out, nil
}

// NatureOf returns the nature inherited from the account's group.
func (c *Chart) NatureOf(accountID int64) (shared.Nature, bool) {
	a, ok := c.accounts[accountID]
	if !ok {
		return "", false
	}
	return c.groups[a.GroupID].Nature, true
}

// FindRole returns the nearest role matching match, looking at the account
// first and then each ancestor group upward.
func (c *Chart) FindRole(accountID int64, match func(SystemRole) bool) (SystemRole, bool) {
	a, ok := c.accounts[accountID]
	if !ok {
		return RoleNone, false
	}
	if a.Role != RoleNone && match(a.Role) {
		return a.Role, true
	}
	return c.findGroupRole(a.GroupID, match)
}

func (c *Chart) findGroupRole(groupID int64, match func(SystemRole) bool) (SystemRole, bool) {
	g, ok := c.groups[groupID]
	for ok {
		if g.Role != RoleNone && match(g.Role) {
			return g.Role, true
		}
		if g.ParentID == nil {
			break
		}
		g, ok = c.groups[*g.ParentID]
	}
	return RoleNone, false
}

// NearestGroupRole returns the closest tagged role at or above group id.
func (c *Chart) NearestGroupRole(groupID int64) SystemRole {
	role, _ := c.findGroupRole(groupID, func(SystemRole) bool { return true })
	return role
}

// AccountsWithRole lists accounts tagged with role or placed under a group
// tagged with role.
func (c *Chart) AccountsWithRole(role SystemRole) []Account {
	var out []Account
	for _, a := range c.Accounts() {
		if _, ok := c.FindRole(a.ID, func(r SystemRole) bool { return r == role }); ok {
			out = append(out, a)
		}
	}
	return out
}

// HasGroupRole reports whether any group carries role.
func (c *Chart) HasGroupRole(role SystemRole) bool {
	for _, g := range c.groups {
		if g.Role == role {
			return true
		}
	}
	return false
}

// RequireAccountWithRole returns the lowest-coded account carrying role.
func (c *Chart) RequireAccountWithRole(role SystemRole) (Account, error) {
	for _, a := range c.Accounts() {
		if a.Role == role {
			return a, nil
		}
	}
	if found := c.AccountsWithRole(role); len(found) > 0 {
		return found[0], nil
	}
	return Account{}, shared.Misconfigured(string(role), c.Scope(), "no account carries this system role")
}

func (c *Chart) groupsOf(ids []int64) []Group {
	out := make([]Group, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.groups[id])
	}
	return out
}

func (c *Chart) accountsOf(ids []int64) []Account {
	out := make([]Account, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.accounts[id])
	}
	return out
}
