package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/ledger-core/internal/shared"
)

// RepositoryPort abstracts chart persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListGroups(ctx context.Context, branchID *int64) ([]Group, error)
	ListAccounts(ctx context.Context, branchID *int64) ([]Account, error)
}

// AuditPort records chart changes.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Invalidator is told when the chart visible to a branch changed. A nil
// branch means global rows, which every branch sees.
type Invalidator interface {
	InvalidateChart(ctx context.Context, branchID *int64) error
}

// Service maintains the chart of accounts.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	invalidator Invalidator
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs the chart service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, logger: slog.Default(), now: time.Now}
}

// WithInvalidator registers a hook run after every committed chart change.
func (s *Service) WithInvalidator(inv Invalidator) { s.invalidator = inv }

// WithLogger replaces the default logger.
func (s *Service) WithLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateGroup validates and stores a group, computing depth and path.
func (s *Service) CreateGroup(ctx context.Context, in CreateGroupInput) (Group, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return Group{}, err
	}
	var created Group
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var parent *Group
		if in.ParentID != nil {
			p, err := resolveParent(ctx, tx, *in.ParentID, in.BranchID)
			if err != nil {
				return err
			}
			parent = &p
		}
		taken, err := tx.GroupCodeTaken(ctx, in.BranchID, in.Code)
		if err != nil {
			return err
		}
		if taken {
			return shared.Invalid("code", "already used in this branch")
		}
		created, err = tx.InsertGroup(ctx, in, parent)
		return err
	})
	if err != nil {
		return Group{}, err
	}
	s.invalidate(ctx, created.BranchID)
	s.record(ctx, in.ActorID, "account_group.create", "account_group", created.ID, map[string]any{
		"code": created.Code,
		"path": created.Path,
	})
	return created, nil
}

// CreateAccount stores an account under an existing live group of the same branch.
func (s *Service) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		group, err := tx.GetGroup(ctx, in.GroupID, false)
		if err != nil {
			if shared.IsNotFound(err) {
				return shared.Invalid("group_id", "group does not exist")
			}
			return err
		}
		if !shared.SameBranch(group.BranchID, in.BranchID) {
			return shared.Invalid("group_id", "group belongs to a different branch")
		}
		taken, err := tx.AccountCodeTaken(ctx, in.BranchID, in.Code)
		if err != nil {
			return err
		}
		if taken {
			return shared.Invalid("code", "already used in this branch")
		}
		created, err = tx.InsertAccount(ctx, in)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	s.invalidate(ctx, created.BranchID)
	s.record(ctx, in.ActorID, "account.create", "account", created.ID, map[string]any{
		"code":     created.Code,
		"group_id": created.GroupID,
	})
	return created, nil
}

// UpdateGroup renames and/or re-parents an unlocked group.
func (s *Service) UpdateGroup(ctx context.Context, in UpdateGroupInput) (Group, error) {
	if err := in.Validate(); err != nil {
		return Group{}, err
	}
	var updated Group
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetGroup(ctx, in.ID, true)
		if err != nil {
			return err
		}
		if current.Locked {
			return shared.InvalidBecause("id", shared.ErrLocked)
		}
		if in.Name != nil || in.Description != nil {
			name, desc := current.Name, current.Description
			if in.Name != nil {
				name = strings.TrimSpace(*in.Name)
			}
			if in.Description != nil {
				desc = *in.Description
			}
			if err := tx.UpdateGroupText(ctx, current.ID, name, desc); err != nil {
				return err
			}
		}
		if in.moves() {
			var parent *Group
			if in.ParentID != nil {
				p, err := resolveParent(ctx, tx, *in.ParentID, current.BranchID)
				if err != nil {
					return err
				}
				if strings.HasPrefix(p.Path, current.Path) {
					return shared.Invalid("parent_id", "move would create a cycle")
				}
				parent = &p
			}
			if err := tx.MoveSubtree(ctx, current, parent); err != nil {
				return err
			}
		}
		updated, err = tx.GetGroup(ctx, current.ID, false)
		return err
	})
	if err != nil {
		return Group{}, err
	}
	s.invalidate(ctx, updated.BranchID)
	s.record(ctx, in.ActorID, "account_group.update", "account_group", updated.ID, map[string]any{
		"name": updated.Name,
		"path": updated.Path,
	})
	return updated, nil
}

// UpdateAccount renames, re-terms or regroups an unlocked account. The new
// group must be live and in the account's branch.
func (s *Service) UpdateAccount(ctx context.Context, in UpdateAccountInput) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetAccount(ctx, in.ID, true)
		if err != nil {
			return err
		}
		if current.Locked {
			return shared.InvalidBecause("id", shared.ErrLocked)
		}
		if in.GroupID != nil && *in.GroupID != current.GroupID {
			group, err := tx.GetGroup(ctx, *in.GroupID, false)
			if err != nil {
				if shared.IsNotFound(err) {
					return shared.Invalid("group_id", "group does not exist")
				}
				return err
			}
			if !shared.SameBranch(group.BranchID, current.BranchID) {
				return shared.Invalid("group_id", "group belongs to a different branch")
			}
		}
		updated = in.apply(current)
		return tx.UpdateAccount(ctx, updated)
	})
	if err != nil {
		return Account{}, err
	}
	s.invalidate(ctx, updated.BranchID)
	s.record(ctx, in.ActorID, "account.update", "account", updated.ID, map[string]any{
		"name":     updated.Name,
		"group_id": updated.GroupID,
	})
	return updated, nil
}

// DeleteGroup soft-deletes an unlocked group without live children.
func (s *Service) DeleteGroup(ctx context.Context, id, actorID int64) error {
	var branchID *int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		g, err := tx.GetGroup(ctx, id, true)
		if err != nil {
			return err
		}
		branchID = g.BranchID
		if g.Locked {
			return shared.InvalidBecause("id", shared.ErrLocked)
		}
		groups, accts, err := tx.CountDependents(ctx, id)
		if err != nil {
			return err
		}
		if groups > 0 || accts > 0 {
			return shared.Invalid("id", fmt.Sprintf("group still has %d child groups and %d accounts", groups, accts))
		}
		return tx.SoftDeleteGroup(ctx, id, s.now())
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, branchID)
	s.record(ctx, actorID, "account_group.delete", "account_group", id, nil)
	return nil
}

// DeleteAccount soft-deletes an unlocked account that has no entries.
func (s *Service) DeleteAccount(ctx context.Context, id, actorID int64) error {
	var branchID *int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		a, err := tx.GetAccount(ctx, id, true)
		if err != nil {
			return err
		}
		branchID = a.BranchID
		if a.Locked {
			return shared.InvalidBecause("id", shared.ErrLocked)
		}
		used, err := tx.AccountHasEntries(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return shared.Invalid("id", "account has ledger entries")
		}
		return tx.SoftDeleteAccount(ctx, id, s.now())
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, branchID)
	s.record(ctx, actorID, "account.delete", "account", id, nil)
	return nil
}

// LoadChart reads the groups and accounts visible in the branch scope.
func (s *Service) LoadChart(ctx context.Context, branchID *int64) (*Chart, error) {
	groups, err := s.repo.ListGroups(ctx, branchID)
	if err != nil {
		return nil, err
	}
	accts, err := s.repo.ListAccounts(ctx, branchID)
	if err != nil {
		return nil, err
	}
	return NewChart(branchID, groups, accts)
}

// FullPath renders the ancestor names of a group joined with " > ".
func (s *Service) FullPath(ctx context.Context, groupID int64) (string, error) {
	chart, err := s.chartFor(ctx, groupID)
	if err != nil {
		return "", err
	}
	return chart.FullPath(groupID)
}

// Descendants returns the group and every group below it.
func (s *Service) Descendants(ctx context.Context, groupID int64) ([]Group, error) {
	chart, err := s.chartFor(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return chart.Descendants(groupID)
}

// AccountsUnder returns every account reachable below the group.
func (s *Service) AccountsUnder(ctx context.Context, groupID int64) ([]Account, error) {
	chart, err := s.chartFor(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return chart.AccountsUnder(groupID)
}

func (s *Service) chartFor(ctx context.Context, groupID int64) (*Chart, error) {
	var g Group
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		g, err = tx.GetGroup(ctx, groupID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.LoadChart(ctx, g.BranchID)
}

func resolveParent(ctx context.Context, tx TxRepository, parentID int64, branchID *int64) (Group, error) {
	parent, err := tx.GetGroup(ctx, parentID, false)
	if err != nil {
		if shared.IsNotFound(err) {
			return Group{}, shared.Invalid("parent_id", "parent group does not exist")
		}
		return Group{}, err
	}
	if !shared.SameBranch(parent.BranchID, branchID) {
		return Group{}, shared.Invalid("parent_id", "parent belongs to a different branch")
	}
	return parent, nil
}

func (s *Service) invalidate(ctx context.Context, branchID *int64) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateChart(ctx, branchID); err != nil {
		s.logger.Warn("report cache invalidation failed",
			slog.String("branch", shared.BranchToken(branchID)),
			slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}
