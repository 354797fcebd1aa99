package shared

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuditRowUsesContextActorAndBranch(t *testing.T) {
	branch := int64(3)
	ctx := ContextWithActor(context.Background(), 42)
	actor, raw, err := AuditLog{
		Action:   "transaction.post",
		Entity:   "transaction",
		EntityID: "9",
		BranchID: &branch,
		Meta:     map[string]any{"voucher_number": "JV0009"},
	}.row(ctx)
	require.NoError(t, err)
	require.NotNil(t, actor)
	require.Equal(t, int64(42), *actor)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(raw, &meta))
	require.Equal(t, "JV0009", meta["voucher_number"])
	require.EqualValues(t, 3, meta["branch_id"])
}

func TestAuditRowAnonymousAndIncomplete(t *testing.T) {
	actor, raw, err := AuditLog{Action: "group.create", Entity: "group", EntityID: "1"}.row(context.Background())
	require.NoError(t, err)
	require.Nil(t, actor)
	require.JSONEq(t, `{}`, string(raw))

	_, _, err = AuditLog{Action: "group.create", Entity: "group"}.row(context.Background())
	require.Error(t, err)
}

func TestLedgerLockKey(t *testing.T) {
	branch := int64(12)
	require.Equal(t, "ledger:integrity:all:lock", LedgerLockKey("integrity", nil))
	require.Equal(t, "ledger:warmup:12:lock", LedgerLockKey("warmup", &branch))
}
