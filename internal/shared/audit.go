package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog is one ledger event kept in audit_logs.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	BranchID *int64
	Meta     map[string]any
	At       time.Time
}

// row resolves the actor and folds the branch into the metadata.
func (l AuditLog) row(ctx context.Context) (actor *int64, meta []byte, err error) {
	if l.Action == "" || l.Entity == "" || l.EntityID == "" {
		return nil, nil, errors.New("audit: action, entity and entity id are required")
	}
	id := l.ActorID
	if id == 0 {
		id = ActorFromContext(ctx)
	}
	if id > 0 {
		actor = &id
	}
	fields := make(map[string]any, len(l.Meta)+1)
	for k, v := range l.Meta {
		fields[k] = v
	}
	if l.BranchID != nil {
		fields["branch_id"] = *l.BranchID
	}
	meta, err = json.Marshal(fields)
	if err != nil {
		return nil, nil, fmt.Errorf("audit: encode meta: %w", err)
	}
	return actor, meta, nil
}

// AuditLogger appends ledger events to audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a logger writing through pool.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the event. A zero ActorID falls back to the actor carried
// by ctx; anonymous events store a NULL actor.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.pool == nil {
		return errors.New("audit: logger not initialised")
	}
	actor, meta, err := log.row(ctx)
	if err != nil {
		return err
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err = l.pool.Exec(ctx, `
INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		actor, log.Action, log.Entity, log.EntityID, meta, at)
	return err
}
