package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EntityGRN tags audit rows written for goods receipts.
const EntityGRN = "grn"

// maxEntityIDLen bounds entity_id; bulk reads join up to fifty ids.
const maxEntityIDLen = 512

// AuditLog is one row of the audit trail.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditLogger appends to audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the entry. Callers log failures and carry on.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	row, err := prepareAudit(log)
	if err != nil {
		return err
	}
	metaJSON, err := json.Marshal(row.Meta)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		nullActor(row.ActorID), row.Action, row.Entity, row.EntityID, metaJSON, row.At)
	return err
}

func prepareAudit(log AuditLog) (AuditLog, error) {
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return AuditLog{}, errors.New("audit log requires action/entity/entity_id")
	}
	if len(log.EntityID) > maxEntityIDLen {
		log.EntityID = log.EntityID[:maxEntityIDLen]
	}
	if log.Meta == nil {
		log.Meta = map[string]any{}
	}
	if log.At.IsZero() {
		log.At = time.Now().UTC()
	}
	return log, nil
}

func nullActor(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
