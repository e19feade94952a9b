package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Togather-Foundation/tablon/internal/audit"
	"github.com/Togather-Foundation/tablon/internal/metrics"
)

var _ audit.Store = (*AuditRepository)(nil)

// AuditRepository is append-only.
type AuditRepository struct {
	conn
}

func (r *AuditRepository) Insert(ctx context.Context, entry audit.Entry) (err error) {
	defer metrics.RecordQuery("audit.insert", time.Now(), &err)

	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = r.queryer().Exec(ctx, `
INSERT INTO audit_logs (user_id, user_name, user_email, action, details, timestamp)
VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.UserID, entry.UserName, entry.UserEmail, entry.Action, entry.Details, ts)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) List(ctx context.Context, limit, offset int) (_ []audit.Entry, err error) {
	defer metrics.RecordQuery("audit.list", time.Now(), &err)

	rows, err := r.queryer().Query(ctx, `
SELECT id, user_id, user_name, user_email, action, details, timestamp
  FROM audit_logs
 ORDER BY timestamp DESC, id DESC
 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	out := []audit.Entry{}
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserName, &e.UserEmail, &e.Action, &e.Details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}
