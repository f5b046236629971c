package database

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// RecordAudit writes an audit log entry. Failures are returned to the
// caller but never block the underlying operation.
func (r *Repository) RecordAudit(ctx context.Context, entry *AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	var detail []byte
	if entry.Detail != nil {
		detail, _ = json.Marshal(entry.Detail)
	}
	query := `
		INSERT INTO polybot_audit_log (id, user_id, action, target, detail, ip_address)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6)
		RETURNING created_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		entry.ID, entry.UserID, entry.Action, entry.Target, detail, entry.IPAddress,
	).Scan(&entry.CreatedAt)
}

// GetAuditLog returns recent audit entries, newest first. An empty
// userID returns entries across all users (admin view).
func (r *Repository) GetAuditLog(ctx context.Context, userID string, limit int) ([]*AuditEntry, error) {
	query := `
		SELECT id, COALESCE(user_id::text, ''), action, COALESCE(target, ''), detail, COALESCE(ip_address, ''), created_at
		FROM polybot_audit_log
		WHERE $1 = '' OR user_id = $1::uuid
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		e := &AuditEntry{}
		var detail []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Target, &detail, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(detail) > 0 {
			_ = json.Unmarshal(detail, &e.Detail)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
