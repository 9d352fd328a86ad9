package database

import (
	"context"
	"fmt"

	"github.com/user/tradedesk/backend/internal/models"
)

// InsertActivityLog appends one entry. There is no update or delete
// counterpart; the log is append-only by construction.
func InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}

	query := `INSERT INTO activity_logs
		(actor_id, actor_email, actor_role, action, target_collection, target_id,
		 metadata, ip_address, user_agent, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	err := DB.QueryRow(ctx, query,
		entry.ActorID, entry.ActorEmail, entry.ActorRole, entry.Action,
		entry.TargetCollection, entry.TargetID, entry.Metadata,
		entry.IPAddress, entry.UserAgent, entry.Location,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting activity log: %w", err)
	}
	return nil
}

// ListActivityLogs returns entries, newest first.
func ListActivityLogs(ctx context.Context, limit int) ([]*models.ActivityLog, error) {
	if limit <= 0 {
		limit = 200
	}

	rows, err := DB.Query(ctx, `SELECT id, actor_id, actor_email, actor_role, action,
		target_collection, target_id, metadata, ip_address, user_agent, location, created_at
		FROM activity_logs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying activity logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.ActivityLog, 0)
	for rows.Next() {
		e := &models.ActivityLog{}
		err := rows.Scan(&e.ID, &e.ActorID, &e.ActorEmail, &e.ActorRole, &e.Action,
			&e.TargetCollection, &e.TargetID, &e.Metadata, &e.IPAddress, &e.UserAgent,
			&e.Location, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning activity log row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
