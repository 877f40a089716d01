package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/nebulium/authcore/structs"
)

type eventRepository struct {
	db *sql.DB
}

func (r *eventRepository) Insert(ctx context.Context, event *structs.SecurityEvent) error {
	metadata := "{}"
	if len(event.Metadata) > 0 {
		raw, err := json.Marshal(event.Metadata)
		if err != nil {
			return err
		}
		metadata = string(raw)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO security_events (id, type, severity, user_id, ip_address,
			user_agent, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		event.ID,
		string(event.Type),
		string(event.Severity),
		event.UserID,
		event.IPAddress,
		event.UserAgent,
		metadata,
		event.CreatedAt,
	)
	return err
}

func (r *eventRepository) Statistics(ctx context.Context, since time.Time) (*structs.EventStatistics, error) {
	stats := &structs.EventStatistics{
		ByType:     make(map[string]int64),
		BySeverity: make(map[string]int64),
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT type, severity, COUNT(*) FROM security_events
		WHERE created_at >= $1
		GROUP BY type, severity
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var eventType, severity string
		var count int64
		if err := rows.Scan(&eventType, &severity, &count); err != nil {
			return nil, err
		}
		stats.TotalEvents += count
		stats.ByType[eventType] += count
		stats.BySeverity[severity] += count
		if eventType == string(structs.EventSuspiciousActivity) {
			stats.SuspiciousActivity += count
		}
	}
	return stats, rows.Err()
}
