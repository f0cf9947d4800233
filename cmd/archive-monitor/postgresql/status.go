package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/archive-systems/archive-monitor/cmd/archive-monitor/shared"
)

// RecordStatus appends one status observation. Rows are never mutated.
func (c *Connection) RecordStatus(ctx context.Context, status shared.CollectionStatus) error {
	_, err := c.db.Exec(ctx,
		`INSERT INTO collection_status
		 (timestamp, is_running, sensor_last_collection, rfid_last_collection, cpu_usage, memory_usage, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		status.Timestamp, status.IsRunning, status.SensorLastCollection, status.RFIDLastCollection,
		status.CPUUsage, status.MemoryUsage, status.ErrorMessage)
	return err
}

// LatestStatus returns the most recent status row, or nil when none exists.
func (c *Connection) LatestStatus(ctx context.Context) (*shared.CollectionStatus, error) {
	var status shared.CollectionStatus
	row := c.db.QueryRow(ctx,
		`SELECT id, timestamp, is_running, sensor_last_collection, rfid_last_collection, cpu_usage, memory_usage, error_message
		 FROM collection_status
		 ORDER BY timestamp DESC
		 LIMIT 1`)
	err := row.Scan(&status.ID, &status.Timestamp, &status.IsRunning, &status.SensorLastCollection,
		&status.RFIDLastCollection, &status.CPUUsage, &status.MemoryUsage, &status.ErrorMessage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// StatusHistory returns up to limit status rows from the last hours hours,
// newest first.
func (c *Connection) StatusHistory(ctx context.Context, hours int, limit int) ([]shared.CollectionStatus, error) {
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	rows, err := c.db.Query(ctx,
		`SELECT id, timestamp, is_running, sensor_last_collection, rfid_last_collection, cpu_usage, memory_usage, error_message
		 FROM collection_status
		 WHERE timestamp >= $1
		 ORDER BY timestamp DESC
		 LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []shared.CollectionStatus
	for rows.Next() {
		var status shared.CollectionStatus
		if err = rows.Scan(&status.ID, &status.Timestamp, &status.IsRunning, &status.SensorLastCollection,
			&status.RFIDLastCollection, &status.CPUUsage, &status.MemoryUsage, &status.ErrorMessage); err != nil {
			return nil, err
		}
		history = append(history, status)
	}
	return history, rows.Err()
}

// PruneStatusBefore deletes status rows older than cutoff. Retention is an
// operator concern; nothing schedules this in-process.
func (c *Connection) PruneStatusBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := c.db.Exec(ctx, `DELETE FROM collection_status WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune collection status: %w", err)
	}
	return tag.RowsAffected(), nil
}
