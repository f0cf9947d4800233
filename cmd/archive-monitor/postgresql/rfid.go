package postgresql

import (
	"context"
	"time"

	"github.com/archive-systems/archive-monitor/cmd/archive-monitor/shared"
)

// ActiveTags returns the ids of all tags with status 'active'.
func (c *Connection) ActiveTags(ctx context.Context) ([]string, error) {
	rows, err := c.db.Query(ctx,
		`SELECT tag_id FROM rfid_tags WHERE status = 'active'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err = rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// RecordSighting updates the tag's last-seen location and appends the
// location history row in one transaction, so the tag state and the history
// never diverge.
func (c *Connection) RecordSighting(ctx context.Context, sighting shared.TagSighting) error {
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err = tx.Exec(ctx,
		`UPDATE rfid_tags SET current_location = $1, last_seen_device = $2, last_seen_at = $3 WHERE tag_id = $4`,
		sighting.Location, sighting.DeviceID, sighting.Timestamp, sighting.TagID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx,
		`INSERT INTO location_history (tag_id, device_id, location, timestamp) VALUES ($1, $2, $3, $4)`,
		sighting.TagID, sighting.DeviceID, sighting.Location, sighting.Timestamp); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SightingsSince counts location history rows at or after since.
func (c *Connection) SightingsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	row := c.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM location_history WHERE timestamp >= $1`, since)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
