package postgresql

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/archive-systems/archive-monitor/cmd/archive-monitor/shared"
)

// CreateConfig inserts a new configuration version. Timestamps and the id
// are assigned by the database; versions are never updated in place.
func (c *Connection) CreateConfig(ctx context.Context, cfg shared.CollectionConfig) (shared.CollectionConfig, error) {
	row := c.db.QueryRow(ctx,
		`INSERT INTO collection_configs (sensor_interval, rfid_interval, is_paused, updated_by)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		cfg.SensorInterval, cfg.RFIDInterval, cfg.IsPaused, cfg.UpdatedBy)
	if err := row.Scan(&cfg.ID, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		return shared.CollectionConfig{}, err
	}
	return cfg, nil
}

// LatestConfig returns the current configuration version, ok=false when the
// table is empty.
func (c *Connection) LatestConfig(ctx context.Context) (shared.CollectionConfig, bool, error) {
	var cfg shared.CollectionConfig
	row := c.db.QueryRow(ctx,
		`SELECT id, sensor_interval, rfid_interval, is_paused, updated_by, created_at, updated_at
		 FROM collection_configs
		 ORDER BY updated_at DESC
		 LIMIT 1`)
	err := row.Scan(&cfg.ID, &cfg.SensorInterval, &cfg.RFIDInterval, &cfg.IsPaused,
		&cfg.UpdatedBy, &cfg.CreatedAt, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.CollectionConfig{}, false, nil
	}
	if err != nil {
		return shared.CollectionConfig{}, false, err
	}
	return cfg, true, nil
}

// ConfigHistory returns up to limit versions, most recently updated first.
func (c *Connection) ConfigHistory(ctx context.Context, limit int) ([]shared.CollectionConfig, error) {
	rows, err := c.db.Query(ctx,
		`SELECT id, sensor_interval, rfid_interval, is_paused, updated_by, created_at, updated_at
		 FROM collection_configs
		 ORDER BY updated_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []shared.CollectionConfig
	for rows.Next() {
		var cfg shared.CollectionConfig
		if err = rows.Scan(&cfg.ID, &cfg.SensorInterval, &cfg.RFIDInterval, &cfg.IsPaused,
			&cfg.UpdatedBy, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
			return nil, err
		}
		history = append(history, cfg)
	}
	return history, rows.Err()
}
