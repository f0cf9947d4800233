package postgresql

import (
	"context"
	"time"

	"github.com/archive-systems/archive-monitor/cmd/archive-monitor/shared"
)

// InsertReading persists one sensor reading.
func (c *Connection) InsertReading(ctx context.Context, reading shared.SensorReading) error {
	_, err := c.db.Exec(ctx,
		`INSERT INTO environment_data (sensor_id, temperature, humidity, light_intensity, location, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		reading.SensorID, reading.Temperature, reading.Humidity, reading.LightIntensity,
		reading.Location, reading.Timestamp)
	return err
}

// ReadingsSince counts sensor readings taken at or after since.
func (c *Connection) ReadingsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	row := c.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM environment_data WHERE timestamp >= $1`, since)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
