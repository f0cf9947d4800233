package collection

import (
	"context"
	"time"

	"github.com/archive-systems/archive-monitor/cmd/archive-monitor/shared"
)

// Store is the persistence contract the controller and scheduler need. The
// postgresql package provides the production implementation; tests substitute
// an in-memory one.
type Store interface {
	// CreateConfig inserts a new configuration version and returns it with
	// ID and timestamps assigned.
	CreateConfig(ctx context.Context, cfg shared.CollectionConfig) (shared.CollectionConfig, error)
	// LatestConfig returns the most recently updated configuration version.
	// ok is false when no version exists yet.
	LatestConfig(ctx context.Context) (cfg shared.CollectionConfig, ok bool, err error)
	// ConfigHistory returns up to limit versions, most recent first.
	ConfigHistory(ctx context.Context, limit int) ([]shared.CollectionConfig, error)

	// RecordStatus appends one status observation.
	RecordStatus(ctx context.Context, status shared.CollectionStatus) error
	// LatestStatus returns the most recent status row, or nil if none exists.
	LatestStatus(ctx context.Context) (*shared.CollectionStatus, error)

	// InsertReading persists one sensor reading.
	InsertReading(ctx context.Context, reading shared.SensorReading) error
	// RecordSighting updates the tag's last-seen location and appends a
	// location history row.
	RecordSighting(ctx context.Context, sighting shared.TagSighting) error

	// ReadingsSince counts sensor readings taken at or after since.
	ReadingsSince(ctx context.Context, since time.Time) (int64, error)
	// SightingsSince counts location history rows at or after since.
	SightingsSince(ctx context.Context, since time.Time) (int64, error)

	// AppendAudit writes one system log row.
	AppendAudit(ctx context.Context, level string, module string, message string, actor string) error
}
