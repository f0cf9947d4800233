package collection

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/archive-systems/archive-monitor/cmd/archive-monitor/shared"
)

// memStore is an in-memory Store used by controller and scheduler tests.
// Failure modes are injectable per operation.
type memStore struct {
	mu        sync.Mutex
	configs   []shared.CollectionConfig
	statuses  []shared.CollectionStatus
	readings  []shared.SensorReading
	sightings []shared.TagSighting
	audits    []string
	nextID    int64

	failCreateConfig error
	failLatestConfig error
	failHistory      error
	failInsert       error
}

func newMemStore() *memStore {
	return &memStore{}
}

func (m *memStore) CreateConfig(_ context.Context, cfg shared.CollectionConfig) (shared.CollectionConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateConfig != nil {
		return shared.CollectionConfig{}, m.failCreateConfig
	}
	m.nextID++
	cfg.ID = m.nextID
	// Monotonic timestamps so history ordering is unambiguous.
	cfg.CreatedAt = time.Unix(1700000000, 0).Add(time.Duration(m.nextID) * time.Second)
	cfg.UpdatedAt = cfg.CreatedAt
	m.configs = append(m.configs, cfg)
	return cfg, nil
}

func (m *memStore) LatestConfig(_ context.Context) (shared.CollectionConfig, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLatestConfig != nil {
		return shared.CollectionConfig{}, false, m.failLatestConfig
	}
	if len(m.configs) == 0 {
		return shared.CollectionConfig{}, false, nil
	}
	return m.sortedLocked()[0], true, nil
}

func (m *memStore) ConfigHistory(_ context.Context, limit int) ([]shared.CollectionConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failHistory != nil {
		return nil, m.failHistory
	}
	sorted := m.sortedLocked()
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (m *memStore) sortedLocked() []shared.CollectionConfig {
	sorted := append([]shared.CollectionConfig(nil), m.configs...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt)
	})
	return sorted
}

func (m *memStore) RecordStatus(_ context.Context, status shared.CollectionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *memStore) LatestStatus(_ context.Context) (*shared.CollectionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.statuses) == 0 {
		return nil, nil
	}
	status := m.statuses[len(m.statuses)-1]
	return &status, nil
}

func (m *memStore) InsertReading(_ context.Context, reading shared.SensorReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert != nil {
		return m.failInsert
	}
	m.readings = append(m.readings, reading)
	return nil
}

func (m *memStore) RecordSighting(_ context.Context, sighting shared.TagSighting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sightings = append(m.sightings, sighting)
	return nil
}

func (m *memStore) ReadingsSince(_ context.Context, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, r := range m.readings {
		if !r.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memStore) SightingsSince(_ context.Context, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, s := range m.sightings {
		if !s.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memStore) AppendAudit(_ context.Context, _ string, _ string, message string, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, message)
	return nil
}

func (m *memStore) readingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.readings)
}

func (m *memStore) configCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.configs)
}

// fakeSampler returns canned readings and sightings, with injectable errors.
type fakeSampler struct {
	mu        sync.Mutex
	sensorErr error
	scanErr   error
	sighting  *shared.TagSighting
}

func (f *fakeSampler) SampleSensors(_ context.Context) ([]shared.SensorReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sensorErr != nil {
		return nil, f.sensorErr
	}
	return []shared.SensorReading{
		{SensorID: "SENSOR_001", Temperature: 22.0, Humidity: 50.0, LightIntensity: 300.0, Location: "storeroom zone A", Timestamp: time.Now()},
	}, nil
}

func (f *fakeSampler) ScanRFID(_ context.Context) (*shared.TagSighting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	if f.sighting == nil {
		return nil, nil
	}
	sighting := *f.sighting
	return &sighting, nil
}

func (f *fakeSampler) setSensorError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sensorErr = err
}

func (f *fakeSampler) setScanError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanErr = err
}

type testRig struct {
	store   *memStore
	freq    *Controller
	sched   *Scheduler
	devices *fakeSampler
	clk     *clock.Mock
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	store := newMemStore()
	freq := NewController(store)
	devices := &fakeSampler{}
	clk := clock.NewMock()
	sched := NewScheduler(freq, store, devices, clk)
	return &testRig{store: store, freq: freq, sched: sched, devices: devices, clk: clk}
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }
