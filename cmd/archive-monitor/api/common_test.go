package api

import (
	"bytes"
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/archive-systems/archive-monitor/cmd/archive-monitor/collection"
	"github.com/archive-systems/archive-monitor/cmd/archive-monitor/shared"
)

// fakeStore implements collection.Store and StatusStore in memory.
type fakeStore struct {
	mu        sync.Mutex
	configs   []shared.CollectionConfig
	statuses  []shared.CollectionStatus
	readings  []shared.SensorReading
	sightings []shared.TagSighting
	nextID    int64

	statusHistoryErr error
	unavailable      bool
}

func (f *fakeStore) IsAvailable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.unavailable
}

func (f *fakeStore) CreateConfig(_ context.Context, cfg shared.CollectionConfig) (shared.CollectionConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	cfg.ID = f.nextID
	cfg.CreatedAt = time.Unix(1700000000, 0).Add(time.Duration(f.nextID) * time.Second)
	cfg.UpdatedAt = cfg.CreatedAt
	f.configs = append(f.configs, cfg)
	return cfg, nil
}

func (f *fakeStore) LatestConfig(_ context.Context) (shared.CollectionConfig, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.configs) == 0 {
		return shared.CollectionConfig{}, false, nil
	}
	return f.configs[len(f.configs)-1], true, nil
}

func (f *fakeStore) ConfigHistory(_ context.Context, limit int) ([]shared.CollectionConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	history := make([]shared.CollectionConfig, 0, limit)
	for i := len(f.configs) - 1; i >= 0 && len(history) < limit; i-- {
		history = append(history, f.configs[i])
	}
	return history, nil
}

func (f *fakeStore) RecordStatus(_ context.Context, status shared.CollectionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeStore) LatestStatus(_ context.Context) (*shared.CollectionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return nil, nil
	}
	status := f.statuses[len(f.statuses)-1]
	return &status, nil
}

func (f *fakeStore) StatusHistory(_ context.Context, hours int, limit int) ([]shared.CollectionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusHistoryErr != nil {
		return nil, f.statusHistoryErr
	}
	history := make([]shared.CollectionStatus, 0, limit)
	for i := len(f.statuses) - 1; i >= 0 && len(history) < limit; i-- {
		history = append(history, f.statuses[i])
	}
	return history, nil
}

func (f *fakeStore) InsertReading(_ context.Context, reading shared.SensorReading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readings = append(f.readings, reading)
	return nil
}

func (f *fakeStore) RecordSighting(_ context.Context, sighting shared.TagSighting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sightings = append(f.sightings, sighting)
	return nil
}

func (f *fakeStore) ReadingsSince(_ context.Context, _ time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.readings)), nil
}

func (f *fakeStore) SightingsSince(_ context.Context, _ time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.sightings)), nil
}

func (f *fakeStore) AppendAudit(_ context.Context, _ string, _ string, _ string, _ string) error {
	return nil
}

type fakeDevices struct{}

func (fakeDevices) SampleSensors(_ context.Context) ([]shared.SensorReading, error) {
	return []shared.SensorReading{
		{SensorID: "SENSOR_001", Temperature: 22.0, Humidity: 50.0, LightIntensity: 300.0, Location: "storeroom zone A", Timestamp: time.Now()},
	}, nil
}

func (fakeDevices) ScanRFID(_ context.Context) (*shared.TagSighting, error) {
	return nil, nil
}

type testServer struct {
	router *gin.Engine
	store  *fakeStore
	freq   *collection.Controller
	sched  *collection.Scheduler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := &fakeStore{}
	freq := collection.NewController(store)
	sched := collection.NewScheduler(freq, store, fakeDevices{}, clock.NewMock())
	t.Cleanup(func() { sched.Stop(context.Background()) })
	return &testServer{
		router: NewRouter(freq, sched, store),
		store:  store,
		freq:   freq,
		sched:  sched,
	}
}

func (s *testServer) do(t *testing.T, method string, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}
