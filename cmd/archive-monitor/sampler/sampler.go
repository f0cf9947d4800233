// Package sampler abstracts the storeroom hardware. The scheduler only talks
// to the DeviceSampler interface; Simulated stands in for the real sensor and
// RFID reader fleet.
package sampler

import (
	"context"
	"math/rand"
	"time"

	"github.com/archive-systems/archive-monitor/cmd/archive-monitor/shared"
)

// DeviceSampler obtains one batch of readings or one scan per call.
type DeviceSampler interface {
	// SampleSensors returns one reading per known sensor source.
	SampleSensors(ctx context.Context) ([]shared.SensorReading, error)
	// ScanRFID performs one scan cycle and returns the observed tag
	// sighting, or nil when no tag was seen.
	ScanRFID(ctx context.Context) (*shared.TagSighting, error)
}

// TagDirectory resolves the currently active tag population. The postgresql
// store implements it.
type TagDirectory interface {
	ActiveTags(ctx context.Context) ([]string, error)
}

type sensor struct {
	id           string
	location     string
	baseTemp     float64
	baseHumidity float64
	baseLight    float64
}

type reader struct {
	id       int
	location string
}

// Simulated generates plausible storeroom readings: three environmental
// sensors jittering around zone baselines and two RFID readers that see one
// of the active tags about a third of the time.
type Simulated struct {
	tags TagDirectory

	sensors         []sensor
	readers         []reader
	scanProbability float64
}

// NewSimulated returns a sampler over the demo fleet.
func NewSimulated(tags TagDirectory) *Simulated {
	return &Simulated{
		tags: tags,
		sensors: []sensor{
			{id: "SENSOR_001", location: "storeroom zone A", baseTemp: 22.0, baseHumidity: 50.0, baseLight: 300.0},
			{id: "SENSOR_002", location: "storeroom zone B", baseTemp: 21.5, baseHumidity: 48.0, baseLight: 280.0},
			{id: "SENSOR_003", location: "storeroom zone C", baseTemp: 23.0, baseHumidity: 52.0, baseLight: 320.0},
		},
		readers: []reader{
			{id: 1, location: "storeroom entrance"},
			{id: 2, location: "storeroom exit"},
		},
		scanProbability: 0.3,
	}
}

func jitter(base float64, spread float64) float64 {
	return base + (rand.Float64()*2-1)*spread
}

func (s *Simulated) SampleSensors(_ context.Context) ([]shared.SensorReading, error) {
	now := time.Now()
	readings := make([]shared.SensorReading, 0, len(s.sensors))
	for _, sen := range s.sensors {
		readings = append(readings, shared.SensorReading{
			SensorID:       sen.id,
			Temperature:    jitter(sen.baseTemp, 2.0),
			Humidity:       jitter(sen.baseHumidity, 5.0),
			LightIntensity: jitter(sen.baseLight, 50.0),
			Location:       sen.location,
			Timestamp:      now,
		})
	}
	return readings, nil
}

func (s *Simulated) ScanRFID(ctx context.Context) (*shared.TagSighting, error) {
	if rand.Float64() >= s.scanProbability {
		return nil, nil
	}

	tags, err := s.tags.ActiveTags(ctx)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, nil
	}

	rd := s.readers[rand.Intn(len(s.readers))]
	return &shared.TagSighting{
		TagID:     tags[rand.Intn(len(tags))],
		DeviceID:  rd.id,
		Location:  rd.location,
		Timestamp: time.Now(),
	}, nil
}
