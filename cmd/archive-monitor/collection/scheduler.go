package collection

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"go.uber.org/zap"

	"github.com/archive-systems/archive-monitor/cmd/archive-monitor/sampler"
	"github.com/archive-systems/archive-monitor/cmd/archive-monitor/shared"
)

const (
	// resourceSampleInterval is how often the monitor loop records a status
	// row while collection is running.
	resourceSampleInterval = 30 * time.Second
	// monitorStopTimeout bounds how long Stop waits for the monitor loop.
	monitorStopTimeout = 5 * time.Second

	// maxTrackedErrors caps the rolling error list.
	maxTrackedErrors = 50
	// errorTailSize is how many recent errors a status snapshot carries.
	errorTailSize = 5
)

// Prometheus metrics
var (
	sensorSamplesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archivemonitor_sensor_samples_total",
			Help: "The total number of persisted sensor readings",
		},
	)
	rfidSightingsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archivemonitor_rfid_sightings_total",
			Help: "The total number of recorded RFID tag sightings",
		},
	)
	collectionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archivemonitor_collection_errors_total",
			Help: "The total number of failed collection ticks by job type",
		},
		[]string{"type"},
	)
	schedulerRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "archivemonitor_scheduler_running",
			Help: "Whether the collection scheduler is running",
		},
	)
)

// IntervalPair is the active interval portion of a status snapshot.
type IntervalPair struct {
	SensorInterval int `json:"sensorInterval"`
	RFIDInterval   int `json:"rfidInterval"`
}

// LastCollection carries the most recent successful tick time per job type.
type LastCollection struct {
	Sensor *time.Time `json:"sensor"`
	RFID   *time.Time `json:"rfid"`
}

// ResourceUsage is a live reading of process host resources.
type ResourceUsage struct {
	CPUUsage     float64 `json:"cpuUsage"`
	MemoryUsage  float64 `json:"memoryUsage"`
	MemoryUsedMB float64 `json:"memoryUsedMB"`
}

// TodayCounts are the successful collections since local midnight.
type TodayCounts struct {
	SensorCollections int64 `json:"sensorCollections"`
	RFIDScans         int64 `json:"rfidScans"`
}

// ErrorCounts breaks the rolling error list down by job type.
type ErrorCounts struct {
	Total  int `json:"total"`
	Sensor int `json:"sensor"`
	RFID   int `json:"rfid"`
}

// Statistics aggregates today's counts and the error breakdown.
type Statistics struct {
	Today  TodayCounts `json:"today"`
	Errors ErrorCounts `json:"errors"`
}

// StatusSnapshot is the composite scheduler status returned by Status.
type StatusSnapshot struct {
	IsRunning      bool                     `json:"isRunning"`
	IsPaused       bool                     `json:"isPaused"`
	CurrentConfig  IntervalPair             `json:"currentConfig"`
	LastCollection LastCollection           `json:"lastCollection"`
	Performance    ResourceUsage            `json:"performance"`
	Errors         []shared.CollectionError `json:"errors"`
	Statistics     Statistics               `json:"statistics"`
	Timestamp      time.Time                `json:"timestamp"`
}

// SchedulerResult is the outcome of a lifecycle operation.
type SchedulerResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Status  string          `json:"status"`
	Config  *ConfigSnapshot `json:"config,omitempty"`
}

// ForceResult is the outcome of a forced out-of-schedule tick.
type ForceResult struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Scheduler runs the two periodic collection jobs plus a background resource
// monitor. Job cadence tracks the controller's live configuration through its
// change listeners.
type Scheduler struct {
	freq    *Controller
	store   Store
	devices sampler.DeviceSampler
	clk     clock.Clock

	mu           sync.Mutex
	running      bool
	stop         chan struct{}
	monitorDone  chan struct{}
	sensorTicker *clock.Ticker
	rfidTicker   *clock.Ticker
	sensorLast   *time.Time
	rfidLast     *time.Time
	errors       []shared.CollectionError
}

// NewScheduler wires a scheduler to the controller's change notifications.
// The clock is injected so tests can drive the tickers deterministically;
// production passes clock.New().
func NewScheduler(freq *Controller, store Store, devices sampler.DeviceSampler, clk clock.Clock) *Scheduler {
	s := &Scheduler{
		freq:    freq,
		store:   store,
		devices: devices,
		clk:     clk,
	}
	freq.OnConfigChange(s.handleConfigChange)
	freq.OnStatusChange(s.handleStatusChange)
	return s
}

// Start begins both periodic jobs at the current intervals and the resource
// monitor loop. Starting while already running is a no-op success; starting
// while the configuration is paused fails.
func (s *Scheduler) Start(ctx context.Context) SchedulerResult {
	cfg := s.freq.GetCurrentConfig(ctx)

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return SchedulerResult{Success: true, Message: "collection is already running", Status: "running"}
	}
	if cfg.IsPaused {
		s.mu.Unlock()
		return SchedulerResult{
			Success: false,
			Message: "collection is paused, resume it before starting",
			Status:  "paused",
		}
	}

	s.stop = make(chan struct{})
	s.monitorDone = make(chan struct{})
	s.sensorTicker = s.clk.Ticker(time.Duration(cfg.SensorInterval) * time.Second)
	s.rfidTicker = s.clk.Ticker(time.Duration(cfg.RFIDInterval) * time.Second)
	// The monitor ticker is created here, not in the loop goroutine, so it
	// is registered with the clock before Start returns.
	monitorTicker := s.clk.Ticker(resourceSampleInterval)
	s.running = true

	go s.jobLoop(s.stop, s.sensorTicker, s.collectSensorData)
	go s.jobLoop(s.stop, s.rfidTicker, s.scanRFIDDevices)
	go s.monitorLoop(s.stop, s.monitorDone, monitorTicker)
	s.mu.Unlock()

	schedulerRunning.Set(1)
	s.recordStatus(ctx, true, nil)
	zap.S().Infof("Collection started: sensor=%ds, rfid=%ds", cfg.SensorInterval, cfg.RFIDInterval)

	return SchedulerResult{Success: true, Message: "collection started", Status: "running", Config: &cfg}
}

// Stop cancels both jobs and waits up to monitorStopTimeout for the resource
// monitor to exit, then proceeds regardless. Stopping while already stopped
// is a no-op success.
func (s *Scheduler) Stop(ctx context.Context) SchedulerResult {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return SchedulerResult{Success: true, Message: "collection is already stopped", Status: "stopped"}
	}

	close(s.stop)
	s.sensorTicker.Stop()
	s.rfidTicker.Stop()
	s.running = false
	monitorDone := s.monitorDone
	s.mu.Unlock()

	select {
	case <-monitorDone:
	case <-s.clk.After(monitorStopTimeout):
		zap.S().Warnf("Resource monitor did not stop within %s, proceeding with shutdown", monitorStopTimeout)
	}

	schedulerRunning.Set(0)
	s.recordStatus(ctx, false, nil)
	zap.S().Infof("Collection stopped")

	return SchedulerResult{Success: true, Message: "collection stopped", Status: "stopped"}
}

// UpdateIntervals changes the cadence of a live scheduler. Validation and
// persistence are delegated to the controller; the affected tickers are then
// rescheduled in place by the config-change listener before this returns.
func (s *Scheduler) UpdateIntervals(ctx context.Context, sensorInterval *int, rfidInterval *int) SchedulerResult {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return SchedulerResult{
			Success: false,
			Message: "collection is not running, intervals can only be updated on a live scheduler",
			Status:  "stopped",
		}
	}

	update := shared.ConfigUpdate{
		SensorInterval: sensorInterval,
		RFIDInterval:   rfidInterval,
	}
	if update.Empty() {
		cfg := s.freq.GetCurrentConfig(ctx)
		return SchedulerResult{Success: true, Message: "nothing to update", Status: "running", Config: &cfg}
	}

	result := s.freq.UpdateConfig(ctx, update, "scheduler")
	if !result.Success {
		return SchedulerResult{Success: false, Message: result.Message, Status: "running", Config: &result.Config}
	}

	return SchedulerResult{Success: true, Message: "collection intervals updated", Status: "running", Config: &result.Config}
}

// Status assembles the composite status snapshot.
func (s *Scheduler) Status(ctx context.Context) StatusSnapshot {
	cfg := s.freq.GetCurrentConfig(ctx)

	s.mu.Lock()
	running := s.running
	sensorLast := s.sensorLast
	rfidLast := s.rfidLast
	tail := errorTail(s.errors, errorTailSize)
	counts := countErrors(s.errors)
	s.mu.Unlock()

	return StatusSnapshot{
		IsRunning:     running,
		IsPaused:      cfg.IsPaused,
		CurrentConfig: IntervalPair{SensorInterval: cfg.SensorInterval, RFIDInterval: cfg.RFIDInterval},
		LastCollection: LastCollection{
			Sensor: sensorLast,
			RFID:   rfidLast,
		},
		Performance: readResources(),
		Errors:      tail,
		Statistics: Statistics{
			Today:  s.todayCounts(ctx),
			Errors: counts,
		},
		Timestamp: time.Now(),
	}
}

// ForceCollectSensorData runs one sensor tick outside the schedule.
func (s *Scheduler) ForceCollectSensorData(ctx context.Context) ForceResult {
	if err := s.collectSensorData(ctx); err != nil {
		return ForceResult{Success: false, Message: err.Error(), Timestamp: time.Now()}
	}
	return ForceResult{Success: true, Message: "sensor collection completed", Timestamp: time.Now()}
}

// ForceScanRFIDDevices runs one RFID tick outside the schedule.
func (s *Scheduler) ForceScanRFIDDevices(ctx context.Context) ForceResult {
	if err := s.scanRFIDDevices(ctx); err != nil {
		return ForceResult{Success: false, Message: err.Error(), Timestamp: time.Now()}
	}
	return ForceResult{Success: true, Message: "rfid scan completed", Timestamp: time.Now()}
}

func (s *Scheduler) jobLoop(stop chan struct{}, ticker *clock.Ticker, tick func(context.Context) error) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Tick failures are recorded in the error list, never
			// propagated to the loop.
			_ = tick(context.Background())
		}
	}
}

func (s *Scheduler) monitorLoop(stop chan struct{}, done chan struct{}, ticker *clock.Ticker) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.recordResourceSnapshot(context.Background())
		}
	}
}

func clamp(v float64, lo float64, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// collectSensorData performs one sensor tick: sample every source, clamp the
// values to their physical domains and persist them. A failure anywhere in
// the batch is recorded as a single "sensor" error entry; a success evicts
// all previous "sensor" entries.
func (s *Scheduler) collectSensorData(ctx context.Context) error {
	readings, err := s.devices.SampleSensors(ctx)
	if err != nil {
		s.recordError(shared.ErrorTypeSensor, err.Error())
		zap.S().Errorf("Sensor collection failed: %s", err)
		return err
	}

	for _, r := range readings {
		r.Temperature = clamp(r.Temperature, 15.0, 30.0)
		r.Humidity = clamp(r.Humidity, 30.0, 70.0)
		r.LightIntensity = clamp(r.LightIntensity, 50.0, 600.0)
		if err = s.store.InsertReading(ctx, r); err != nil {
			s.recordError(shared.ErrorTypeSensor, err.Error())
			zap.S().Errorf("Failed to persist reading from %s: %s", r.SensorID, err)
			return err
		}
		sensorSamplesTotal.Inc()
	}

	now := time.Now()
	s.mu.Lock()
	s.sensorLast = &now
	s.errors = dropErrorsOfType(s.errors, shared.ErrorTypeSensor)
	s.mu.Unlock()
	return nil
}

// scanRFIDDevices performs one RFID tick. The sampler decides whether a tag
// was sighted; a sighting updates the tag's last-seen location. Bookkeeping
// mirrors the sensor tick.
func (s *Scheduler) scanRFIDDevices(ctx context.Context) error {
	sighting, err := s.devices.ScanRFID(ctx)
	if err != nil {
		s.recordError(shared.ErrorTypeRFID, err.Error())
		zap.S().Errorf("RFID scan failed: %s", err)
		return err
	}

	if sighting != nil {
		if err = s.store.RecordSighting(ctx, *sighting); err != nil {
			s.recordError(shared.ErrorTypeRFID, err.Error())
			zap.S().Errorf("Failed to record sighting of tag %s: %s", sighting.TagID, err)
			return err
		}
		rfidSightingsTotal.Inc()
		zap.S().Debugf("Tag %s sighted at %s", sighting.TagID, sighting.Location)
	}

	now := time.Now()
	s.mu.Lock()
	s.rfidLast = &now
	s.errors = dropErrorsOfType(s.errors, shared.ErrorTypeRFID)
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) recordError(errorType string, message string) {
	collectionErrorsTotal.WithLabelValues(errorType).Inc()

	s.mu.Lock()
	s.errors = append(s.errors, shared.CollectionError{
		Type:      errorType,
		Message:   message,
		Timestamp: time.Now(),
	})
	if len(s.errors) > maxTrackedErrors {
		s.errors = s.errors[len(s.errors)-maxTrackedErrors:]
	}
	s.mu.Unlock()
}

func dropErrorsOfType(errors []shared.CollectionError, errorType string) []shared.CollectionError {
	kept := errors[:0]
	for _, e := range errors {
		if e.Type != errorType {
			kept = append(kept, e)
		}
	}
	return kept
}

func errorTail(errors []shared.CollectionError, n int) []shared.CollectionError {
	if len(errors) > n {
		errors = errors[len(errors)-n:]
	}
	return append([]shared.CollectionError(nil), errors...)
}

func countErrors(errors []shared.CollectionError) ErrorCounts {
	counts := ErrorCounts{Total: len(errors)}
	for _, e := range errors {
		switch e.Type {
		case shared.ErrorTypeSensor:
			counts.Sensor++
		case shared.ErrorTypeRFID:
			counts.RFID++
		}
	}
	return counts
}

func readResources() ResourceUsage {
	var usage ResourceUsage
	if percentages, err := cpu.Percent(0, false); err != nil {
		zap.S().Warnf("Failed to read cpu usage: %s", err)
	} else if len(percentages) > 0 {
		usage.CPUUsage = percentages[0]
	}
	if vm, err := mem.VirtualMemory(); err != nil {
		zap.S().Warnf("Failed to read memory usage: %s", err)
	} else {
		usage.MemoryUsage = vm.UsedPercent
		usage.MemoryUsedMB = float64(vm.Used) / (1024 * 1024)
	}
	return usage
}

// recordResourceSnapshot writes one status row with host resource usage and
// the most recent unresolved error, if any.
func (s *Scheduler) recordResourceSnapshot(ctx context.Context) {
	usage := readResources()

	s.mu.Lock()
	var lastError *string
	if len(s.errors) > 0 {
		msg := s.errors[len(s.errors)-1].Message
		lastError = &msg
	}
	status := shared.CollectionStatus{
		Timestamp:            time.Now(),
		IsRunning:            s.running,
		SensorLastCollection: s.sensorLast,
		RFIDLastCollection:   s.rfidLast,
		CPUUsage:             &usage.CPUUsage,
		MemoryUsage:          &usage.MemoryUsage,
		ErrorMessage:         lastError,
	}
	s.mu.Unlock()

	if err := s.store.RecordStatus(ctx, status); err != nil {
		zap.S().Errorf("Failed to record resource snapshot: %s", err)
	}
}

func (s *Scheduler) recordStatus(ctx context.Context, running bool, errorMessage *string) {
	s.mu.Lock()
	status := shared.CollectionStatus{
		Timestamp:            time.Now(),
		IsRunning:            running,
		SensorLastCollection: s.sensorLast,
		RFIDLastCollection:   s.rfidLast,
		ErrorMessage:         errorMessage,
	}
	s.mu.Unlock()

	if err := s.store.RecordStatus(ctx, status); err != nil {
		zap.S().Errorf("Failed to record collection status: %s", err)
	}
}

func (s *Scheduler) todayCounts(ctx context.Context) TodayCounts {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var counts TodayCounts
	var err error
	if counts.SensorCollections, err = s.store.ReadingsSince(ctx, midnight); err != nil {
		zap.S().Errorf("Failed to count today's readings: %s", err)
	}
	if counts.RFIDScans, err = s.store.SightingsSince(ctx, midnight); err != nil {
		zap.S().Errorf("Failed to count today's sightings: %s", err)
	}
	return counts
}

// handleConfigChange reacts to persisted configuration changes. While
// running, interval changes reschedule the affected ticker in place and a
// pause stops collection. A config edit that merely unpauses does not
// auto-start; resuming requires an explicit resume or start (the deliberate
// restart decision stays with the operator).
func (s *Scheduler) handleConfigChange(oldCfg shared.CollectionConfig, newCfg shared.CollectionConfig) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}

	if newCfg.SensorInterval != oldCfg.SensorInterval && s.sensorTicker != nil {
		s.sensorTicker.Reset(time.Duration(newCfg.SensorInterval) * time.Second)
		zap.S().Infof("Sensor job rescheduled to %ds", newCfg.SensorInterval)
	}
	if newCfg.RFIDInterval != oldCfg.RFIDInterval && s.rfidTicker != nil {
		s.rfidTicker.Reset(time.Duration(newCfg.RFIDInterval) * time.Second)
		zap.S().Infof("RFID job rescheduled to %ds", newCfg.RFIDInterval)
	}
	pausedNow := newCfg.IsPaused && !oldCfg.IsPaused
	s.mu.Unlock()

	if pausedNow {
		zap.S().Infof("Config change paused collection, stopping scheduler")
		s.Stop(context.Background())
	}
}

// handleStatusChange reacts to explicit pause/resume operations: "paused"
// stops a running scheduler, "running" starts a stopped one when the config
// permits.
func (s *Scheduler) handleStatusChange(state string, actor string) {
	zap.S().Infof("Collection state changed to %s by %s", state, actor)

	switch state {
	case "paused":
		s.Stop(context.Background())
	case "running":
		ctx := context.Background()
		if !s.freq.GetCurrentConfig(ctx).IsPaused {
			s.Start(ctx)
		}
	}
}
