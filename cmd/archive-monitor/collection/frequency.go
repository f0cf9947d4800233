package collection

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/archive-systems/archive-monitor/cmd/archive-monitor/shared"
)

const auditModule = "collection_frequency"

// ConfigListener is invoked after a configuration change has been persisted,
// with the old and new version.
type ConfigListener func(oldCfg shared.CollectionConfig, newCfg shared.CollectionConfig)

// StatusListener is invoked on pause/resume transitions with the new state
// label ("paused" or "running") and the actor that requested it.
type StatusListener func(state string, actor string)

// ConfigSnapshot is a configuration version together with its load estimate,
// the shape every read path returns.
type ConfigSnapshot struct {
	shared.CollectionConfig
	PerformanceImpact shared.PerformanceImpact `json:"performanceImpact"`
}

// ConfigResult is the outcome of a mutating configuration operation.
type ConfigResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Config  ConfigSnapshot `json:"config"`
}

// ControlResult is the outcome of a pause/resume operation.
type ControlResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ValidationResult collects every domain violation of a partial update
// instead of failing fast.
type ValidationResult struct {
	Valid             bool                      `json:"valid"`
	Errors            []string                  `json:"errors"`
	Warnings          []string                  `json:"warnings"`
	PerformanceImpact *shared.PerformanceImpact `json:"performanceImpact"`
}

// PerformanceMetrics is the composite payload of GetPerformanceMetrics.
type PerformanceMetrics struct {
	CurrentConfig     ConfigSnapshot           `json:"currentConfig"`
	PerformanceImpact shared.PerformanceImpact `json:"performanceImpact"`
	RecommendedConfig RecommendedConfig        `json:"recommendedConfig"`
	SystemStatus      *shared.CollectionStatus `json:"systemStatus"`
	Timestamp         time.Time                `json:"timestamp"`
}

// Controller is the single source of truth for the collection rates in
// effect. Every mutation validates, persists a new config version, updates
// the in-memory cache and notifies registered listeners, all serialized by
// one mutex. Public operations never return an error; failures degrade to a
// result payload carrying the last committed state.
type Controller struct {
	store Store

	mu              sync.Mutex
	current         *shared.CollectionConfig
	configListeners []ConfigListener
	statusListeners []StatusListener
}

// NewController loads the current configuration from the store, creating the
// default version if none exists yet.
func NewController(store Store) *Controller {
	c := &Controller{store: store}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadCurrentLocked(context.Background()); err != nil {
		// Cache stays empty and is lazily loaded on first access.
		zap.S().Errorf("Failed to load collection config on startup: %s", err)
	} else {
		zap.S().Infof("Loaded collection config: sensor=%ds, rfid=%ds, paused=%v",
			c.current.SensorInterval, c.current.RFIDInterval, c.current.IsPaused)
	}
	return c
}

// OnConfigChange registers a listener for configuration changes.
func (c *Controller) OnConfigChange(l ConfigListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configListeners = append(c.configListeners, l)
}

// OnStatusChange registers a listener for pause/resume transitions.
func (c *Controller) OnStatusChange(l StatusListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusListeners = append(c.statusListeners, l)
}

func defaultConfig() shared.CollectionConfig {
	return shared.CollectionConfig{
		SensorInterval: shared.DefaultSensorInterval,
		RFIDInterval:   shared.DefaultRFIDInterval,
		IsPaused:       false,
		UpdatedBy:      "system",
	}
}

// loadCurrentLocked fetches the latest config version, creating the default
// one on first run. Caller holds c.mu.
func (c *Controller) loadCurrentLocked(ctx context.Context) error {
	cfg, ok, err := c.store.LatestConfig(ctx)
	if err != nil {
		return err
	}
	if !ok {
		zap.S().Infof("No collection config found, creating default")
		cfg, err = c.store.CreateConfig(ctx, defaultConfig())
		if err != nil {
			return err
		}
	}
	c.current = &cfg
	return nil
}

// currentLocked returns the cached config, loading it if needed. It never
// fails: if the store is unavailable it synthesizes the built-in default so
// read paths always have a usable config. Caller holds c.mu.
func (c *Controller) currentLocked(ctx context.Context) shared.CollectionConfig {
	if c.current == nil {
		if err := c.loadCurrentLocked(ctx); err != nil {
			zap.S().Errorf("Failed to load collection config, falling back to defaults: %s", err)
			return defaultConfig()
		}
	}
	return *c.current
}

func snapshot(cfg shared.CollectionConfig) ConfigSnapshot {
	return ConfigSnapshot{
		CollectionConfig:  cfg,
		PerformanceImpact: EstimateImpact(cfg.SensorInterval, cfg.RFIDInterval),
	}
}

// GetCurrentConfig returns the active configuration. It never fails; when
// the store is unavailable it degrades to the built-in default.
func (c *Controller) GetCurrentConfig(ctx context.Context) ConfigSnapshot {
	c.mu.Lock()
	cfg := c.currentLocked(ctx)
	c.mu.Unlock()
	return snapshot(cfg)
}

func checkUpdate(u shared.ConfigUpdate, actor string) error {
	if u.SensorInterval != nil &&
		(*u.SensorInterval < shared.MinSensorInterval || *u.SensorInterval > shared.MaxSensorInterval) {
		return fmt.Errorf("sensor interval must be between %d and %d seconds",
			shared.MinSensorInterval, shared.MaxSensorInterval)
	}
	if u.RFIDInterval != nil &&
		(*u.RFIDInterval < shared.MinRFIDInterval || *u.RFIDInterval > shared.MaxRFIDInterval) {
		return fmt.Errorf("rfid interval must be between %d and %d seconds",
			shared.MinRFIDInterval, shared.MaxRFIDInterval)
	}
	if len(actor) > shared.MaxUpdatedByLength {
		return fmt.Errorf("updatedBy must be at most %d characters", shared.MaxUpdatedByLength)
	}
	return nil
}

// UpdateConfig validates and applies a partial configuration change as a new
// persisted version. Validation failures reject the whole update.
func (c *Controller) UpdateConfig(ctx context.Context, update shared.ConfigUpdate, actor string) ConfigResult {
	if actor == "" {
		actor = "system"
	}
	if err := checkUpdate(update, actor); err != nil {
		zap.S().Warnf("Rejected collection config update from %s: %s", actor, err)
		return ConfigResult{Success: false, Message: err.Error(), Config: c.GetCurrentConfig(ctx)}
	}

	c.mu.Lock()
	oldCfg := c.currentLocked(ctx)

	newCfg := oldCfg
	if update.SensorInterval != nil {
		newCfg.SensorInterval = *update.SensorInterval
	}
	if update.RFIDInterval != nil {
		newCfg.RFIDInterval = *update.RFIDInterval
	}
	if update.IsPaused != nil {
		newCfg.IsPaused = *update.IsPaused
	}
	newCfg.UpdatedBy = actor

	persisted, err := c.store.CreateConfig(ctx, newCfg)
	if err != nil {
		c.mu.Unlock()
		zap.S().Errorf("Failed to persist collection config update: %s", err)
		return ConfigResult{Success: false, Message: "failed to persist configuration", Config: snapshot(oldCfg)}
	}
	c.current = &persisted
	c.auditConfigChange(ctx, oldCfg, persisted, actor, "update")
	listeners := append([]ConfigListener(nil), c.configListeners...)
	c.mu.Unlock()

	zap.S().Infof("Collection config updated by %s: sensor=%ds, rfid=%ds, paused=%v",
		actor, persisted.SensorInterval, persisted.RFIDInterval, persisted.IsPaused)
	notifyConfigListeners(listeners, oldCfg, persisted)

	return ConfigResult{Success: true, Message: "configuration updated", Config: snapshot(persisted)}
}

// PauseCollection flips the paused flag on. It is idempotent: pausing an
// already paused configuration succeeds without persisting or notifying.
func (c *Controller) PauseCollection(ctx context.Context, actor string) ControlResult {
	return c.setPaused(ctx, actor, true)
}

// ResumeCollection flips the paused flag off. Idempotent like PauseCollection.
func (c *Controller) ResumeCollection(ctx context.Context, actor string) ControlResult {
	return c.setPaused(ctx, actor, false)
}

func (c *Controller) setPaused(ctx context.Context, actor string, paused bool) ControlResult {
	if actor == "" {
		actor = "system"
	}
	state := "running"
	if paused {
		state = "paused"
	}

	c.mu.Lock()
	oldCfg := c.currentLocked(ctx)
	if oldCfg.IsPaused == paused {
		c.mu.Unlock()
		if paused {
			return ControlResult{Success: true, Message: "collection is already paused", Status: state}
		}
		return ControlResult{Success: true, Message: "collection is already running", Status: state}
	}

	newCfg := oldCfg
	newCfg.IsPaused = paused
	newCfg.UpdatedBy = actor
	persisted, err := c.store.CreateConfig(ctx, newCfg)
	if err != nil {
		c.mu.Unlock()
		zap.S().Errorf("Failed to persist collection %s: %s", state, err)
		return ControlResult{Success: false, Message: "failed to persist configuration", Status: "unknown"}
	}
	c.current = &persisted

	if err = c.store.RecordStatus(ctx, shared.CollectionStatus{
		Timestamp: time.Now(),
		IsRunning: !paused,
	}); err != nil {
		zap.S().Errorf("Failed to record status change: %s", err)
	}
	c.audit(ctx, fmt.Sprintf("collection state changed to %s", state), actor)

	configListeners := append([]ConfigListener(nil), c.configListeners...)
	statusListeners := append([]StatusListener(nil), c.statusListeners...)
	c.mu.Unlock()

	zap.S().Infof("Collection %s by %s", state, actor)
	notifyConfigListeners(configListeners, oldCfg, persisted)
	notifyStatusListeners(statusListeners, state, actor)

	message := "collection paused"
	if !paused {
		message = "collection resumed"
	}
	return ControlResult{Success: true, Message: message, Status: state}
}

// ResetToDefault restores the built-in defaults as a new version and always
// notifies config listeners.
func (c *Controller) ResetToDefault(ctx context.Context, actor string) ConfigResult {
	if actor == "" {
		actor = "system"
	}

	c.mu.Lock()
	oldCfg := c.currentLocked(ctx)
	newCfg := defaultConfig()
	newCfg.UpdatedBy = actor
	persisted, err := c.store.CreateConfig(ctx, newCfg)
	if err != nil {
		c.mu.Unlock()
		zap.S().Errorf("Failed to persist collection config reset: %s", err)
		return ConfigResult{Success: false, Message: "failed to persist configuration", Config: snapshot(oldCfg)}
	}
	c.current = &persisted
	c.auditConfigChange(ctx, oldCfg, persisted, actor, "reset")
	listeners := append([]ConfigListener(nil), c.configListeners...)
	c.mu.Unlock()

	zap.S().Infof("Collection config reset to defaults by %s", actor)
	notifyConfigListeners(listeners, oldCfg, persisted)

	return ConfigResult{Success: true, Message: "configuration reset to defaults", Config: snapshot(persisted)}
}

// ValidateConfig checks a partial update without mutating state, collecting
// every violation plus soft performance warnings.
func (c *Controller) ValidateConfig(update shared.ConfigUpdate) ValidationResult {
	result := ValidationResult{Errors: []string{}, Warnings: []string{}}

	if update.SensorInterval != nil {
		switch {
		case *update.SensorInterval < shared.MinSensorInterval:
			result.Errors = append(result.Errors,
				fmt.Sprintf("sensor interval must be at least %d seconds", shared.MinSensorInterval))
		case *update.SensorInterval > shared.MaxSensorInterval:
			result.Errors = append(result.Errors,
				fmt.Sprintf("sensor interval must be at most %d seconds", shared.MaxSensorInterval))
		case *update.SensorInterval < 10:
			result.Warnings = append(result.Warnings,
				"short sensor interval may affect system performance")
		}
	}

	if update.RFIDInterval != nil {
		switch {
		case *update.RFIDInterval < shared.MinRFIDInterval:
			result.Errors = append(result.Errors,
				fmt.Sprintf("rfid interval must be at least %d seconds", shared.MinRFIDInterval))
		case *update.RFIDInterval > shared.MaxRFIDInterval:
			result.Errors = append(result.Errors,
				fmt.Sprintf("rfid interval must be at most %d seconds", shared.MaxRFIDInterval))
		case *update.RFIDInterval < 5:
			result.Warnings = append(result.Warnings,
				"short rfid interval may affect system performance")
		}
	}

	result.Valid = len(result.Errors) == 0

	if result.Valid && update.SensorInterval != nil && update.RFIDInterval != nil {
		impact := EstimateImpact(*update.SensorInterval, *update.RFIDInterval)
		result.PerformanceImpact = &impact
		if impact.PerformanceLevel == "high" {
			result.Warnings = append(result.Warnings, impact.Warning)
		}
	}

	return result
}

// GetConfigHistory returns the most recent versions, newest first. The limit
// is clamped to [1,100]. Store failures degrade to an empty history.
func (c *Controller) GetConfigHistory(ctx context.Context, limit int) []ConfigSnapshot {
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	configs, err := c.store.ConfigHistory(ctx, limit)
	if err != nil {
		zap.S().Errorf("Failed to load config history: %s", err)
		return []ConfigSnapshot{}
	}
	history := make([]ConfigSnapshot, 0, len(configs))
	for _, cfg := range configs {
		history = append(history, snapshot(cfg))
	}
	return history
}

// GetPerformanceMetrics combines the current config, its load estimate, the
// recommended config and the latest persisted status row.
func (c *Controller) GetPerformanceMetrics(ctx context.Context) PerformanceMetrics {
	current := c.GetCurrentConfig(ctx)

	status, err := c.store.LatestStatus(ctx)
	if err != nil {
		zap.S().Errorf("Failed to load latest collection status: %s", err)
		status = nil
	}

	return PerformanceMetrics{
		CurrentConfig:     current,
		PerformanceImpact: current.PerformanceImpact,
		RecommendedConfig: recommendedConfig(),
		SystemStatus:      status,
		Timestamp:         time.Now(),
	}
}

// ExportConfig serializes the current configuration to indented JSON.
func (c *Controller) ExportConfig(ctx context.Context) string {
	data, err := json.MarshalIndent(c.GetCurrentConfig(ctx), "", "  ")
	if err != nil {
		zap.S().Errorf("Failed to export collection config: %s", err)
		return "{}"
	}
	return string(data)
}

// ImportConfig parses and validates an externally supplied configuration and
// applies it through UpdateConfig. A parse or validation failure leaves the
// current configuration untouched.
func (c *Controller) ImportConfig(ctx context.Context, payload string, actor string) ConfigResult {
	var update shared.ConfigUpdate
	if err := json.Unmarshal([]byte(payload), &update); err != nil {
		zap.S().Warnf("Failed to parse imported collection config: %s", err)
		return ConfigResult{
			Success: false,
			Message: fmt.Sprintf("invalid configuration payload: %s", err),
			Config:  c.GetCurrentConfig(ctx),
		}
	}

	validation := c.ValidateConfig(update)
	if !validation.Valid {
		return ConfigResult{
			Success: false,
			Message: fmt.Sprintf("configuration validation failed: %s", strings.Join(validation.Errors, ", ")),
			Config:  c.GetCurrentConfig(ctx),
		}
	}

	return c.UpdateConfig(ctx, update, actor)
}

// auditConfigChange appends a system log row describing the applied delta.
// Caller holds c.mu.
func (c *Controller) auditConfigChange(ctx context.Context, oldCfg shared.CollectionConfig, newCfg shared.CollectionConfig, actor string, action string) {
	var changes []string
	if oldCfg.SensorInterval != newCfg.SensorInterval {
		changes = append(changes, fmt.Sprintf("sensor interval: %ds -> %ds", oldCfg.SensorInterval, newCfg.SensorInterval))
	}
	if oldCfg.RFIDInterval != newCfg.RFIDInterval {
		changes = append(changes, fmt.Sprintf("rfid interval: %ds -> %ds", oldCfg.RFIDInterval, newCfg.RFIDInterval))
	}
	if oldCfg.IsPaused != newCfg.IsPaused {
		state := "running"
		if newCfg.IsPaused {
			state = "paused"
		}
		changes = append(changes, fmt.Sprintf("collection state: %s", state))
	}

	if len(changes) == 0 && action != "reset" {
		return
	}
	detail := strings.Join(changes, ", ")
	if detail == "" {
		detail = "reset to defaults"
	}
	c.audit(ctx, fmt.Sprintf("collection config %s: %s", action, detail), actor)
}

func (c *Controller) audit(ctx context.Context, message string, actor string) {
	if err := c.store.AppendAudit(ctx, "INFO", auditModule, message, actor); err != nil {
		zap.S().Errorf("Failed to append audit log: %s", err)
	}
}

// Listener panics are isolated per listener so one misbehaving subscriber
// cannot block delivery to the rest or fail the mutation.
func notifyConfigListeners(listeners []ConfigListener, oldCfg shared.CollectionConfig, newCfg shared.CollectionConfig) {
	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					zap.S().Errorf("Config change listener panicked: %v", r)
				}
			}()
			l(oldCfg, newCfg)
		}()
	}
}

func notifyStatusListeners(listeners []StatusListener, state string, actor string) {
	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					zap.S().Errorf("Status change listener panicked: %v", r)
				}
			}()
			l(state, actor)
		}()
	}
}
