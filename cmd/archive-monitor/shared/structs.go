package shared

import "time"

// Collection frequency bounds and defaults. Interval values are seconds.
const (
	DefaultSensorInterval = 30
	DefaultRFIDInterval   = 10

	MinSensorInterval = 1
	MaxSensorInterval = 300
	MinRFIDInterval   = 1
	MaxRFIDInterval   = 60

	MaxUpdatedByLength = 100
)

// CollectionConfig is one persisted configuration version. Configs are
// append-only: every change inserts a new row and the row with the latest
// UpdatedAt is the current one.
type CollectionConfig struct {
	ID             int64     `json:"id"`
	SensorInterval int       `json:"sensorInterval"`
	RFIDInterval   int       `json:"rfidInterval"`
	IsPaused       bool      `json:"isPaused"`
	UpdatedBy      string    `json:"updatedBy"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ConfigUpdate is a partial configuration change. Nil fields are left as-is.
type ConfigUpdate struct {
	SensorInterval *int  `json:"sensorInterval"`
	RFIDInterval   *int  `json:"rfidInterval"`
	IsPaused       *bool `json:"isPaused"`
}

// Empty reports whether the update carries no fields at all.
func (u ConfigUpdate) Empty() bool {
	return u.SensorInterval == nil && u.RFIDInterval == nil && u.IsPaused == nil
}

// CollectionStatus is one row of the append-only status event log.
type CollectionStatus struct {
	ID                   int64      `json:"id"`
	Timestamp            time.Time  `json:"timestamp"`
	IsRunning            bool       `json:"isRunning"`
	SensorLastCollection *time.Time `json:"sensorLastCollection"`
	RFIDLastCollection   *time.Time `json:"rfidLastCollection"`
	CPUUsage             *float64   `json:"cpuUsage"`
	MemoryUsage          *float64   `json:"memoryUsage"`
	ErrorMessage         *string    `json:"errorMessage"`
}

// PerformanceImpact is the deterministic load estimate for a pair of
// intervals. Loads are ticks per minute.
type PerformanceImpact struct {
	SensorLoad        float64 `json:"sensorLoad"`
	RFIDLoad          float64 `json:"rfidLoad"`
	TotalLoad         float64 `json:"totalLoad"`
	EstimatedCPUUsage float64 `json:"estimatedCpuUsage"`
	EstimatedMemoryMB float64 `json:"estimatedMemoryMB"`
	PerformanceLevel  string  `json:"performanceLevel"`
	Warning           string  `json:"warning,omitempty"`
}

// SensorReading is one environmental measurement from one sensor source.
type SensorReading struct {
	SensorID       string    `json:"sensorId"`
	Temperature    float64   `json:"temperature"`
	Humidity       float64   `json:"humidity"`
	LightIntensity float64   `json:"lightIntensity"`
	Location       string    `json:"location"`
	Timestamp      time.Time `json:"timestamp"`
}

// TagSighting is one RFID tag observation by one reader.
type TagSighting struct {
	TagID     string    `json:"tagId"`
	DeviceID  int       `json:"deviceId"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// Error types recorded by the scheduler's rolling error list.
const (
	ErrorTypeSensor = "sensor"
	ErrorTypeRFID   = "rfid"
)

// CollectionError is one entry of the scheduler's rolling error list.
type CollectionError struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
