package collection

import "github.com/archive-systems/archive-monitor/cmd/archive-monitor/shared"

// Performance level thresholds on combined ticks per minute.
const (
	highLoadThreshold   = 20
	mediumLoadThreshold = 10
)

// RecommendedConfig is the interval pair suggested by GetPerformanceMetrics.
type RecommendedConfig struct {
	SensorInterval int    `json:"sensorInterval"`
	RFIDInterval   int    `json:"rfidInterval"`
	Reason         string `json:"reason"`
}

// EstimateImpact computes the load estimate for an interval pair. Both
// intervals must be >= 1; callers validate before calling.
func EstimateImpact(sensorInterval int, rfidInterval int) shared.PerformanceImpact {
	sensorLoad := 60.0 / float64(sensorInterval)
	rfidLoad := 60.0 / float64(rfidInterval)
	totalLoad := sensorLoad + rfidLoad

	estimatedCPU := (sensorLoad*0.5 + rfidLoad*1.0) / 100
	if estimatedCPU > 100 {
		estimatedCPU = 100
	}

	impact := shared.PerformanceImpact{
		SensorLoad:        sensorLoad,
		RFIDLoad:          rfidLoad,
		TotalLoad:         totalLoad,
		EstimatedCPUUsage: estimatedCPU,
		EstimatedMemoryMB: sensorLoad*0.1 + rfidLoad*0.2,
	}

	switch {
	case totalLoad > highLoadThreshold:
		impact.PerformanceLevel = "high"
		impact.Warning = "collection frequency is high and may degrade system performance"
	case totalLoad > mediumLoadThreshold:
		impact.PerformanceLevel = "medium"
		impact.Warning = "collection frequency is moderate, keep an eye on system performance"
	default:
		impact.PerformanceLevel = "low"
	}

	return impact
}

func recommendedConfig() RecommendedConfig {
	return RecommendedConfig{
		SensorInterval: 30,
		RFIDInterval:   15,
		Reason:         "balanced between data resolution and system load",
	}
}
