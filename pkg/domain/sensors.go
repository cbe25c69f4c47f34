package domain

import (
	"fmt"
	"math"
)

// Range is an inclusive acceptable band for a sensor parameter. The zero
// Range disables the check.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Enabled reports whether the range is configured.
func (r Range) Enabled() bool { return r.Min != 0 || r.Max != 0 }

// SensorLimits are the per-parameter bands applied to every sensor reading.
type SensorLimits struct {
	TemperatureC Range `json:"temperature_c"`
	HumidityPct  Range `json:"humidity_pct"`
	PH           Range `json:"ph"`
	Brix         Range `json:"brix"`
}

// DefaultSensorLimits returns the cold-chain bands used for fresh produce.
func DefaultSensorLimits() SensorLimits {
	return SensorLimits{
		TemperatureC: Range{Min: 2, Max: 8},
		HumidityPct:  Range{Min: 85, Max: 95},
	}
}

// Alert types raised from sensor readings.
const (
	AlertTypeSensorLimit = "SENSOR_LIMIT"
	AlertTypeSensorFault = "SENSOR_FAULT"
)

// Breach is a parameter found outside its band, ready to become an Alert.
type Breach struct {
	Type      string
	Parameter string
	Detected  float64
	Limit     float64
	Level     AlertLevel
	Message   string
}

// DetectBreaches checks a reading against limits. Readings from a faulted
// sensor array also produce a breach.
func DetectBreaches(r SensorReading, limits SensorLimits) []Breach {
	var out []Breach
	check := func(param string, value float64, band Range) {
		if !band.Enabled() {
			return
		}
		var limit float64
		switch {
		case value < band.Min:
			limit = band.Min
		case value > band.Max:
			limit = band.Max
		default:
			return
		}
		out = append(out, Breach{
			Type:      AlertTypeSensorLimit,
			Parameter: param,
			Detected:  value,
			Limit:     limit,
			Level:     breachLevel(value, limit),
			Message:   fmt.Sprintf("%s %.2f outside [%.2f, %.2f]", param, value, band.Min, band.Max),
		})
	}
	check("temperature_c", r.TemperatureC, limits.TemperatureC)
	check("humidity_pct", r.HumidityPct, limits.HumidityPct)
	check("ph", r.PH, limits.PH)
	check("brix", r.Brix, limits.Brix)
	if r.SensorState == SensorFault {
		out = append(out, Breach{
			Type:      AlertTypeSensorFault,
			Parameter: "sensor_state",
			Level:     AlertHigh,
			Message:   "sensor array reported FAULT",
		})
	}
	return out
}

// breachLevel grades a breach by its deviation relative to the limit.
func breachLevel(detected, limit float64) AlertLevel {
	dev := math.Abs(detected - limit)
	if limit != 0 {
		dev /= math.Abs(limit)
	}
	switch {
	case dev <= 0.05:
		return AlertLow
	case dev <= 0.15:
		return AlertMedium
	case dev <= 0.30:
		return AlertHigh
	default:
		return AlertCritical
	}
}
