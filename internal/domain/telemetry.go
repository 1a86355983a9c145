package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// TelemetryDataPoint is one telemetry reading handed to the engine.
// Data is an arbitrary nested map of metric name to value, owned by the caller.
type TelemetryDataPoint struct {
	// DeviceID identifies the reporting device.
	DeviceID string `json:"device_id"`

	// Timestamp is when the reading was taken.
	Timestamp time.Time `json:"timestamp"`

	// Data holds the raw metric values, possibly nested.
	Data map[string]any `json:"data"`
}

// Validation errors for TelemetryDataPoint.
var (
	ErrEmptyDeviceID      = errors.New("device_id is required")
	ErrEmptyTelemetryData = errors.New("data is required")
)

// Validate checks the data point has the required fields.
func (p *TelemetryDataPoint) Validate() error {
	if p.DeviceID == "" {
		return ErrEmptyDeviceID
	}
	if len(p.Data) == 0 {
		return ErrEmptyTelemetryData
	}
	return nil
}

// metricAliases maps the human metric names operators use in rules to the
// literal field names devices actually report. Lookup order matters: the
// first alias present and numeric wins. Kept as one static table so tests
// can enumerate every alias pair.
var metricAliases = map[string][]string{
	"temperature":          {"inverterTemperatureValue", "temperatureValue"},
	"inverter.temperature": {"inverterTemperatureValue"},
	"power":                {"outputPowerValue", "activePowerValue"},
	"voltage":              {"gridVoltageValue", "outputVoltageValue"},
	"current":              {"outputCurrentValue"},
	"frequency":            {"gridFrequencyValue"},
	"battery":              {"batteryLevelValue", "stateOfChargeValue"},
	"battery.voltage":      {"batteryVoltageValue"},
	"energy":               {"dailyEnergyValue", "totalEnergyValue"},
}

// MetricAliases returns a copy of the alias table.
func MetricAliases() map[string][]string {
	out := make(map[string][]string, len(metricAliases))
	for name, fields := range metricAliases {
		out[name] = append([]string(nil), fields...)
	}
	return out
}

// Metric resolves a named metric out of the data point. The name is a
// dot-separated path walked through the nested map; if any segment is
// missing, the alias table is consulted and the first alias field present
// and numeric is returned. The second return value is false when neither
// the direct path nor any alias resolves to a numeric value.
func (p *TelemetryDataPoint) Metric(name string) (float64, bool) {
	if raw, ok := lookupPath(p.Data, name); ok {
		if v, ok := coerceNumber(raw); ok {
			return v, true
		}
	}

	for _, field := range metricAliases[name] {
		raw, ok := lookupPath(p.Data, field)
		if !ok {
			continue
		}
		if v, ok := coerceNumber(raw); ok {
			return v, true
		}
	}

	return 0, false
}

// lookupPath walks a dot-separated path through nested maps.
func lookupPath(data map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	current := any(data)
	for _, segment := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// coerceNumber converts a raw telemetry value to float64. Non-numeric
// strings, nil, and any other type yield false.
func coerceNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
