package domain

import (
	"testing"
	"time"
)

func TestTelemetryDataPoint_Validate(t *testing.T) {
	tests := []struct {
		name    string
		point   TelemetryDataPoint
		wantErr error
	}{
		{
			name: "valid point",
			point: TelemetryDataPoint{
				DeviceID:  "dev-1",
				Timestamp: time.Now(),
				Data:      map[string]any{"temperature": 21.5},
			},
			wantErr: nil,
		},
		{
			name: "missing device_id",
			point: TelemetryDataPoint{
				Data: map[string]any{"temperature": 21.5},
			},
			wantErr: ErrEmptyDeviceID,
		},
		{
			name: "missing data",
			point: TelemetryDataPoint{
				DeviceID: "dev-1",
			},
			wantErr: ErrEmptyTelemetryData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.point.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTelemetryDataPoint_Metric_DirectLookup(t *testing.T) {
	point := TelemetryDataPoint{
		DeviceID: "dev-1",
		Data: map[string]any{
			"outputPowerValue": 3500.0,
			"stringCount":      int(4),
			"firmware":         "2.1.0",
			"serial":           "LB-1001",
			"inverter": map[string]any{
				"tempC": 61.5,
			},
		},
	}

	if v, ok := point.Metric("outputPowerValue"); !ok || v != 3500 {
		t.Errorf("Metric(outputPowerValue) = %v, %v", v, ok)
	}

	// Integers coerce to float64.
	if v, ok := point.Metric("stringCount"); !ok || v != 4 {
		t.Errorf("Metric(stringCount) = %v, %v", v, ok)
	}

	// Non-numeric strings do not resolve.
	if _, ok := point.Metric("firmware"); ok {
		t.Error("Metric(firmware) should not resolve a version string")
	}
	if _, ok := point.Metric("serial"); ok {
		t.Error("Metric(serial) should not resolve a non-numeric string")
	}

	// Dot paths walk nested maps.
	if v, ok := point.Metric("inverter.tempC"); !ok || v != 61.5 {
		t.Errorf("Metric(inverter.tempC) = %v, %v", v, ok)
	}

	if _, ok := point.Metric("inverter.missing"); ok {
		t.Error("Metric(inverter.missing) should not resolve")
	}
	if _, ok := point.Metric("nothere"); ok {
		t.Error("Metric(nothere) should not resolve")
	}
}

func TestTelemetryDataPoint_Metric_AliasFallback(t *testing.T) {
	point := TelemetryDataPoint{
		DeviceID: "dev-1",
		Data: map[string]any{
			"inverterTemperatureValue": 85.0,
			"batteryLevelValue":        "17.5",
		},
	}

	// "temperature" is absent as a literal field, so the alias table resolves
	// it to inverterTemperatureValue.
	if v, ok := point.Metric("temperature"); !ok || v != 85 {
		t.Errorf("Metric(temperature) = %v, %v, want 85 via alias", v, ok)
	}

	// Alias resolution coerces string values too.
	if v, ok := point.Metric("battery"); !ok || v != 17.5 {
		t.Errorf("Metric(battery) = %v, %v, want 17.5 via alias", v, ok)
	}

	// A metric with no direct field and no alias entry does not resolve.
	if _, ok := point.Metric("voltage"); ok {
		t.Error("Metric(voltage) should not resolve without data")
	}
}

func TestTelemetryDataPoint_Metric_DirectWinsOverAlias(t *testing.T) {
	point := TelemetryDataPoint{
		DeviceID: "dev-1",
		Data: map[string]any{
			"temperature":              42.0,
			"inverterTemperatureValue": 99.0,
		},
	}

	if v, ok := point.Metric("temperature"); !ok || v != 42 {
		t.Errorf("Metric(temperature) = %v, %v, want direct value 42", v, ok)
	}
}

func TestTelemetryDataPoint_Metric_AliasOrder(t *testing.T) {
	// First alias present and numeric wins.
	point := TelemetryDataPoint{
		DeviceID: "dev-1",
		Data: map[string]any{
			"inverterTemperatureValue": "not-a-number",
			"temperatureValue":         55.0,
		},
	}

	if v, ok := point.Metric("temperature"); !ok || v != 55 {
		t.Errorf("Metric(temperature) = %v, %v, want 55 from second alias", v, ok)
	}
}

func TestMetricAliases_ReturnsCopy(t *testing.T) {
	aliases := MetricAliases()
	if len(aliases["temperature"]) == 0 {
		t.Fatal("temperature alias missing")
	}

	aliases["temperature"][0] = "tampered"

	fresh := MetricAliases()
	if fresh["temperature"][0] == "tampered" {
		t.Error("MetricAliases() must return a copy")
	}
}
