package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// Reading holds a single measured value pulled from a meter or sensor.
type Reading struct {
	ID          uuid.UUID
	Time        time.Time
	Measurement string // e.g. "SITE", "BATTERY", "HEAT_PUMP"
	Field       string // e.g. "POWER_PRODUCTION", "STATE_OF_CHARGE"
	Unit        string // e.g. "W", "%"
	Value       float64
}

// NewReading returns a Reading with a fresh ID and the given sample data.
func NewReading(t time.Time, measurement, field, unit string, value float64) Reading {
	return Reading{
		ID:          uuid.New(),
		Time:        t,
		Measurement: measurement,
		Field:       field,
		Unit:        unit,
		Value:       value,
	}
}
