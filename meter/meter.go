// Package meter polls the site's PV production meter over Modbus/TCP and
// feeds the readings to the telemetry recorder.
package meter

import (
	"context"
	"log/slog"
	"time"

	"github.com/hausctl/homecontroller/modbus"
	"github.com/hausctl/homecontroller/telemetry"
)

// Holding register layout of the site meter.
const (
	registerPowerProduction = 12322
	registerPowerGrid       = 12330
)

// Meter polls power telemetry and sends it onto the Readings channel.
type Meter struct {
	Readings chan telemetry.Reading

	client *modbus.Client
	logger *slog.Logger
}

func New(host string) *Meter {
	return &Meter{
		Readings: make(chan telemetry.Reading),
		client:   modbus.NewClient(host),
		logger:   slog.Default().With("task", "meter", "host", host),
	}
}

// Run polls the meter every period until the context is cancelled. Poll
// errors are logged and the next tick retries; the modbus client reconnects
// lazily.
func (m *Meter) Run(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			m.poll(ctx, t)
		}
	}
}

func (m *Meter) poll(ctx context.Context, t time.Time) {
	production, err := m.client.ReadFloat32(registerPowerProduction)
	if err != nil {
		m.logger.Error("failed to read production power", "error", err)
		return
	}
	grid, err := m.client.ReadFloat32(registerPowerGrid)
	if err != nil {
		m.logger.Error("failed to read grid power", "error", err)
		return
	}

	readings := []telemetry.Reading{
		telemetry.NewReading(t, "SITE", "POWER_PRODUCTION", "W", production),
		telemetry.NewReading(t, "SITE", "POWER_GRID", "W", grid),
	}
	for _, reading := range readings {
		select {
		case <-ctx.Done():
			return
		case m.Readings <- reading:
		}
	}
}
