package sgready

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Store answers point queries against the telemetry database. The boolean is
// false when the query returned no data, which rules treat as "condition not
// met", never as an error.
type Store interface {
	Scalar(ctx context.Context, flux string) (float64, bool, error)
}

// LiveSignal is a windowed live sensor value, e.g. the last grid power
// samples received over MQTT. Used by the simpler import/export heuristic
// when no price data is configured.
type LiveSignal interface {
	IsAbove(threshold float64) bool
	IsBelow(threshold float64) bool
}

// Flux point queries, one per rule input. The store substitutes %BUCKET%.
const (
	queryPVProduction = `
        from(bucket: "%BUCKET%")
            |> range(start: -10m)
            |> filter(fn: (r) => r._measurement == "SITE")
            |> filter(fn: (r) => r._field == "POWER_PRODUCTION")
            |> filter(fn: (r) => r.unit == "W")
            |> median()
    `
	queryBatterySoC = `
        from(bucket: "%BUCKET%")
            |> range(start: -10m)
            |> filter(fn: (r) => r._measurement == "BATTERY")
            |> filter(fn: (r) => r._field == "STATE_OF_CHARGE")
            |> filter(fn: (r) => r.unit == "%")
            |> last()
    `
	querySelfSufficiency = `
        from(bucket: "%BUCKET%")
          |> range(start: -5m)
          |> filter(fn: (r) => r._measurement == "SITE")
          |> filter(fn: (r) => r._field == "SELF_SUFFICIENCY")
          |> last()
    `
	queryChargingFromGrid = `
        from(bucket: "%BUCKET%")
          |> range(start: -5m)
          |> filter(fn: (r) => r._measurement == "SITE")
          |> filter(fn: (r) => r.unit == "W")
          |> last()
          |> keep(columns: ["unit", "_field", "_value"])
          |> pivot(rowKey: ["unit"], columnKey: ["_field"], valueColumn: "_value")
          |> filter(fn: (r) => r.POWER_STORAGE < -4000 and r.POWER_GRID > 1000)
          |> columns()
    `
	// price when the load starts now vs. 15/30/45 minutes later; a clearly
	// negative difference means a cheaper start is coming up
	queryBestLaterPriceDiff = `
        from(bucket: "%BUCKET%")
          |> range(start: -5m, stop: 2h)
          |> filter(fn: (r) => r._measurement == "TIBBER" and r._field == "priceInfo")
          |> movingAverage(n: 3)
          |> difference()
          |> limit(n: 3)
          |> cumulativeSum()
          |> min()
    `
	queryHeatPumpPower = `
        from(bucket: "%BUCKET%")
            |> range(start: -10m)
            |> filter(fn: (r) => r._measurement == "HEAT_PUMP")
            |> filter(fn: (r) => r._field == "ELECTRICAL_POWER")
            |> filter(fn: (r) => r.unit == "W")
            |> last()
    `
)

// Config for the demand engine. The thresholds mirror the deployed site and
// are configuration, not constants, because they differ per installation.
type Config struct {
	Store  Store
	Relays *Relays

	PVHighWatts         float64 // median PV production considered "high"
	BatteryMinSoC       float64 // percent at which the battery counts as well charged
	SelfSufficiencyLow  float64 // below this percent the site draws from the grid
	SelfSufficiencyHigh float64 // above this percent the site is self sufficient
	RunningWatts        float64 // heat pump power above which it counts as running

	// UsePriceTrend selects the price comparison against the next hours,
	// gated by MinPriceSpread. When false, the GridImport live signal is
	// used as a simpler "power is expensive right now" heuristic.
	UsePriceTrend   bool
	MinPriceSpread  float64
	GridImport      LiveSignal
	GridImportWatts float64
}

// Engine owns the SG-Ready mode. Rule precedence: a running heat pump is
// only ever raised in priority (never forced off mid-cycle), a stopped one
// is only ever delayed.
type Engine struct {
	mu   sync.Mutex
	mode Mode

	config Config
	logger *slog.Logger
}

func New(config Config) *Engine {
	return &Engine{
		mode:   ModeUnknown,
		config: config,
		logger: slog.Default().With("engine", "sgready"),
	}
}

// Run invokes Update on the given interval until the context is cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Update(ctx); err != nil {
				e.logger.Error("update cycle failed", "error", err)
			}
		}
	}
}

// Update derives the demand signal from the telemetry store and applies it
// to the relays. A query error aborts the cycle without touching the relays
// or the recorded mode.
func (e *Engine) Update(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	running, err := e.above(ctx, queryHeatPumpPower, e.config.RunningWatts)
	if err != nil {
		return err
	}

	mode := ModeNormal
	if running {
		// delay the stop of the heat pump while power is cheap
		raise, err := e.shouldRaise(ctx)
		if err != nil {
			return err
		}
		if raise {
			mode = ModeHigh
		}
	} else {
		// delay the start of the heat pump while power is expensive
		lower, err := e.shouldLower(ctx)
		if err != nil {
			return err
		}
		if lower {
			mode = ModeLow
		}
	}

	return e.set(ctx, mode)
}

func (e *Engine) shouldRaise(ctx context.Context) (bool, error) {
	charging, err := e.present(ctx, queryChargingFromGrid)
	if err != nil {
		return false, err
	}
	if charging {
		return true, nil
	}

	batteryCharged, err := e.atLeast(ctx, queryBatterySoC, e.config.BatteryMinSoC)
	if err != nil {
		return false, err
	}
	if !batteryCharged {
		return false, nil
	}

	pvHigh, err := e.above(ctx, queryPVProduction, e.config.PVHighWatts)
	if err != nil {
		return false, err
	}
	if pvHigh {
		return true, nil
	}

	notSelfSufficient, err := e.below(ctx, querySelfSufficiency, e.config.SelfSufficiencyLow)
	if err != nil {
		return false, err
	}
	return notSelfSufficient, nil
}

func (e *Engine) shouldLower(ctx context.Context) (bool, error) {
	expensive, err := e.powerExpensive(ctx)
	if err != nil {
		return false, err
	}
	if !expensive {
		return false, nil
	}

	pvHigh, err := e.above(ctx, queryPVProduction, e.config.PVHighWatts)
	if err != nil {
		return false, err
	}
	if pvHigh {
		return false, nil
	}

	selfSufficient, err := e.above(ctx, querySelfSufficiency, e.config.SelfSufficiencyHigh)
	if err != nil {
		return false, err
	}
	batteryCharged, err := e.atLeast(ctx, queryBatterySoC, e.config.BatteryMinSoC)
	if err != nil {
		return false, err
	}
	return !selfSufficient || !batteryCharged, nil
}

// powerExpensive compares the current price to the prices expected in the
// next hours, or falls back to the live grid-import heuristic.
func (e *Engine) powerExpensive(ctx context.Context) (bool, error) {
	if e.config.UsePriceTrend {
		diff, ok, err := e.config.Store.Scalar(ctx, queryBestLaterPriceDiff)
		if err != nil {
			return false, err
		}
		return ok && diff < -e.config.MinPriceSpread, nil
	}
	if e.config.GridImport == nil {
		return false, nil
	}
	return e.config.GridImport.IsAbove(e.config.GridImportWatts), nil
}

// set logs and applies a mode change. The relay layer keeps each relay
// idempotent independently.
func (e *Engine) set(ctx context.Context, mode Mode) error {
	if e.mode == mode {
		return nil
	}

	pair, ok := mode.Relays()
	if !ok {
		return nil
	}
	if err := e.config.Relays.Apply(ctx, pair); err != nil {
		return err
	}

	e.logger.Info("SG-Ready mode changed", "from", e.mode, "to", mode)
	e.mode = mode
	return nil
}

// Mode returns the last applied demand signal.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

func (e *Engine) above(ctx context.Context, query string, threshold float64) (bool, error) {
	v, ok, err := e.config.Store.Scalar(ctx, query)
	if err != nil {
		return false, err
	}
	return ok && v > threshold, nil
}

func (e *Engine) atLeast(ctx context.Context, query string, threshold float64) (bool, error) {
	v, ok, err := e.config.Store.Scalar(ctx, query)
	if err != nil {
		return false, err
	}
	return ok && v >= threshold, nil
}

func (e *Engine) below(ctx context.Context, query string, threshold float64) (bool, error) {
	v, ok, err := e.config.Store.Scalar(ctx, query)
	if err != nil {
		return false, err
	}
	return ok && v < threshold, nil
}

// present reports whether the query returned any row at all.
func (e *Engine) present(ctx context.Context, query string) (bool, error) {
	_, ok, err := e.config.Store.Scalar(ctx, query)
	if err != nil {
		return false, err
	}
	return ok, nil
}
