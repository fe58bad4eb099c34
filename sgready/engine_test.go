package sgready

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scalar struct {
	value float64
	ok    bool
	err   error
}

// fakeStore answers the engine's flux queries from a fixture map. Queries
// without a fixture return "no data".
type fakeStore struct {
	results map[string]scalar
}

func (s *fakeStore) Scalar(_ context.Context, flux string) (float64, bool, error) {
	res, found := s.results[flux]
	if !found {
		return 0, false, nil
	}
	return res.value, res.ok, res.err
}

type staticSignal struct {
	above bool
	below bool
}

func (s staticSignal) IsAbove(float64) bool { return s.above }
func (s staticSignal) IsBelow(float64) bool { return s.below }

func newTestEngine(store *fakeStore, driver *fakeDriver) *Engine {
	return New(Config{
		Store:               store,
		Relays:              NewRelays(driver),
		PVHighWatts:         3000,
		BatteryMinSoC:       80,
		SelfSufficiencyLow:  50,
		SelfSufficiencyHigh: 95,
		RunningWatts:        500,
		UsePriceTrend:       true,
		MinPriceSpread:      2,
	})
}

func TestUpdateModeSelection(t *testing.T) {
	tests := []struct {
		name     string
		results  map[string]scalar
		expected Mode
	}{
		{
			name: "running and charging from the grid raises to high",
			results: map[string]scalar{
				queryHeatPumpPower:    {value: 1200, ok: true},
				queryChargingFromGrid: {value: 1, ok: true},
			},
			expected: ModeHigh,
		},
		{
			name: "running with a charged battery and high pv raises to high",
			results: map[string]scalar{
				queryHeatPumpPower: {value: 1200, ok: true},
				queryBatterySoC:    {value: 92, ok: true},
				queryPVProduction:  {value: 4500, ok: true},
			},
			expected: ModeHigh,
		},
		{
			name: "running with a charged battery but drawing from the grid raises to high",
			results: map[string]scalar{
				queryHeatPumpPower:   {value: 1200, ok: true},
				queryBatterySoC:      {value: 92, ok: true},
				queryPVProduction:    {value: 800, ok: true},
				querySelfSufficiency: {value: 30, ok: true},
			},
			expected: ModeHigh,
		},
		{
			name: "running with an empty battery stays normal",
			results: map[string]scalar{
				queryHeatPumpPower: {value: 1200, ok: true},
				queryBatterySoC:    {value: 40, ok: true},
				queryPVProduction:  {value: 4500, ok: true},
			},
			expected: ModeNormal,
		},
		{
			name: "stopped while power is expensive lowers",
			results: map[string]scalar{
				queryHeatPumpPower:      {value: 50, ok: true},
				queryBestLaterPriceDiff: {value: -5, ok: true},
				queryPVProduction:       {value: 200, ok: true},
				querySelfSufficiency:    {value: 40, ok: true},
				queryBatterySoC:         {value: 40, ok: true},
			},
			expected: ModeLow,
		},
		{
			name: "stopped while power is expensive but pv is high stays normal",
			results: map[string]scalar{
				queryHeatPumpPower:      {value: 50, ok: true},
				queryBestLaterPriceDiff: {value: -5, ok: true},
				queryPVProduction:       {value: 4500, ok: true},
			},
			expected: ModeNormal,
		},
		{
			name: "stopped while power is expensive but the site is covered stays normal",
			results: map[string]scalar{
				queryHeatPumpPower:      {value: 50, ok: true},
				queryBestLaterPriceDiff: {value: -5, ok: true},
				queryPVProduction:       {value: 200, ok: true},
				querySelfSufficiency:    {value: 98, ok: true},
				queryBatterySoC:         {value: 92, ok: true},
			},
			expected: ModeNormal,
		},
		{
			name: "stopped while the price spread is too small stays normal",
			results: map[string]scalar{
				queryHeatPumpPower:      {value: 50, ok: true},
				queryBestLaterPriceDiff: {value: -1, ok: true},
			},
			expected: ModeNormal,
		},
		{
			name: "missing data never triggers a rule",
			results: map[string]scalar{
				queryHeatPumpPower: {ok: false},
			},
			expected: ModeNormal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			driver := &fakeDriver{}
			engine := newTestEngine(&fakeStore{results: tt.results}, driver)

			require.NoError(t, engine.Update(ctx))
			assert.Equal(t, tt.expected, engine.Mode())

			pair, ok := tt.expected.Relays()
			require.True(t, ok)
			last := map[int]bool{}
			for _, cmd := range driver.commands {
				last[cmd.relay] = cmd.on
			}
			assert.Equal(t, pair.Relay1, last[1])
			assert.Equal(t, pair.Relay2, last[2])
		})
	}
}

func TestUpdateQueryErrorLeavesModeAndRelaysUntouched(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{}
	engine := newTestEngine(&fakeStore{results: map[string]scalar{
		queryHeatPumpPower: {err: errors.New("influx down")},
	}}, driver)

	assert.Error(t, engine.Update(ctx))
	assert.Equal(t, ModeUnknown, engine.Mode())
	assert.Empty(t, driver.commands)
}

func TestUpdateRepeatedModeIsNotReapplied(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{}
	engine := newTestEngine(&fakeStore{results: map[string]scalar{
		queryHeatPumpPower: {value: 50, ok: true},
	}}, driver)

	require.NoError(t, engine.Update(ctx))
	commandsAfterFirst := len(driver.commands)
	require.NoError(t, engine.Update(ctx))
	assert.Equal(t, commandsAfterFirst, len(driver.commands))
}

func TestUpdateGridImportHeuristic(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		signal   LiveSignal
		expected Mode
	}{
		{
			name:     "sustained grid import counts as expensive",
			signal:   staticSignal{above: true},
			expected: ModeLow,
		},
		{
			name:     "no sustained import stays normal",
			signal:   staticSignal{},
			expected: ModeNormal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := &fakeDriver{}
			engine := New(Config{
				Store: &fakeStore{results: map[string]scalar{
					queryHeatPumpPower:   {value: 50, ok: true},
					queryPVProduction:    {value: 200, ok: true},
					querySelfSufficiency: {value: 40, ok: true},
					queryBatterySoC:      {value: 40, ok: true},
				}},
				Relays:          NewRelays(driver),
				PVHighWatts:     3000,
				BatteryMinSoC:   80,
				RunningWatts:    500,
				GridImport:      tt.signal,
				GridImportWatts: 1000,
			})

			require.NoError(t, engine.Update(ctx))
			assert.Equal(t, tt.expected, engine.Mode())
		})
	}
}
