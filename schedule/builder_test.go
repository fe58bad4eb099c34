package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fairWeather is a point that classifies as good under the default bands.
func fairWeather(at time.Time) ForecastPoint {
	return ForecastPoint{
		Time:                at,
		PrecipProbability:   5,
		PrecipDuration:      0,
		DrizzleProbability:  0,
		FogProbability:      0,
		ThunderProbability:  0,
		WindGust:            3,
		SunshineDuration:    10 * 60,
		DewPoint:            280,
		DewPointError:       0.5,
		AirTemperature:      293.15,
		AirTemperatureError: 0.5,
		CloudCover:          10,
	}
}

func TestAggregateIsPessimistic(t *testing.T) {
	at := mustParseTime("2026-05-01T12:00:00+02:00")

	stationA := fairWeather(at)
	stationB := fairWeather(at)
	stationB.PrecipProbability = 60
	stationB.WindGust = 12
	stationB.SunshineDuration = 2 * 60
	stationB.AirTemperature = 285.15
	stationB.CloudCover = 80

	aggregated := aggregate([]ForecastPoint{stationA, stationB})
	require.Len(t, aggregated, 1)

	agg := aggregated[0]
	assert.Equal(t, 60.0, agg.PrecipProbability, "adverse probability of any station must win")
	assert.Equal(t, 12.0, agg.WindGust)
	assert.Equal(t, 80.0, agg.CloudCover)
	assert.Equal(t, 2*60.0, agg.SunshineDuration, "least sunshine of any station must win")
	assert.Equal(t, 285.15, agg.AirTemperature)
}

func TestAggregateSortsByTime(t *testing.T) {
	later := fairWeather(mustParseTime("2026-05-01T13:00:00+02:00"))
	earlier := fairWeather(mustParseTime("2026-05-01T12:00:00+02:00"))

	aggregated := aggregate([]ForecastPoint{later, earlier})
	require.Len(t, aggregated, 2)
	assert.True(t, aggregated[0].Time.Before(aggregated[1].Time))
}

func TestClassify(t *testing.T) {
	at := mustParseTime("2026-05-01T12:00:00+02:00")
	builder := &Builder{Thresholds: DefaultThresholds()}

	tests := []struct {
		name                    string
		modify                  func(p *ForecastPoint)
		previous                Classification
		expectedClassification  Classification
		expectedReason          Reason
		expectedCloseWindow     bool
		expectedExtendedReasons []Reason
	}{
		{
			name:                   "clearly good",
			modify:                 func(p *ForecastPoint) {},
			previous:               Bad,
			expectedClassification: Good,
			expectedReason:         ReasonSunny,
		},
		{
			name: "overcast",
			modify: func(p *ForecastPoint) {
				p.CloudCover = 95
			},
			previous:                Good,
			expectedClassification:  Bad,
			expectedReason:          ReasonClouds,
			expectedExtendedReasons: []Reason{ReasonClouds},
		},
		{
			name: "dew point within the error band of the temperature means fog",
			modify: func(p *ForecastPoint) {
				p.DewPoint = 292.8
			},
			previous:                Good,
			expectedClassification:  Bad,
			expectedReason:          ReasonFog,
			expectedExtendedReasons: []Reason{ReasonFog},
		},
		{
			name: "cold shuts the window",
			modify: func(p *ForecastPoint) {
				p.AirTemperature = 275.15
				p.DewPoint = 260
			},
			previous:                Good,
			expectedClassification:  Bad,
			expectedReason:          ReasonCold,
			expectedCloseWindow:     true,
			expectedExtendedReasons: []Reason{ReasonCold},
		},
		{
			name: "gusts",
			modify: func(p *ForecastPoint) {
				p.WindGust = 14
			},
			previous:                Good,
			expectedClassification:  Bad,
			expectedReason:          ReasonWind,
			expectedExtendedReasons: []Reason{ReasonWind},
		},
		{
			name: "probable sustained rain shuts the window",
			modify: func(p *ForecastPoint) {
				p.PrecipProbability = 55
				p.PrecipDuration = 300
			},
			previous:                Good,
			expectedClassification:  Bad,
			expectedReason:          ReasonRain,
			expectedCloseWindow:     true,
			expectedExtendedReasons: []Reason{ReasonRain},
		},
		{
			name: "probable rain without duration is not rain",
			modify: func(p *ForecastPoint) {
				p.PrecipProbability = 55
			},
			previous:               Good,
			expectedClassification: Good,
			expectedReason:         ReasonClear,
		},
		{
			name: "thunder shuts the window",
			modify: func(p *ForecastPoint) {
				p.ThunderProbability = 70
			},
			previous:                Good,
			expectedClassification:  Bad,
			expectedReason:          ReasonThunder,
			expectedCloseWindow:     true,
			expectedExtendedReasons: []Reason{ReasonThunder},
		},
		{
			name: "first bad rule names the reason, all of them are recorded",
			modify: func(p *ForecastPoint) {
				p.CloudCover = 95
				p.WindGust = 14
				p.ThunderProbability = 70
			},
			previous:                Good,
			expectedClassification:  Bad,
			expectedReason:          ReasonClouds,
			expectedCloseWindow:     true,
			expectedExtendedReasons: []Reason{ReasonClouds, ReasonWind, ReasonThunder},
		},
		{
			name: "dead zone keeps a good previous classification",
			modify: func(p *ForecastPoint) {
				p.SunshineDuration = 2 * 60
				p.CloudCover = 60
			},
			previous:               Good,
			expectedClassification: Good,
			expectedReason:         ReasonClear,
		},
		{
			name: "dead zone keeps a bad previous classification",
			modify: func(p *ForecastPoint) {
				p.SunshineDuration = 2 * 60
				p.CloudCover = 60
			},
			previous:               Bad,
			expectedClassification: Bad,
			expectedReason:         ReasonClear,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			point := fairWeather(at)
			tt.modify(&point)

			entry := builder.classify(point, tt.previous)
			assert.Equal(t, tt.expectedClassification, entry.Classification)
			assert.Equal(t, tt.expectedReason, entry.Reason)
			assert.Equal(t, tt.expectedCloseWindow, entry.CloseWindow)
			assert.Equal(t, tt.expectedExtendedReasons, entry.ExtendedReasons)
		})
	}
}

func TestBuildSplicesSunBoundaries(t *testing.T) {
	now := mustParseTime("2026-05-01T12:00:00+02:00")
	rise := mustParseTime("2026-05-01T06:00:00+02:00")
	set := mustParseTime("2026-05-01T20:30:00+02:00")

	builder := &Builder{
		Thresholds: DefaultThresholds(),
		Sun:        func(time.Time) (time.Time, time.Time) { return rise, set },
	}

	var points []ForecastPoint
	for hour := 10; hour <= 23; hour++ {
		at := time.Date(2026, 5, 1, hour, 0, 0, 0, now.Location())
		points = append(points, fairWeather(at))
	}

	entries, err := builder.Build(points, now)
	require.NoError(t, err)

	byTime := make(map[time.Time]Entry, len(entries))
	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i].Time.After(entries[i-1].Time), "timestamps must be strictly increasing")
	}
	for _, e := range entries {
		byTime[e.Time] = e
	}

	sunriseEntry, ok := byTime[rise]
	require.True(t, ok)
	assert.Equal(t, Bad, sunriseEntry.Classification)
	assert.Equal(t, ReasonTooEarly, sunriseEntry.Reason)

	// the sunset boundary inherits the classification of the slot it splits
	sunsetEntry, ok := byTime[set]
	require.True(t, ok)
	assert.Equal(t, Good, sunsetEntry.Classification)

	nightEntry, ok := byTime[mustParseTime("2026-05-01T21:00:00+02:00")]
	require.True(t, ok)
	assert.Equal(t, Bad, nightEntry.Classification)
	assert.Equal(t, ReasonNight, nightEntry.Reason)
}

func TestBuildNextDaySunTimesAfterSunset(t *testing.T) {
	now := mustParseTime("2026-05-01T22:00:00+02:00")

	days := map[int]struct{ rise, set time.Time }{
		1: {mustParseTime("2026-05-01T06:00:00+02:00"), mustParseTime("2026-05-01T20:30:00+02:00")},
		2: {mustParseTime("2026-05-02T06:00:00+02:00"), mustParseTime("2026-05-02T20:30:00+02:00")},
	}
	builder := &Builder{
		Thresholds: DefaultThresholds(),
		Sun: func(day time.Time) (time.Time, time.Time) {
			d := days[day.Day()]
			return d.rise, d.set
		},
	}

	points := []ForecastPoint{fairWeather(mustParseTime("2026-05-02T12:00:00+02:00"))}
	entries, err := builder.Build(points, now)
	require.NoError(t, err)

	var reasons []Reason
	for _, e := range entries {
		reasons = append(reasons, e.Reason)
	}
	assert.Contains(t, reasons, ReasonTooEarly, "sunrise of the following day must be spliced in")
}

func TestBuildRejectsEmptyForecast(t *testing.T) {
	builder := &Builder{Thresholds: DefaultThresholds()}
	_, err := builder.Build(nil, mustParseTime("2026-05-01T12:00:00+02:00"))
	assert.ErrorIs(t, err, ErrFetchFailed)
}
