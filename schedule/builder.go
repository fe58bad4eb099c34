package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nathan-osman/go-sunrise"
	"github.com/samber/lo"
)

// ErrFetchFailed indicates that the upstream forecast source was unreachable
// or returned data that could not be used. The previous schedule stays valid.
var ErrFetchFailed = errors.New("forecast fetch failed")

// ForecastPoint holds the forecast parameters of a single station for a
// single timestamp. Temperatures are in Kelvin, probabilities in percent,
// durations in seconds per hour, wind in m/s, cloud cover in percent.
type ForecastPoint struct {
	Time                time.Time
	PrecipProbability   float64
	PrecipDuration      float64
	DrizzleProbability  float64
	FogProbability      float64
	ThunderProbability  float64
	WindGust            float64
	SunshineDuration    float64
	DewPoint            float64
	DewPointError       float64
	AirTemperature      float64
	AirTemperatureError float64
	CloudCover          float64
}

// Provider fetches the latest raw forecast for the configured nearby
// stations. All stations' points are returned in one flat slice.
type Provider interface {
	Fetch() ([]ForecastPoint, error)
}

// Thresholds holds the classification bands. The Good* values must be
// stricter than their Bad* counterparts so that a dead zone exists between
// "all conditions clearly good" and "any condition clearly bad"; entries in
// the dead zone keep the previous entry's classification.
type Thresholds struct {
	GoodSunshineMin        float64 `json:"goodSunshineMin"`        // seconds of sunshine per hour
	GoodCloudCoverMax      float64 `json:"goodCloudCoverMax"`      // percent
	BadCloudCoverMin       float64 `json:"badCloudCoverMin"`       // percent
	BadFogProbability      float64 `json:"badFogProbability"`      // percent
	ColdTemperature        float64 `json:"coldTemperature"`        // Kelvin
	GoodTemperatureMin     float64 `json:"goodTemperatureMin"`     // Kelvin
	BadWindGust            float64 `json:"badWindGust"`            // m/s
	GoodWindGustMax        float64 `json:"goodWindGustMax"`        // m/s
	BadRainProbability     float64 `json:"badRainProbability"`     // percent
	BadRainDuration        float64 `json:"badRainDuration"`        // seconds per hour
	GoodRainProbabilityMax float64 `json:"goodRainProbabilityMax"` // percent
	BadThunderProbability  float64 `json:"badThunderProbability"`  // percent
}

// DefaultThresholds are the bands used by the deployed sunscreen install.
func DefaultThresholds() Thresholds {
	return Thresholds{
		GoodSunshineMin:        5 * 60,
		GoodCloudCoverMax:      50,
		BadCloudCoverMin:       7.0 / 8.0 * 100,
		BadFogProbability:      40,
		ColdTemperature:        277.15,
		GoodTemperatureMin:     283.15,
		BadWindGust:            10,
		GoodWindGustMax:        6,
		BadRainProbability:     40,
		BadRainDuration:        120,
		GoodRainProbabilityMax: 20,
		BadThunderProbability:  40,
	}
}

// SunTimes returns local sunrise and sunset for the given day. Injectable so
// tests can pin the boundaries.
type SunTimes func(day time.Time) (rise, set time.Time)

// Builder turns raw multi-station forecasts into a classified schedule.
type Builder struct {
	Thresholds Thresholds
	Sun        SunTimes
}

// NewBuilder returns a Builder that computes sun times for the given
// coordinates.
func NewBuilder(thresholds Thresholds, latitude, longitude float64) *Builder {
	return &Builder{
		Thresholds: thresholds,
		Sun: func(day time.Time) (time.Time, time.Time) {
			return sunrise.SunriseSunset(latitude, longitude, day.Year(), day.Month(), day.Day())
		},
	}
}

// Build aggregates the station forecasts pessimistically, classifies every
// timestamp and splices in the sunrise/sunset boundaries. The returned
// entries have strictly increasing timestamps.
func (b *Builder) Build(points []ForecastPoint, now time.Time) ([]Entry, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no forecast points", ErrFetchFailed)
	}

	aggregated := aggregate(points)

	entries := make([]Entry, 0, len(aggregated))
	previous := Bad // until proven otherwise, the first slot counts as bad
	for _, p := range aggregated {
		e := b.classify(p, previous)
		previous = e.Classification
		entries = append(entries, e)
	}

	entries = b.spliceSunBoundaries(entries, now)

	for i := 1; i < len(entries); i++ {
		if !entries[i].Time.After(entries[i-1].Time) {
			return nil, fmt.Errorf("%w: timestamps not strictly increasing at %v", ErrFetchFailed, entries[i].Time)
		}
	}

	return entries, nil
}

// aggregate merges all stations per timestamp using pessimistic values: the
// max of every bad-weather parameter and the min of temperature and cloud
// clearance. If any station reports adverse conditions the aggregate does.
func aggregate(points []ForecastPoint) []ForecastPoint {
	grouped := lo.GroupBy(points, func(p ForecastPoint) time.Time { return p.Time })

	aggregated := make([]ForecastPoint, 0, len(grouped))
	for ts, group := range grouped {
		agg := ForecastPoint{Time: ts}
		for i, p := range group {
			if i == 0 {
				agg = p
				continue
			}
			agg.PrecipProbability = max(agg.PrecipProbability, p.PrecipProbability)
			agg.PrecipDuration = max(agg.PrecipDuration, p.PrecipDuration)
			agg.DrizzleProbability = max(agg.DrizzleProbability, p.DrizzleProbability)
			agg.FogProbability = max(agg.FogProbability, p.FogProbability)
			agg.ThunderProbability = max(agg.ThunderProbability, p.ThunderProbability)
			agg.WindGust = max(agg.WindGust, p.WindGust)
			agg.DewPoint = max(agg.DewPoint, p.DewPoint)
			agg.DewPointError = max(agg.DewPointError, p.DewPointError)
			agg.AirTemperatureError = max(agg.AirTemperatureError, p.AirTemperatureError)
			agg.SunshineDuration = min(agg.SunshineDuration, p.SunshineDuration)
			agg.AirTemperature = min(agg.AirTemperature, p.AirTemperature)
			agg.CloudCover = max(agg.CloudCover, p.CloudCover)
		}
		aggregated = append(aggregated, agg)
	}

	sort.Slice(aggregated, func(i, j int) bool { return aggregated[i].Time.Before(aggregated[j].Time) })
	return aggregated
}

// classify applies the threshold bands to one aggregated point. The bad rules
// are evaluated in a fixed precedence order so that the recorded Reason is
// deterministic; ExtendedReasons collects every rule that voted bad.
func (b *Builder) classify(p ForecastPoint, previous Classification) Entry {
	t := b.Thresholds

	type rule struct {
		reason      Reason
		bad         bool
		closeWindow bool
	}
	rules := []rule{
		{ReasonClouds, p.CloudCover > t.BadCloudCoverMin, false},
		{ReasonFog, p.DewPoint+p.DewPointError > p.AirTemperature-p.AirTemperatureError || p.FogProbability > t.BadFogProbability, false},
		{ReasonCold, p.AirTemperature-p.AirTemperatureError < t.ColdTemperature, true},
		{ReasonWind, p.WindGust > t.BadWindGust, false},
		{ReasonRain, (p.PrecipProbability > t.BadRainProbability && p.PrecipDuration > t.BadRainDuration) || p.DrizzleProbability > t.BadRainProbability, true},
		{ReasonThunder, p.ThunderProbability > t.BadThunderProbability, true},
	}

	entry := Entry{Time: p.Time}
	for _, r := range rules {
		if !r.bad {
			continue
		}
		if entry.Reason == "" {
			entry.Reason = r.reason
		}
		entry.ExtendedReasons = append(entry.ExtendedReasons, r.reason)
		entry.CloseWindow = entry.CloseWindow || r.closeWindow
	}
	if len(entry.ExtendedReasons) > 0 {
		entry.Classification = Bad
		return entry
	}

	allGood := p.SunshineDuration >= t.GoodSunshineMin &&
		p.CloudCover < t.GoodCloudCoverMax &&
		p.PrecipProbability < t.GoodRainProbabilityMax &&
		p.DrizzleProbability < t.GoodRainProbabilityMax &&
		p.DewPoint+p.DewPointError < p.AirTemperature-p.AirTemperatureError &&
		p.AirTemperature-p.AirTemperatureError > t.GoodTemperatureMin &&
		p.WindGust < t.GoodWindGustMax
	if allGood {
		entry.Classification = Good
		entry.Reason = ReasonSunny
		return entry
	}

	// dead zone between the good and bad bands: stay where we were
	entry.Classification = previous
	entry.Reason = ReasonClear
	return entry
}

// spliceSunBoundaries forces the slot at sunrise to bad ("too early") and
// synthesizes a sunset boundary: the entry at sunset takes over the
// classification of the slot it interrupts, and the first entry after sunset
// flips to bad ("night").
func (b *Builder) spliceSunBoundaries(entries []Entry, now time.Time) []Entry {
	rise, set := b.Sun(now)
	if set.Before(now) {
		rise, set = b.Sun(now.AddDate(0, 0, 1))
	}

	entries = upsert(entries, Entry{
		Time:           rise,
		Classification: Bad,
		Reason:         ReasonTooEarly,
	})

	// find the slot that covers the sunset instant
	afterIdx := -1
	for i, e := range entries {
		if e.Time.After(set) {
			afterIdx = i
			break
		}
	}
	if afterIdx >= 0 {
		boundary := entries[afterIdx]
		boundary.Time = set
		entries[afterIdx].Classification = Bad
		entries[afterIdx].Reason = ReasonNight
		entries[afterIdx].ExtendedReasons = nil
		entries = upsert(entries, boundary)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Time.Before(entries[j].Time) })
	return entries
}

// upsert replaces the entry with an identical timestamp or appends.
func upsert(entries []Entry, e Entry) []Entry {
	for i := range entries {
		if entries[i].Time.Equal(e.Time) {
			entries[i] = e
			return entries
		}
	}
	return append(entries, e)
}
