// Package radar detects unexpected precipitation from composite radar
// frames. It corrects the forecast-driven schedule: when rain shows up on
// the radar the cover must open no matter what the forecast says.
package radar

import (
	"sync"
	"time"
)

// Measurement is one radar pixel near the site.
type Measurement struct {
	DistanceKm float64 // distance from the site
	Value      float64 // precipitation value in sensor units
}

// Frame is a single radar composite restricted to the site's vicinity.
type Frame struct {
	Time       time.Time
	Precision  float64 // value of the least significant sensor unit
	NoDataFlag float64 // sentinel marking missing pixels
	Values     []Measurement
}

// Sampler fetches the latest radar frame.
type Sampler interface {
	Latest() (Frame, error)
}

const (
	proximityRadiusKm = 10.0
	vicinityRadiusKm  = 50.0

	raiseCount = 5 // samples needed to raise the rain flag
	holdCount  = 2 // samples needed to keep it raised

	// the relaxed regime only applies while the last rain sighting is recent
	holdWindow = 15 * time.Minute
)

// Detector turns noisy radar frames into a stable boolean rain flag.
//
// While no rain is flagged, at least 5 qualifying measurements within 10 km
// are required to raise the flag. Once raised, 2 qualifying measurements
// within 50 km are enough to keep it raised, which dampens detection jitter.
// The stricter regime is restored 15 minutes after the last positive frame.
type Detector struct {
	mu       sync.Mutex
	raining  bool
	lastRain time.Time
}

// Evaluate inspects one frame and returns the updated rain flag.
func (d *Detector) Evaluate(frame Frame) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	radius := proximityRadiusKm
	needed := raiseCount
	if d.raining && !d.lastRain.IsZero() && frame.Time.Sub(d.lastRain) <= holdWindow {
		radius = vicinityRadiusKm
		needed = holdCount
	}

	count := 0
	noiseFloor := float64(needed) * frame.Precision
	for _, m := range frame.Values {
		if m.DistanceKm > radius {
			continue
		}
		if m.Value == frame.NoDataFlag {
			continue
		}
		if m.Value <= noiseFloor {
			continue
		}
		count++
	}

	d.raining = count >= needed
	if d.raining {
		d.lastRain = frame.Time
	}
	return d.raining
}

// Raining returns the current flag without evaluating a new frame.
func (d *Detector) Raining() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.raining
}

// Reset clears the flag, e.g. when radar polling is gated off because the
// schedule makes the flag irrelevant.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.raining = false
	d.lastRain = time.Time{}
}
