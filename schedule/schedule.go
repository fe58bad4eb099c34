package schedule

import (
	"time"
)

// Classification is the weather verdict for one schedule entry.
type Classification string

const (
	Good Classification = "good"
	Bad  Classification = "bad"
)

// Reason identifies the rule that decided an entry's classification.
type Reason string

const (
	ReasonClear    Reason = "clear"
	ReasonSunny    Reason = "sunny"
	ReasonClouds   Reason = "clouds"
	ReasonFog      Reason = "fog"
	ReasonCold     Reason = "cold"
	ReasonWind     Reason = "wind"
	ReasonRain     Reason = "rain"
	ReasonThunder  Reason = "thunder"
	ReasonTooEarly Reason = "too-early"
	ReasonNight    Reason = "night"
)

// Entry is one time slot of the weather schedule. Entries are ordered by
// strictly increasing Time and an entry applies to all instants before its
// Time (the consumer picks the first entry with Time > now).
type Entry struct {
	Time            time.Time
	Classification  Classification
	CloseWindow     bool // hint that the window should be shut in this slot
	Reason          Reason
	ExtendedReasons []Reason // all rules that voted Bad, not just the first
}

// At returns the first entry with a timestamp after t, plus the following
// entries, or ok=false if the schedule has run out.
func At(entries []Entry, t time.Time) (current Entry, following []Entry, ok bool) {
	for i, e := range entries {
		if e.Time.After(t) {
			return e, entries[i+1:], true
		}
	}
	return Entry{}, nil, false
}
