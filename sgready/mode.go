// Package sgready maps PV production, battery state and power prices onto
// the heat pump's SG-Ready demand signal and drives the two relays behind it.
package sgready

// Mode is the 4-valued SG-Ready demand signal, ordered by demand priority.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeShutdown
	ModeLow
	ModeNormal
	ModeHigh
)

func (m Mode) String() string {
	switch m {
	case ModeShutdown:
		return "SHUTDOWN"
	case ModeLow:
		return "LOW"
	case ModeNormal:
		return "NORMAL"
	case ModeHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// RelayPair is the boolean state of the two SG-Ready relays.
type RelayPair struct {
	Relay1 bool
	Relay2 bool
}

// relayTable is the deployed wiring of the SG-Ready terminals. The heat pump
// does not follow the SG-Ready specification and the relays were wired so
// that NORMAL and HIGH remain spec-compliant; SHUTDOWN and LOW intentionally
// share relay1=1. This table is a hardware contract, not an error.
var relayTable = map[Mode]RelayPair{
	ModeShutdown: {Relay1: true, Relay2: false},
	ModeLow:      {Relay1: true, Relay2: false},
	ModeNormal:   {Relay1: false, Relay2: false},
	ModeHigh:     {Relay1: false, Relay2: true},
}

// Relays returns the relay states for the mode per the deployed wiring.
func (m Mode) Relays() (RelayPair, bool) {
	pair, ok := relayTable[m]
	return pair, ok
}
