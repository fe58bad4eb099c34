package sgready

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModeRelays(t *testing.T) {
	tests := []struct {
		mode     Mode
		expected RelayPair
		ok       bool
	}{
		{ModeShutdown, RelayPair{Relay1: true, Relay2: false}, true},
		{ModeLow, RelayPair{Relay1: true, Relay2: false}, true},
		{ModeNormal, RelayPair{Relay1: false, Relay2: false}, true},
		{ModeHigh, RelayPair{Relay1: false, Relay2: true}, true},
		{ModeUnknown, RelayPair{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			pair, ok := tt.mode.Relays()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, pair)
		})
	}
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "SHUTDOWN", ModeShutdown.String())
	assert.Equal(t, "LOW", ModeLow.String())
	assert.Equal(t, "NORMAL", ModeNormal.String())
	assert.Equal(t, "HIGH", ModeHigh.String())
	assert.Equal(t, "UNKNOWN", ModeUnknown.String())
}
