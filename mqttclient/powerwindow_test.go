package mqttclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPowerWindowMakesNoClaimsUntilFull(t *testing.T) {
	window := NewPowerWindow(3)
	window.Observe(5000)
	window.Observe(5000)

	assert.False(t, window.IsAbove(1000))
	assert.False(t, window.IsBelow(10000))
}

func TestPowerWindowIsAbove(t *testing.T) {
	window := NewPowerWindow(3)
	for _, v := range []float64{1500, 1800, 2000} {
		window.Observe(v)
	}

	assert.True(t, window.IsAbove(1000))
	assert.False(t, window.IsAbove(1600), "every sample must exceed the threshold")
}

func TestPowerWindowIsBelow(t *testing.T) {
	window := NewPowerWindow(3)
	for _, v := range []float64{100, -200, 300} {
		window.Observe(v)
	}

	assert.True(t, window.IsBelow(500))
	assert.False(t, window.IsBelow(200))
}

func TestPowerWindowEvictsOldestSample(t *testing.T) {
	window := NewPowerWindow(3)
	for _, v := range []float64{50, 1500, 1800, 2000} {
		window.Observe(v)
	}

	// the low initial sample has been evicted
	assert.True(t, window.IsAbove(1000))
}

func TestPowerWindowHandlerParsesPayloads(t *testing.T) {
	window := NewPowerWindow(2)
	handler := window.Handler()

	handler("power", []byte("1500.5\n"))
	handler("power", []byte("not-a-number"))
	handler("power", []byte("1600"))

	assert.True(t, window.IsAbove(1000))
}
