package sgready

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type relayCommand struct {
	relay int
	on    bool
}

type fakeDriver struct {
	commands []relayCommand
	failing  bool
}

func (d *fakeDriver) Set(_ context.Context, relay int, on bool) error {
	if d.failing {
		return errors.New("unreachable")
	}
	d.commands = append(d.commands, relayCommand{relay, on})
	return nil
}

func TestRelaysApplyIsIdempotentPerRelay(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{}
	relays := NewRelays(driver)

	require.NoError(t, relays.Apply(ctx, RelayPair{Relay1: true, Relay2: false}))
	assert.Equal(t, []relayCommand{{1, true}, {2, false}}, driver.commands)

	// same pair again: nothing is re-commanded
	require.NoError(t, relays.Apply(ctx, RelayPair{Relay1: true, Relay2: false}))
	assert.Len(t, driver.commands, 2)

	// only relay 2 changes, only relay 2 is commanded
	require.NoError(t, relays.Apply(ctx, RelayPair{Relay1: true, Relay2: true}))
	assert.Equal(t, relayCommand{2, true}, driver.commands[2])
	assert.Len(t, driver.commands, 3)
}

func TestRelaysApplyRetriesAfterFailure(t *testing.T) {
	ctx := context.Background()
	driver := &fakeDriver{failing: true}
	relays := NewRelays(driver)

	assert.Error(t, relays.Apply(ctx, RelayPair{Relay1: true, Relay2: true}))

	// the failed commands were not recorded, so the next cycle re-issues them
	driver.failing = false
	require.NoError(t, relays.Apply(ctx, RelayPair{Relay1: true, Relay2: true}))
	assert.Equal(t, []relayCommand{{1, true}, {2, true}}, driver.commands)
}
