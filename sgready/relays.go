package sgready

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// RelayDriver sets one binary relay output.
type RelayDriver interface {
	Set(ctx context.Context, relay int, on bool) error
}

// Relays applies a RelayPair through a driver, re-commanding each relay only
// when its desired state differs from the last commanded one. The two relays
// are tracked independently.
type Relays struct {
	mu     sync.Mutex
	driver RelayDriver
	last   map[int]bool
}

func NewRelays(driver RelayDriver) *Relays {
	return &Relays{
		driver: driver,
		last:   make(map[int]bool),
	}
}

// Apply commands the relays towards the pair. The first relay that fails
// aborts the call so the next cycle retries the remaining commands.
func (r *Relays) Apply(ctx context.Context, pair RelayPair) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := []struct {
		relay int
		on    bool
	}{
		{1, pair.Relay1},
		{2, pair.Relay2},
	}
	for _, w := range wanted {
		last, known := r.last[w.relay]
		if known && last == w.on {
			continue
		}
		if err := r.driver.Set(ctx, w.relay, w.on); err != nil {
			return fmt.Errorf("set relay %d: %w", w.relay, err)
		}
		r.last[w.relay] = w.on
	}
	return nil
}

// BarionetDriver switches relays on a Barionet I/O controller via its HTTP
// control interface ("?o=<relay>,<0|1>").
type BarionetDriver struct {
	BaseURL string
	Client  *http.Client
}

func (d *BarionetDriver) Set(ctx context.Context, relay int, on bool) error {
	state := 0
	if on {
		state = 1
	}
	// the Barionet expects the raw "relay,state" pair, unescaped
	u := fmt.Sprintf("%s?o=%d,%d", d.BaseURL, relay, state)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("barionet returned status %d", resp.StatusCode)
	}
	return nil
}
