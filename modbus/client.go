// Package modbus provides a small wrapper around the open source modbus
// library with lazy reconnects after transport errors.
package modbus

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/simonvetter/modbus"
)

// Client reads metrics from a Modbus/TCP device.
type Client struct {
	host string

	subClient       *modbus.ModbusClient // the raw client of the underlying modbus library
	shouldReconnect bool                 // when true, the subClient is 'dirty' and will be re-created on the next call
	logger          *slog.Logger
}

func NewClient(host string) *Client {
	return &Client{
		host:            host,
		shouldReconnect: true,
		logger:          slog.Default().With("host", host),
	}
}

// ReadFloat32 reads a 32 bit float from the given holding register.
func (c *Client) ReadFloat32(addr uint16) (float64, error) {
	if err := c.reconnectIfNeccesary(); err != nil {
		return 0, fmt.Errorf("reconnect: %w", err)
	}

	val, err := c.subClient.ReadFloat32(addr, modbus.HOLDING_REGISTER)
	if err != nil {
		c.shouldReconnect = true
		return 0, fmt.Errorf("read register %d: %w", addr, err)
	}
	return float64(val), nil
}

// createSubClient creates the open-source modbus library client with
// sensible defaults and connects to the host.
func (c *Client) createSubClient() error {
	subClient, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s", c.host),
		Timeout: 2 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create modbus client: %w", err)
	}

	if err := subClient.Open(); err != nil {
		return fmt.Errorf("open modbus client: %w", err)
	}

	c.subClient = subClient
	return nil
}

// reconnectIfNeccesary closes the old connection and reconnects if there
// have been problems with the connection.
func (c *Client) reconnectIfNeccesary() error {
	if !c.shouldReconnect {
		return nil
	}

	// Ignore errors from Close() as we start a new connection anyway.
	if c.subClient != nil {
		c.subClient.Close()
	}

	if err := c.createSubClient(); err != nil {
		return err
	}

	c.shouldReconnect = false
	c.logger.Info("Connected modbus client")
	return nil
}
