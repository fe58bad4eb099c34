// Package arduinoctl commands the sunscreen microcontroller over UDP. The
// datagrams are fire-and-forget: the microcontroller applies the last
// received command and supports a manual hardware override.
package arduinoctl

import (
	"context"
	"fmt"
	"net"
)

type Device struct {
	conn *net.UDPConn
}

func New(hostname string, port int) (*Device, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", hostname, port))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", hostname, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", hostname, err)
	}
	return &Device{conn: conn}, nil
}

func (d *Device) Name() string {
	return "arduino"
}

func (d *Device) Open(_ context.Context) error {
	return d.send("curtain open")
}

func (d *Device) Close(_ context.Context) error {
	return d.send("curtain close")
}

func (d *Device) send(command string) error {
	_, err := d.conn.Write([]byte(command))
	if err != nil {
		return fmt.Errorf("send %q: %w", command, err)
	}
	return nil
}
