// Package mqttctl exposes an MQTT-bridged device as a cover backend: the
// command is published to a topic and a relay script on the device side
// executes it.
package mqttctl

import (
	"context"

	"github.com/hausctl/homecontroller/mqttclient"
)

type Device struct {
	client *mqttclient.Client
	topic  string
}

func New(client *mqttclient.Client, topic string) *Device {
	return &Device{client: client, topic: topic}
}

func (d *Device) Name() string {
	return "mqtt"
}

func (d *Device) Open(_ context.Context) error {
	return d.client.Publish(d.topic, "open")
}

func (d *Device) Close(_ context.Context) error {
	return d.client.Publish(d.topic, "close")
}
