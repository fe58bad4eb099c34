// Package mqttclient wraps the paho MQTT client for the handful of topics
// this controller consumes and publishes.
package mqttclient

import (
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Client is a thin wrapper that hides the underlying MQTT library.
type Client struct {
	sub    mqtt.Client
	logger *slog.Logger
}

// Connect establishes the broker session. The paho client reconnects on its
// own after transport errors.
func Connect(server, clientID, user, password string) (*Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(server).
		SetClientID(clientID).
		SetUsername(user).
		SetPassword(password).
		SetAutoReconnect(true).
		SetConnectRetryInterval(2 * time.Second)

	sub := mqtt.NewClient(opts)
	token := sub.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connect to %s: timed out", server)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", server, err)
	}

	return &Client{
		sub:    sub,
		logger: slog.Default().With("mqtt", server),
	}, nil
}

// Subscribe registers a handler for the topic with QoS 1.
func (c *Client) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	token := c.sub.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	c.logger.Info("subscribed", "topic", topic)
	return nil
}

// Publish sends a retained-off QoS 1 message.
func (c *Client) Publish(topic string, payload string) error {
	token := c.sub.Publish(topic, 1, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Disconnect flushes and closes the session.
func (c *Client) Disconnect() {
	c.sub.Disconnect(250)
}
