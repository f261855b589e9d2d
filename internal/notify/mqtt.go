package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures the broker connection of the MQTT bridge.
type MQTTConfig struct {
	Broker      string // e.g. tcp://localhost:1883
	ClientID    string
	TopicPrefix string
}

// MQTTPublisher mirrors change events onto MQTT topics
// <prefix>/data/<event>. Publishing is fire-and-forget at QoS 0.
type MQTTPublisher struct {
	client  mqtt.Client
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewMQTTClient builds a paho client with automatic reconnects.
func NewMQTTClient(cfg MQTTConfig, logger *slog.Logger) mqtt.Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	return mqtt.NewClient(opts)
}

// ConnectMQTT starts connecting and waits until connected or ctx ends.
// With connect-retry enabled, paho keeps trying in the background after ctx ends.
func ConnectMQTT(ctx context.Context, client mqtt.Client) error {
	token := client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// NewMQTTPublisher wraps an MQTT client.
func NewMQTTPublisher(client mqtt.Client, topicPrefix string, logger *slog.Logger) *MQTTPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTPublisher{
		client:  client,
		prefix:  strings.TrimRight(topicPrefix, "/"),
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// Topic returns the topic an event is published on.
func (p *MQTTPublisher) Topic(event string) string {
	return p.prefix + Namespace + "/" + event
}

// Notify publishes the event envelope. Completion is only logged.
func (p *MQTTPublisher) Notify(_ context.Context, event string, payload any) {
	if !p.client.IsConnected() {
		p.logger.Debug("mqtt not connected; dropping event", "event", event)
		return
	}

	body, err := json.Marshal(Message{Event: event, Data: payload})
	if err != nil {
		p.logger.Error("encode mqtt event", "event", event, "error", err)
		return
	}

	topic := p.Topic(event)
	token := p.client.Publish(topic, 0, false, body)
	go func() {
		if !token.WaitTimeout(p.timeout) {
			p.logger.Warn("mqtt publish timed out", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			p.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
		}
	}()
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
	p.logger.Info("mqtt publisher disconnected")
}
