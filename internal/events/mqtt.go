package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
)

const (
	qosAtLeastOnce    = 1
	disconnectQuiesce = 250 // ms
)

var ErrNotConnected = errors.New("mqtt client not connected")

// Config holds MQTT publisher configuration
type Config struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
}

// publishClient is the part of mqtt.Client the publisher uses
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes AnalysisEvent JSON at QoS 1
type MQTTPublisher struct {
	client publishClient
	topic  string
	logger *slog.Logger
}

var _ Publisher = (*MQTTPublisher)(nil)

// Connect opens the broker connection. The client reconnects on its own
// after a lost connection.
func Connect(cfg Config, logger *slog.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("mqtt connection established", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return newMQTTPublisher(client, cfg.Topic, logger), nil
}

func newMQTTPublisher(client publishClient, topic string, logger *slog.Logger) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, logger: logger}
}

// Publish waits for the broker acknowledgement or ctx, whichever comes first
func (p *MQTTPublisher) Publish(ctx context.Context, a *domain.Analysis) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(NewAnalysisEvent(a))
	if err != nil {
		return fmt.Errorf("marshal analysis event: %w", err)
	}

	token := p.client.Publish(p.topic, qosAtLeastOnce, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish analysis event: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("publish analysis event: %w", ctx.Err())
	}

	p.logger.Debug("published analysis event", "topic", p.topic, "id", a.ID)
	return nil
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(disconnectQuiesce)
}
