package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttConnectTimeout    = 10 * time.Second
	mqttPublishTimeout    = 5 * time.Second
	mqttDisconnectQuiesce = 250 // milliseconds
)

type MQTTConfig struct {
	Broker   string `env:"NOTIFY_MQTT_BROKER" envDefault:"tcp://localhost:1883"`
	ClientID string `env:"NOTIFY_MQTT_CLIENT_ID" envDefault:"pitchfork-credential"`
	Username string `env:"NOTIFY_MQTT_USERNAME"`
	Password string `env:"NOTIFY_MQTT_PASSWORD"`
	Topic    string `env:"NOTIFY_MQTT_TOPIC" envDefault:"pitchfork/notifications/email"`
	QoS      byte   `env:"NOTIFY_MQTT_QOS" envDefault:"1"`
}

// publisher is the part of pahomqtt.Client used for delivery.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// envelope is the JSON document published for each message. A mail relay
// subscribed to the topic performs the actual delivery.
type envelope struct {
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// MQTTGateway hands messages to a broker topic.
type MQTTGateway struct {
	client publisher
	topic  string
	qos    byte
	close  func()
}

// DialMQTT connects to cfg.Broker and returns a ready gateway.
func DialMQTT(cfg MQTTConfig) (*MQTTGateway, error) {
	if cfg.Topic == "" {
		return nil, fmt.Errorf("mqtt notification topic is empty")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("invalid mqtt qos %d", cfg.QoS)
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c := pahomqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: timeout after %v", cfg.Broker, mqttConnectTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	return &MQTTGateway{
		client: c,
		topic:  cfg.Topic,
		qos:    cfg.QoS,
		close:  func() { c.Disconnect(mqttDisconnectQuiesce) },
	}, nil
}

func (g *MQTTGateway) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(envelope{To: to, Subject: subject, Body: body, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrDelivery, err)
	}

	tok := g.client.Publish(g.topic, g.qos, false, payload)
	timer := time.NewTimer(mqttPublishTimeout)
	defer timer.Stop()
	select {
	case <-tok.Done():
	case <-timer.C:
		return fmt.Errorf("%w: mqtt publish timeout after %v", ErrDelivery, mqttPublishTimeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrDelivery, ctx.Err())
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%w: mqtt publish: %w", ErrDelivery, err)
	}
	return nil
}

func (g *MQTTGateway) Close() error {
	if g.close != nil {
		g.close()
	}
	return nil
}
