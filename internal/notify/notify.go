// Package notify delivers account notifications (welcome mail, recovery OTP)
// over a pluggable gateway: SMTP, an MQTT topic, or the log.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// ErrDelivery wraps every transport failure returned by a Gateway.
var ErrDelivery = errors.New("notification delivery failed")

// Gateway sends one message to one recipient.
type Gateway interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Message is a queued notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier accepts a message for later delivery.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

const (
	TransportSMTP = "smtp"
	TransportMQTT = "mqtt"
	TransportLog  = "log"
)

type Config struct {
	Transport string `env:"NOTIFY_TRANSPORT" envDefault:"log"`
	Workers   int    `env:"NOTIFY_WORKERS" envDefault:"2"`
	QueueSize int    `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`
	SMTP      SMTPConfig
	MQTT      MQTTConfig
}

// NewGateway builds the gateway selected by cfg.Transport. The returned
// closer releases transport resources and is never nil.
func NewGateway(cfg Config, logger *zap.SugaredLogger) (Gateway, io.Closer, error) {
	switch cfg.Transport {
	case TransportSMTP:
		return NewSMTPGateway(cfg.SMTP), nopCloser{}, nil
	case TransportMQTT:
		gw, err := DialMQTT(cfg.MQTT)
		if err != nil {
			return nil, nil, err
		}
		return gw, gw, nil
	case TransportLog, "":
		return NewLogGateway(logger), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown notification transport %q", cfg.Transport)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
