package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

type SMTPConfig struct {
	Host string `env:"SMTP_HOST" envDefault:"localhost"`
	Port string `env:"SMTP_PORT" envDefault:"587"`
	User string `env:"SMTP_USER"`
	Pass string `env:"SMTP_PASS"`
	From string `env:"SMTP_FROM" envDefault:"no-reply@pitchfork.local"`
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPGateway sends plain-text mail through a relay.
type SMTPGateway struct {
	cfg      SMTPConfig
	sendMail sendMailFunc
}

func NewSMTPGateway(cfg SMTPConfig) *SMTPGateway {
	return &SMTPGateway{cfg: cfg, sendMail: smtp.SendMail}
}

func (g *SMTPGateway) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	if strings.ContainsAny(to+subject, "\r\n") {
		return fmt.Errorf("%w: header contains line break", ErrDelivery)
	}

	var auth smtp.Auth
	if g.cfg.User != "" {
		auth = smtp.PlainAuth("", g.cfg.User, g.cfg.Pass, g.cfg.Host)
	}
	from := g.cfg.From
	if from == "" {
		from = g.cfg.User
	}
	msg := []byte(
		"From: " + from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"Content-Type: text/plain; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body + "\r\n")

	addr := net.JoinHostPort(g.cfg.Host, g.cfg.Port)
	if err := g.sendMail(addr, auth, from, []string{to}, msg); err != nil {
		return fmt.Errorf("%w: smtp %s: %w", ErrDelivery, addr, err)
	}
	return nil
}
