// Package smtpservice delivers email alerts over SMTP
package smtpservice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/flapjack/flapjack/config"
	"github.com/flapjack/flapjack/data"
	"github.com/flapjack/flapjack/gateways/base"
	"github.com/flapjack/flapjack/log"
)

var errMissingServer = errors.New("smtpservice: server unset")

// SMTPService posts alert emails to a relay
type SMTPService struct {
	host string
	port int
	from string
	auth smtp.Auth

	// sendMail is swapped out by tests
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New validates the gateway block and returns a transport
func New(cfg config.GatewayConfig) (*SMTPService, error) {
	if cfg.Server == "" {
		return nil, errMissingServer
	}
	port := cfg.Port
	if port == 0 {
		port = 25
	}
	from := cfg.From
	if from == "" {
		from = "flapjack@localhost"
	}
	s := &SMTPService{
		host:     cfg.Server,
		port:     port,
		from:     from,
		sendMail: smtp.SendMail,
	}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.APISecret, cfg.Server)
	}
	return s, nil
}

// Name implements base.Gateway
func (s *SMTPService) Name() string { return "email" }

// Deliver implements base.Gateway
func (s *SMTPService) Deliver(_ context.Context, alert *data.Alert) base.Outcome {
	msg := s.buildMessage(alert)
	err := s.sendMail(fmt.Sprintf("%s:%d", s.host, s.port), s.auth, s.from, []string{alert.Address}, msg)
	if err == nil {
		return base.Delivered
	}
	log.Warnf(log.GatewayMgr, "SMTP: delivery to %s failed: %v", alert.Address, err)

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		// 4xx SMTP replies are temporary by definition
		if protoErr.Code >= 400 && protoErr.Code < 500 {
			return base.TransientFailure
		}
		return base.PermanentFailure
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return base.TransientFailure
	}
	return base.TransientFailure
}

func (s *SMTPService) buildMessage(alert *data.Alert) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", alert.Address)
	fmt.Fprintf(&b, "Subject: %s\r\n", base.Subject(alert))
	b.WriteString("\r\n")
	b.WriteString(base.Body(alert))
	return []byte(b.String())
}
