package smtpservice

import (
	"context"
	"errors"
	"net/smtp"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flapjack/flapjack/config"
	"github.com/flapjack/flapjack/data"
	"github.com/flapjack/flapjack/gateways/base"
)

func testAlert() *data.Alert {
	return &data.Alert{
		ID:        "a1",
		CheckName: "web1:http",
		Address:   "oncall@example.com",
		Type:      data.NotificationProblem,
		Condition: data.ConditionCritical,
		Summary:   "connection refused",
		Details:   "probe from syd1",
	}
}

func TestNew(t *testing.T) {
	t.Parallel()
	_, err := New(config.GatewayConfig{})
	assert.ErrorIs(t, err, errMissingServer)

	s, err := New(config.GatewayConfig{Server: "mail.example.com"})
	require.NoError(t, err)
	assert.Equal(t, 25, s.port)
	assert.Equal(t, "flapjack@localhost", s.from)
}

func TestDeliver(t *testing.T) {
	t.Parallel()
	s, err := New(config.GatewayConfig{Server: "mail.example.com", From: "alerts@example.com"})
	require.NoError(t, err)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	outcome := s.Deliver(context.Background(), testAlert())
	assert.Equal(t, base.Delivered, outcome)
	assert.Equal(t, "mail.example.com:25", gotAddr)
	assert.Equal(t, "alerts@example.com", gotFrom)
	assert.Equal(t, []string{"oncall@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: ALERT web1:http is critical: connection refused")
	assert.Contains(t, string(gotMsg), "probe from syd1")
}

func TestDeliverClassification(t *testing.T) {
	t.Parallel()
	s, err := New(config.GatewayConfig{Server: "mail.example.com"})
	require.NoError(t, err)

	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return &textproto.Error{Code: 450, Msg: "mailbox busy"}
	}
	assert.Equal(t, base.TransientFailure, s.Deliver(context.Background(), testAlert()))

	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return &textproto.Error{Code: 550, Msg: "no such user"}
	}
	assert.Equal(t, base.PermanentFailure, s.Deliver(context.Background(), testAlert()))

	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("dial tcp: connection refused")
	}
	assert.Equal(t, base.TransientFailure, s.Deliver(context.Background(), testAlert()))
}
