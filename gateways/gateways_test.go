package gateways

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flapjack/flapjack/config"
	"github.com/flapjack/flapjack/data"
	"github.com/flapjack/flapjack/gateways/base"
)

func TestNewGateways(t *testing.T) {
	t.Parallel()
	_, err := NewGateways(map[string]config.GatewayConfig{})
	assert.ErrorIs(t, err, config.ErrNoGatewaysEnabled)

	_, err = NewGateways(map[string]config.GatewayConfig{
		"carrier_pigeon": {Enabled: true},
	})
	assert.ErrorIs(t, err, base.ErrUnknownGateway)

	gws, err := NewGateways(map[string]config.GatewayConfig{
		"email":     {Enabled: true, Server: "mail.example.com"},
		"slack":     {Enabled: true, URL: "https://hooks.slack.example/T000"},
		"pagerduty": {Enabled: true, APIKey: "routing-key"},
		"sms":       {Enabled: true, URL: "https://sms.example.com/send"},
		"webhook":   {Enabled: true, URL: "https://ops.example.com/hook"},
		"jabber":    {Enabled: false},
	})
	require.NoError(t, err)
	require.Len(t, gws, 5)
	assert.Equal(t, "email", gws[data.MediumEmail].Name())
	assert.Equal(t, "sms", gws[data.MediumSMS].Name())
	assert.NotContains(t, gws, data.MediumJabber)
}

func TestNewGatewaysInvalidBlock(t *testing.T) {
	t.Parallel()
	_, err := NewGateways(map[string]config.GatewayConfig{
		"email": {Enabled: true},
	})
	assert.Error(t, err, "email without a server should not construct")

	_, err = NewGateways(map[string]config.GatewayConfig{
		"pagerduty": {Enabled: true},
	})
	assert.Error(t, err, "pagerduty without a routing key should not construct")
}
