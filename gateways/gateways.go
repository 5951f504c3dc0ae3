// Package gateways holds the delivery contract between the alert dispatcher
// and the per-medium transports, and the registry wiring configured
// transports to medium types
package gateways

import (
	"fmt"

	"github.com/flapjack/flapjack/config"
	"github.com/flapjack/flapjack/data"
	"github.com/flapjack/flapjack/gateways/base"
	"github.com/flapjack/flapjack/gateways/pagerduty"
	"github.com/flapjack/flapjack/gateways/slackgw"
	"github.com/flapjack/flapjack/gateways/smsservice"
	"github.com/flapjack/flapjack/gateways/smtpservice"
	"github.com/flapjack/flapjack/gateways/webhook"
)

// NewGateways builds a transport per enabled gateway block, keyed by the
// medium type it serves
func NewGateways(cfgs map[string]config.GatewayConfig) (map[data.MediumType]base.Gateway, error) {
	out := make(map[data.MediumType]base.Gateway)
	for name, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		var gw base.Gateway
		var err error
		switch data.MediumType(name) {
		case data.MediumEmail:
			gw, err = smtpservice.New(cfg)
		case data.MediumSlack:
			gw, err = slackgw.New(cfg)
		case data.MediumPagerDuty:
			gw, err = pagerduty.New(cfg)
		case data.MediumSMS, data.MediumSMSNexmo:
			gw, err = smsservice.New(name, cfg)
		case data.MediumWebhook, data.MediumSNS, data.MediumJabber:
			// SNS and jabber deliveries go through bridge endpoints
			// speaking plain JSON webhooks
			gw, err = webhook.New(name, cfg)
		default:
			return nil, fmt.Errorf("%w: %q", base.ErrUnknownGateway, name)
		}
		if err != nil {
			return nil, err
		}
		out[data.MediumType(name)] = gw
	}
	if len(out) == 0 {
		return nil, config.ErrNoGatewaysEnabled
	}
	return out, nil
}
