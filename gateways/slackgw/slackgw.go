// Package slackgw delivers alerts to Slack incoming webhooks
package slackgw

import (
	"context"
	"errors"

	"github.com/slack-go/slack"

	"github.com/flapjack/flapjack/config"
	"github.com/flapjack/flapjack/data"
	"github.com/flapjack/flapjack/gateways/base"
	"github.com/flapjack/flapjack/log"
)

var errMissingURL = errors.New("slackgw: webhook url unset")

// Slack posts alert messages to an incoming webhook; the alert address can
// override the configured webhook per medium
type Slack struct {
	url string

	// post is swapped out by tests
	post func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

// New validates the gateway block and returns a transport
func New(cfg config.GatewayConfig) (*Slack, error) {
	if cfg.URL == "" {
		return nil, errMissingURL
	}
	return &Slack{
		url:  cfg.URL,
		post: slack.PostWebhookContext,
	}, nil
}

// Name implements base.Gateway
func (s *Slack) Name() string { return "slack" }

// Deliver implements base.Gateway
func (s *Slack) Deliver(ctx context.Context, alert *data.Alert) base.Outcome {
	url := s.url
	if alert.Address != "" {
		url = alert.Address
	}
	err := s.post(ctx, url, &slack.WebhookMessage{
		Text: base.Subject(alert),
		Attachments: []slack.Attachment{{
			Color: colorFor(alert),
			Text:  base.Body(alert),
		}},
	})
	if err == nil {
		return base.Delivered
	}
	log.Warnf(log.GatewayMgr, "Slack: delivery failed: %v", err)

	var statusErr slack.StatusCodeError
	if errors.As(err, &statusErr) {
		return base.ClassifyStatus(statusErr.Code)
	}
	return base.TransientFailure
}

func colorFor(alert *data.Alert) string {
	switch {
	case alert.Type == data.NotificationRecovery:
		return "good"
	case alert.Condition == data.ConditionCritical:
		return "danger"
	case alert.Condition == data.ConditionWarning:
		return "warning"
	default:
		return ""
	}
}
