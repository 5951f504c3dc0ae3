// Package pagerduty delivers alerts to the PagerDuty Events API v2
package pagerduty

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/flapjack/flapjack/config"
	"github.com/flapjack/flapjack/data"
	"github.com/flapjack/flapjack/gateways/base"
	"github.com/flapjack/flapjack/log"
)

const eventsURL = "https://events.pagerduty.com/v2/enqueue"

var errMissingRoutingKey = errors.New("pagerduty: api key unset")

// PagerDuty triggers, acknowledges and resolves incidents keyed by check id
type PagerDuty struct {
	url        string
	routingKey string
	client     *http.Client
}

type eventPayload struct {
	RoutingKey  string `json:"routing_key"`
	EventAction string `json:"event_action"`
	DedupKey    string `json:"dedup_key"`
	Payload     struct {
		Summary  string `json:"summary"`
		Source   string `json:"source"`
		Severity string `json:"severity"`
		Details  string `json:"custom_details,omitempty"`
	} `json:"payload"`
}

// New validates the gateway block and returns a transport
func New(cfg config.GatewayConfig) (*PagerDuty, error) {
	key := cfg.APIKey
	if key == "" {
		return nil, errMissingRoutingKey
	}
	url := cfg.URL
	if url == "" {
		url = eventsURL
	}
	return &PagerDuty{
		url:        url,
		routingKey: key,
		client:     http.DefaultClient,
	}, nil
}

// Name implements base.Gateway
func (p *PagerDuty) Name() string { return "pagerduty" }

// Deliver implements base.Gateway
func (p *PagerDuty) Deliver(ctx context.Context, alert *data.Alert) base.Outcome {
	var ev eventPayload
	ev.RoutingKey = p.routingKey
	if alert.Address != "" {
		// per-medium integration keys override the gateway default
		ev.RoutingKey = alert.Address
	}
	ev.DedupKey = alert.CheckID
	ev.Payload.Summary = base.Subject(alert)
	ev.Payload.Source = alert.CheckName
	ev.Payload.Details = alert.Details

	switch alert.Type {
	case data.NotificationRecovery:
		ev.EventAction = "resolve"
		ev.Payload.Severity = "info"
	case data.NotificationAcknowledgement:
		ev.EventAction = "acknowledge"
		ev.Payload.Severity = "info"
	default:
		ev.EventAction = "trigger"
		ev.Payload.Severity = pdSeverity(alert.Condition)
	}

	body, err := json.Marshal(&ev)
	if err != nil {
		return base.PermanentFailure
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return base.PermanentFailure
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		log.Warnf(log.GatewayMgr, "PagerDuty: delivery failed: %v", err)
		return base.TransientFailure
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return base.ClassifyStatus(resp.StatusCode)
}

func pdSeverity(c data.Condition) string {
	switch c {
	case data.ConditionCritical:
		return "critical"
	case data.ConditionWarning:
		return "warning"
	default:
		return "error"
	}
}
