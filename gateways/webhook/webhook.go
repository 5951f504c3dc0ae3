// Package webhook delivers alerts as JSON POSTs to arbitrary endpoints; it
// also backs the sns and jabber medium types via bridge endpoints
package webhook

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

var errMissingEndpoint = errors.New("webhook: endpoint url unset")

// Webhook posts the full alert record to an HTTP endpoint
type Webhook struct {
	name   string
	url    string
	apiKey string
	client *http.Client
}

// New validates the gateway block and returns a transport. The endpoint may
// be left unset when every medium address carries its own URL.
func New(name string, cfg config.GatewayConfig) (*Webhook, error) {
	return &Webhook{
		name:   name,
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: http.DefaultClient,
	}, nil
}

// Name implements base.Gateway
func (w *Webhook) Name() string { return w.name }

type payload struct {
	*data.Alert
	Text string `json:"text"`
}

// Deliver implements base.Gateway
func (w *Webhook) Deliver(ctx context.Context, alert *data.Alert) base.Outcome {
	endpoint := w.url
	if alert.Address != "" {
		endpoint = alert.Address
	}
	if endpoint == "" {
		log.Errorf(log.GatewayMgr, "Webhook: alert %s has no endpoint", alert.ID)
		return base.PermanentFailure
	}

	body, err := json.Marshal(&payload{Alert: alert, Text: base.Subject(alert)})
	if err != nil {
		return base.PermanentFailure
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return base.PermanentFailure
	}
	req.Header.Set("Content-Type", "application/json")
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		log.Warnf(log.GatewayMgr, "Webhook: delivery to %s failed: %v", endpoint, err)
		return base.TransientFailure
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return base.ClassifyStatus(resp.StatusCode)
}
