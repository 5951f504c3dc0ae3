// Package smsservice delivers alerts over SMS vendor HTTP APIs
package smsservice

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/flapjack/flapjack/config"
	"github.com/flapjack/flapjack/data"
	"github.com/flapjack/flapjack/gateways/base"
	"github.com/flapjack/flapjack/log"
)

// maxMessageLength truncates the rendered text to a single concatenated SMS
const maxMessageLength = 159

var errMissingVendorURL = errors.New("smsservice: vendor url unset")

// SMS posts alert texts to a vendor's send endpoint. The same transport
// serves the plain sms and sms_nexmo medium types; the vendor endpoint and
// credential fields come from the gateway block.
type SMS struct {
	name      string
	vendorURL string
	username  string
	apiKey    string
	apiSecret string
	from      string
	client    *http.Client
}

// New validates the gateway block and returns a transport
func New(name string, cfg config.GatewayConfig) (*SMS, error) {
	if cfg.URL == "" {
		return nil, errMissingVendorURL
	}
	return &SMS{
		name:      name,
		vendorURL: cfg.URL,
		username:  cfg.Username,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		from:      cfg.From,
		client:    http.DefaultClient,
	}, nil
}

// Name implements base.Gateway
func (s *SMS) Name() string { return s.name }

// Deliver implements base.Gateway
func (s *SMS) Deliver(ctx context.Context, alert *data.Alert) base.Outcome {
	text := base.Subject(alert)
	if len(text) > maxMessageLength {
		text = text[:maxMessageLength]
	}

	form := url.Values{}
	form.Set("to", alert.Address)
	form.Set("text", text)
	if s.from != "" {
		form.Set("from", s.from)
	}
	if s.username != "" {
		form.Set("user", s.username)
	}
	if s.apiKey != "" {
		form.Set("api_key", s.apiKey)
	}
	if s.apiSecret != "" {
		form.Set("api_secret", s.apiSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.vendorURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return base.PermanentFailure
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Warnf(log.GatewayMgr, "SMS: delivery to %s failed: %v", alert.Address, err)
		return base.TransientFailure
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return base.ClassifyStatus(resp.StatusCode)
}
