package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flapjack/flapjack/config"
	"github.com/flapjack/flapjack/data"
	"github.com/flapjack/flapjack/gateways/base"
)

func TestDeliver(t *testing.T) {
	t.Parallel()
	var gotAuth string
	var gotBody payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gw, err := New("webhook", config.GatewayConfig{URL: srv.URL, APIKey: "secret"})
	require.NoError(t, err)

	alert := &data.Alert{
		ID:        "a1",
		CheckName: "web1:http",
		Type:      data.NotificationProblem,
		Condition: data.ConditionWarning,
		Summary:   "slow",
	}
	assert.Equal(t, base.Delivered, gw.Deliver(context.Background(), alert))
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "a1", gotBody.ID)
	assert.Contains(t, gotBody.Text, "web1:http")
}

func TestDeliverClassification(t *testing.T) {
	t.Parallel()
	status := http.StatusInternalServerError
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	gw, err := New("webhook", config.GatewayConfig{URL: srv.URL})
	require.NoError(t, err)
	alert := &data.Alert{ID: "a1", Type: data.NotificationProblem}

	assert.Equal(t, base.TransientFailure, gw.Deliver(context.Background(), alert))

	status = http.StatusBadRequest
	assert.Equal(t, base.PermanentFailure, gw.Deliver(context.Background(), alert))

	srv.Close()
	assert.Equal(t, base.TransientFailure, gw.Deliver(context.Background(), alert))
}

func TestDeliverNoEndpoint(t *testing.T) {
	t.Parallel()
	gw, err := New("sns", config.GatewayConfig{})
	require.NoError(t, err)
	alert := &data.Alert{ID: "a1"}
	assert.Equal(t, base.PermanentFailure, gw.Deliver(context.Background(), alert))

	// the medium address supplies the endpoint when the block has none
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	alert.Address = srv.URL
	assert.Equal(t, base.Delivered, gw.Deliver(context.Background(), alert))
}
