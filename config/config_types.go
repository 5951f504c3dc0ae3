// Package config loads and validates the flapjack configuration file
package config

import (
	"errors"

	"github.com/flapjack/flapjack/log"
	"github.com/flapjack/flapjack/store/redisdb"
)

// Default values applied by CheckConfig
const (
	DefaultEventQueue = "events"

	DefaultRepeatFailureDelay = 300

	DefaultMaxAttempts    = 3
	DefaultMaxBackoff     = 60
	DefaultShutdownGrace  = 10
	DefaultGatewayTimeout = 30
	DefaultGatewayWorkers = 4

	DefaultAPIListenAddress = "localhost:3081"
)

var (
	// ErrNoGatewaysEnabled is returned when every gateway block is
	// disabled or absent
	ErrNoGatewaysEnabled = errors.New("no gateways enabled")
	errInvalidValue      = errors.New("invalid config value")
)

// Config is the full contents of the flapjack configuration file
type Config struct {
	Redis     redisdb.Config           `json:"redis"`
	Logging   log.Config               `json:"logging"`
	Processor ProcessorConfig          `json:"processor"`
	Notifier  NotifierConfig           `json:"notifier"`
	Gateways  map[string]GatewayConfig `json:"gateways"`
	APIServer APIServerConfig          `json:"api_server"`
}

// ProcessorConfig drives the event receiver and check processor
type ProcessorConfig struct {
	// EventQueue is the inbound queue name events are pulled from
	EventQueue string `json:"event_queue,omitempty"`

	// InitialFailureDelay is the fallback hold-down in seconds applied to
	// checks without their own setting
	InitialFailureDelay int `json:"initial_failure_delay"`

	// RepeatFailureDelay is the fallback throttle in seconds between
	// repeat problem notifications
	RepeatFailureDelay int `json:"repeat_failure_delay"`

	// NewCheckScheduledMaintenanceDuration opens a scheduled maintenance
	// window of this many seconds over every auto-created check
	NewCheckScheduledMaintenanceDuration int `json:"new_check_scheduled_maintenance_duration"`

	// AutoCreateChecks creates checks named by unrecognised events;
	// events for unknown checks are dropped when disabled
	AutoCreateChecks bool `json:"auto_create_checks"`
}

// NotifierConfig drives the route resolver and alert dispatcher
type NotifierConfig struct {
	// MaxAttempts is the per-alert retry cap
	MaxAttempts int `json:"max_attempts"`

	// MaxBackoff caps the exponential retry delay, in seconds
	MaxBackoff int `json:"max_backoff"`

	// ShutdownGrace is how long in-flight handler calls are given on
	// shutdown, in seconds
	ShutdownGrace int `json:"shutdown_grace"`
}

// GatewayConfig configures one outbound medium gateway
type GatewayConfig struct {
	Enabled bool `json:"enabled"`

	// Queue is the outbound queue name; defaults to "alerts.<medium>"
	Queue string `json:"queue,omitempty"`

	// Timeout bounds a single handler delivery call, in seconds
	Timeout int `json:"timeout,omitempty"`

	// Workers sizes the medium's dispatch pool
	Workers int `json:"workers,omitempty"`

	// RateLimit caps deliveries per second; zero means unlimited
	RateLimit float64 `json:"rate_limit,omitempty"`

	// Transport settings; which of these apply depends on the medium
	Server    string `json:"server,omitempty"`
	Port      int    `json:"port,omitempty"`
	From      string `json:"from,omitempty"`
	URL       string `json:"url,omitempty"`
	Username  string `json:"username,omitempty"`
	APIKey    string `json:"api_key,omitempty"`
	APISecret string `json:"api_secret,omitempty"`
}

// APIServerConfig configures the administrative control surface
type APIServerConfig struct {
	Enabled       *bool  `json:"enabled,omitempty"`
	ListenAddress string `json:"listen_address,omitempty"`
}
