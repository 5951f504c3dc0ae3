// Package subsystem holds the shared lifecycle errors and log messages used
// by every flapjack manager
package subsystem

import "errors"

const (
	// MsgStarting message to return when a subsystem is starting up
	MsgStarting = "starting..."
	// MsgStarted message to return when a subsystem has started
	MsgStarted = "started."
	// MsgShuttingDown message to return when a subsystem is shutting down
	MsgShuttingDown = "shutting down..."
	// MsgShutdown message to return when a subsystem has shutdown
	MsgShutdown = "shutdown."
)

var (
	// ErrAlreadyStarted is returned when a subsystem is already started
	ErrAlreadyStarted = errors.New("subsystem already started")
	// ErrNotStarted is returned when a subsystem has not been started
	ErrNotStarted = errors.New("subsystem not started")
	// ErrNil is returned when a subsystem hasn't had its Setup() func run
	ErrNil = errors.New("subsystem not setup")
	// ErrNilConfig is returned when a Setup() func receives a nil config
	ErrNilConfig = errors.New("received nil config")
	// ErrNilStore is returned when a Setup() func receives a nil store
	ErrNilStore = errors.New("received nil store")
)
