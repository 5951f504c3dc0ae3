// Package engine wires the store, the pipeline managers and the admin
// server into one runnable flapjack instance
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flapjack/flapjack/config"
	"github.com/flapjack/flapjack/gateways"
	"github.com/flapjack/flapjack/log"
	"github.com/flapjack/flapjack/maintenance"
	"github.com/flapjack/flapjack/notifier"
	"github.com/flapjack/flapjack/processor"
	"github.com/flapjack/flapjack/store/redisdb"
)

// ErrStoreUnavailable wraps a failed store connection at startup so the
// process wrapper can map it to its own exit code
var ErrStoreUnavailable = errors.New("store unavailable")

// connectTimeout bounds the startup store ping
const connectTimeout = 10 * time.Second

// Engine is the overarching type across this code base
type Engine struct {
	Config      *config.Config
	Store       *redisdb.DB
	Maintenance *maintenance.Manager
	Processor   *processor.Manager
	Notifier    *notifier.Manager
	APIServer   *APIServer

	Uptime time.Time
}

// New connects the store and constructs every subsystem from the supplied
// configuration; nothing is started yet
func New(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine: nil config received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	db, err := redisdb.Connect(ctx, &cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e := &Engine{Config: cfg, Store: db}

	e.Maintenance, err = maintenance.Setup(db)
	if err != nil {
		return nil, err
	}
	e.Processor, err = processor.Setup(cfg, db, db, e.Maintenance)
	if err != nil {
		return nil, err
	}

	gws, err := gateways.NewGateways(cfg.Gateways)
	if err != nil {
		return nil, err
	}
	e.Notifier, err = notifier.Setup(cfg, db, db, gws)
	if err != nil {
		return nil, err
	}

	if cfg.APIServer.Enabled == nil || *cfg.APIServer.Enabled {
		e.APIServer, err = SetupAPIServer(cfg, e)
		if err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Start brings every subsystem up; a failed subsystem rolls the rest back
func (e *Engine) Start() error {
	if e == nil {
		return errors.New("engine: not initialised")
	}
	log.Infof(log.Global, "Engine starting...")
	e.Uptime = time.Now()

	if err := e.Processor.Start(); err != nil {
		return err
	}
	if err := e.Notifier.Start(); err != nil {
		_ = e.Processor.Stop()
		return err
	}
	if e.APIServer != nil {
		if err := e.APIServer.Start(); err != nil {
			_ = e.Notifier.Stop()
			_ = e.Processor.Stop()
			return err
		}
	}
	log.Infof(log.Global, "Engine started.")
	return nil
}

// Stop winds the subsystems down in reverse start order
func (e *Engine) Stop() {
	if e == nil {
		return
	}
	log.Infof(log.Global, "Engine shutting down...")
	if e.APIServer != nil && e.APIServer.IsRunning() {
		if err := e.APIServer.Stop(); err != nil {
			log.Errorf(log.Global, "API server stop failed: %v", err)
		}
	}
	if e.Notifier.IsRunning() {
		if err := e.Notifier.Stop(); err != nil {
			log.Errorf(log.Global, "Notifier stop failed: %v", err)
		}
	}
	if e.Processor.IsRunning() {
		if err := e.Processor.Stop(); err != nil {
			log.Errorf(log.Global, "Processor stop failed: %v", err)
		}
	}
	if err := e.Store.Close(); err != nil {
		log.Errorf(log.Global, "Store close failed: %v", err)
	}
	log.Infof(log.Global, "Engine shutdown.")
}
