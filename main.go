package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/flapjack/flapjack/config"
	"github.com/flapjack/flapjack/engine"
	"github.com/flapjack/flapjack/log"
	"github.com/flapjack/flapjack/signaler"
)

// Process exit codes
const (
	exitOK               = 0
	exitConfigError      = 1
	exitStoreUnavailable = 2
	exitUsage            = 64
)

func main() {
	fs := flag.NewFlagSet("flapjack", flag.ContinueOnError)
	configFile := fs.String("config", "flapjack.json", "path to the configuration file")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(exitUsage)
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "unexpected arguments: %v\n", fs.Args())
		fs.Usage()
		os.Exit(exitUsage)
	}

	cfg, err := config.ReadConfigFromFile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to load config: %v\n", err)
		os.Exit(exitConfigError)
	}
	if err := log.SetupGlobalLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "unable to set up logger: %v\n", err)
		os.Exit(exitConfigError)
	}

	e, err := engine.New(cfg)
	if err != nil {
		log.Errorf(log.Global, "Unable to initialise engine: %v", err)
		if errors.Is(err, engine.ErrStoreUnavailable) {
			os.Exit(exitStoreUnavailable)
		}
		os.Exit(exitConfigError)
	}
	if err := e.Start(); err != nil {
		log.Errorf(log.Global, "Unable to start engine: %v", err)
		os.Exit(exitConfigError)
	}

	interrupt := signaler.WaitForInterrupt()
	sig := <-interrupt
	log.Infof(log.Global, "Captured %v, shutdown requested.", sig)
	e.Stop()
	log.Infof(log.Global, "Exiting.")
	os.Exit(exitOK)
}
