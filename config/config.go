package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ReadConfigFromFile loads, decodes and validates a configuration file
func ReadConfigFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: cannot parse %s: %w", path, err)
	}
	if err := cfg.CheckConfig(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CheckConfig fills defaults and rejects values the pipeline cannot run with
func (c *Config) CheckConfig() error {
	if c.Redis.Address == "" {
		c.Redis.Address = "localhost:6379"
	}

	if c.Processor.EventQueue == "" {
		c.Processor.EventQueue = DefaultEventQueue
	}
	if c.Processor.InitialFailureDelay < 0 {
		return fmt.Errorf("%w: processor.initial_failure_delay %d",
			errInvalidValue, c.Processor.InitialFailureDelay)
	}
	if c.Processor.RepeatFailureDelay == 0 {
		c.Processor.RepeatFailureDelay = DefaultRepeatFailureDelay
	}
	if c.Processor.RepeatFailureDelay < 0 {
		return fmt.Errorf("%w: processor.repeat_failure_delay %d",
			errInvalidValue, c.Processor.RepeatFailureDelay)
	}
	if c.Processor.NewCheckScheduledMaintenanceDuration < 0 {
		return fmt.Errorf("%w: processor.new_check_scheduled_maintenance_duration %d",
			errInvalidValue, c.Processor.NewCheckScheduledMaintenanceDuration)
	}

	if c.Notifier.MaxAttempts == 0 {
		c.Notifier.MaxAttempts = DefaultMaxAttempts
	}
	if c.Notifier.MaxAttempts < 0 {
		return fmt.Errorf("%w: notifier.max_attempts %d", errInvalidValue, c.Notifier.MaxAttempts)
	}
	if c.Notifier.MaxBackoff == 0 {
		c.Notifier.MaxBackoff = DefaultMaxBackoff
	}
	if c.Notifier.ShutdownGrace == 0 {
		c.Notifier.ShutdownGrace = DefaultShutdownGrace
	}

	for name, gw := range c.Gateways {
		if !gw.Enabled {
			continue
		}
		if gw.Queue == "" {
			gw.Queue = "alerts." + name
		}
		if gw.Timeout == 0 {
			gw.Timeout = DefaultGatewayTimeout
		}
		if gw.Workers == 0 {
			gw.Workers = DefaultGatewayWorkers
		}
		c.Gateways[name] = gw
	}

	if c.APIServer.ListenAddress == "" {
		c.APIServer.ListenAddress = DefaultAPIListenAddress
	}
	return nil
}

// EnabledGateways returns the gateway blocks that are switched on
func (c *Config) EnabledGateways() map[string]GatewayConfig {
	out := make(map[string]GatewayConfig)
	for name, gw := range c.Gateways {
		if gw.Enabled {
			out[name] = gw
		}
	}
	return out
}
