package log

import (
	"fmt"
	"strings"
	"time"
)

const defaultLevels = "INFO|WARN|ERROR"

// SetupGlobalLogger applies a logging config across all registered sub
// loggers, then applies any per-sublogger overrides
func SetupGlobalLogger(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("logger %w", errNilConfig)
	}
	mu.Lock()
	defer mu.Unlock()

	base := cfg.Level
	if base == "" {
		base = defaultLevels
	}
	enabled := cfg.Enabled == nil || *cfg.Enabled
	for _, sl := range subLoggers {
		if !enabled {
			sl.levels = Levels{}
			continue
		}
		sl.levels = splitLevel(base)
	}
	for i := range cfg.SubLoggers {
		sl, ok := subLoggers[strings.ToUpper(cfg.SubLoggers[i].Name)]
		if !ok {
			return fmt.Errorf("%w: %q", errUnknownSubLogger, cfg.SubLoggers[i].Name)
		}
		sl.levels = splitLevel(cfg.SubLoggers[i].Level)
	}
	return nil
}

func splitLevel(level string) Levels {
	var l Levels
	for _, seg := range strings.Split(strings.ToUpper(level), "|") {
		switch seg {
		case "DEBUG":
			l.Debug = true
		case "INFO":
			l.Info = true
		case "WARN":
			l.Warn = true
		case "ERROR":
			l.Error = true
		}
	}
	return l
}

func (sl *SubLogger) stage(header, msg string) {
	fmt.Fprintf(sl.output, "%s%s%s%s%s%s%s\n",
		time.Now().Format(logger.Timestamp),
		logger.Spacer,
		sl.name,
		logger.Spacer,
		header,
		logger.Spacer,
		msg)
}
