package log

import (
	"errors"
	"fmt"
)

var (
	errNilConfig        = errors.New("nil config received")
	errUnknownSubLogger = errors.New("unknown sub logger")
)

// Infoln takes a pointer sub logger and writes an info line
func Infoln(sl *SubLogger, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if sl == nil || !sl.levels.Info {
		return
	}
	sl.stage(logger.InfoHeader, fmt.Sprint(v...))
}

// Infof takes a pointer sub logger, a format string and args and writes an
// info line
func Infof(sl *SubLogger, format string, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if sl == nil || !sl.levels.Info {
		return
	}
	sl.stage(logger.InfoHeader, fmt.Sprintf(format, v...))
}

// Debugln takes a pointer sub logger and writes a debug line
func Debugln(sl *SubLogger, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if sl == nil || !sl.levels.Debug {
		return
	}
	sl.stage(logger.DebugHeader, fmt.Sprint(v...))
}

// Debugf takes a pointer sub logger, a format string and args and writes a
// debug line
func Debugf(sl *SubLogger, format string, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if sl == nil || !sl.levels.Debug {
		return
	}
	sl.stage(logger.DebugHeader, fmt.Sprintf(format, v...))
}

// Warnln takes a pointer sub logger and writes a warning line
func Warnln(sl *SubLogger, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if sl == nil || !sl.levels.Warn {
		return
	}
	sl.stage(logger.WarnHeader, fmt.Sprint(v...))
}

// Warnf takes a pointer sub logger, a format string and args and writes a
// warning line
func Warnf(sl *SubLogger, format string, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if sl == nil || !sl.levels.Warn {
		return
	}
	sl.stage(logger.WarnHeader, fmt.Sprintf(format, v...))
}

// Errorln takes a pointer sub logger and writes an error line
func Errorln(sl *SubLogger, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if sl == nil || !sl.levels.Error {
		return
	}
	sl.stage(logger.ErrorHeader, fmt.Sprint(v...))
}

// Errorf takes a pointer sub logger, a format string and args and writes an
// error line
func Errorf(sl *SubLogger, format string, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if sl == nil || !sl.levels.Error {
		return
	}
	sl.stage(logger.ErrorHeader, fmt.Sprintf(format, v...))
}
