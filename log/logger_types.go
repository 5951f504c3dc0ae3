package log

import (
	"io"
	"os"
	"sync"
)

const (
	timestampFormat = "02/01/2006 15:04:05"
	spacer          = " | "
)

var (
	logger = Logger{
		Timestamp:   timestampFormat,
		Spacer:      spacer,
		InfoHeader:  "[INFO]",
		WarnHeader:  "[WARN]",
		DebugHeader: "[DEBUG]",
		ErrorHeader: "[ERROR]",
	}

	subLoggers = map[string]*SubLogger{}

	// read/write mutex for logger state
	mu = &sync.RWMutex{}
)

// Config holds logger configuration settings loaded from the flapjack config
type Config struct {
	Enabled *bool `json:"enabled"`
	SubLoggerConfig
	SubLoggers []SubLoggerConfig `json:"subloggers,omitempty"`
}

// SubLoggerConfig holds sub logger configuration settings
type SubLoggerConfig struct {
	Name  string `json:"name,omitempty"`
	Level string `json:"level"`
}

// Logger holds the shared formatting settings
type Logger struct {
	Timestamp   string
	Spacer      string
	InfoHeader  string
	WarnHeader  string
	DebugHeader string
	ErrorHeader string
}

// Levels flags for each sub logger type
type Levels struct {
	Info, Debug, Warn, Error bool
}

// SubLogger defines a sub logger that can be shut off from the config without
// affecting the rest of the subsystems
type SubLogger struct {
	name   string
	levels Levels
	output io.Writer
}

func newSubLogger(name string) *SubLogger {
	sl := &SubLogger{
		name:   name,
		levels: splitLevel(defaultLevels),
		output: os.Stdout,
	}
	subLoggers[name] = sl
	return sl
}

// SetLevels overrides the levels for a sub logger
func (sl *SubLogger) SetLevels(l Levels) {
	mu.Lock()
	sl.levels = l
	mu.Unlock()
}

// SetOutput overrides the output writer for a sub logger
func (sl *SubLogger) SetOutput(w io.Writer) {
	mu.Lock()
	sl.output = w
	mu.Unlock()
}
