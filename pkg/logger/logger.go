package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LogMode selects the output format and level of the global logger
type LogMode string

const (
	LogModeDebug  LogMode = "debug"
	LogModePretty LogMode = "pretty"
	LogModeInfo   LogMode = "info"
	LogModeProd   LogMode = "prod"
	LogModeTest   LogMode = "test"
)

var log = zerolog.Nop()

// ParseMode maps a --log flag value to a LogMode, falling back to pretty
func ParseMode(s string) LogMode {
	switch LogMode(s) {
	case LogModeDebug, LogModePretty, LogModeInfo, LogModeProd, LogModeTest:
		return LogMode(s)
	default:
		return LogModePretty
	}
}

func Init() {
	InitWithMode(LogModePretty)
}

func InitWithMode(mode LogMode) {
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = consoleWriter(os.Stdout)
	level := zerolog.DebugLevel

	switch mode {
	case LogModeInfo:
		level = zerolog.InfoLevel
	case LogModeProd:
		out = os.Stdout
		level = zerolog.InfoLevel
	case LogModeTest:
		out = io.Discard
		level = zerolog.Disabled
	}

	zerolog.SetGlobalLevel(level)
	log = zerolog.New(out).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02 15:04:05",
		FormatLevel: func(i interface{}) string {
			s, _ := i.(string)
			return colorizeLevel(s)
		},
		FormatMessage: func(i interface{}) string {
			s, _ := i.(string)
			return colorize(s, cyan)
		},
		FormatFieldName: func(i interface{}) string {
			return colorize(fmt.Sprint(i)+":", gray)
		},
		FormatFieldValue: func(i interface{}) string {
			switch v := i.(type) {
			case string:
				return colorize(v, blue)
			case json.Number:
				return colorize(v.String(), blue)
			default:
				return colorize(fmt.Sprint(v), blue)
			}
		},
	}
}

// ANSI color codes
const (
	gray  = "\x1b[37m"
	blue  = "\x1b[34m"
	cyan  = "\x1b[36m"
	red   = "\x1b[31m"
	reset = "\x1b[0m"
)

func colorize(s, color string) string {
	return color + s + reset
}

func colorizeLevel(level string) string {
	switch level {
	case "debug":
		return colorize("DBG", gray)
	case "info":
		return colorize("INF", blue)
	case "warn":
		return colorize("WRN", cyan)
	case "error":
		return colorize("ERR", red)
	case "fatal":
		return colorize("FTL", red)
	default:
		return colorize(level, blue)
	}
}

// Get returns the logger instance
func Get() zerolog.Logger {
	return log
}

// WithComponent returns a child logger tagged with the component name
func WithComponent(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
