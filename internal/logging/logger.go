package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type LogLevel uint8

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
)

// ParseLevel maps a config string to a level, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "critical", "fatal":
		return LevelCritical
	default:
		return LevelInfo
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelCritical:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

type Options struct {
	Level LogLevel
	// Path is the JSON log file. Empty disables file output.
	Path string
	// JSON switches console output from the human writer to raw JSON.
	JSON bool
	// Console may be nil to log to the file only.
	Console io.Writer
}

type Logger struct {
	zl   zerolog.Logger
	file *AsyncWriter
}

func NewLogger(opts Options) (*Logger, error) {
	var writers []io.Writer

	if opts.Console != nil {
		if opts.JSON {
			writers = append(writers, opts.Console)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{Out: opts.Console, TimeFormat: time.RFC3339})
		}
	}

	l := &Logger{}
	if opts.Path != "" {
		rotateIfNeeded(opts.Path, DefaultRotation)
		aw, err := NewAsyncWriter(opts.Path, 10000)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.file = aw
		writers = append(writers, aw)
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	l.zl = zerolog.New(out).Level(opts.Level.zerolog()).With().Timestamp().Logger()
	return l, nil
}

// Zerolog exposes the underlying logger for structured call sites.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	var ev *zerolog.Event
	switch level {
	case LevelDebug:
		ev = l.zl.Debug()
	case LevelInfo:
		ev = l.zl.Info()
	case LevelWarn:
		ev = l.zl.Warn()
	case LevelError:
		ev = l.zl.Error()
	default:
		// Critical is logged at error severity with a marker; it never exits.
		ev = l.zl.WithLevel(zerolog.ErrorLevel).Bool("critical", true)
	}
	ev.Msgf(format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

func (l *Logger) Critical(format string, args ...interface{}) {
	l.log(LevelCritical, format, args...)
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

var GlobalLogger *Logger

func InitGlobalLogger(opts Options) error {
	logger, err := NewLogger(opts)
	if err != nil {
		return err
	}
	GlobalLogger = logger
	return nil
}

// InitConsole installs a stdout-only logger, used before config is loaded.
func InitConsole(level LogLevel) {
	GlobalLogger, _ = NewLogger(Options{Level: level, Console: os.Stdout})
}

func Debug(format string, args ...interface{}) {
	if GlobalLogger != nil {
		GlobalLogger.Debug(format, args...)
	}
}

func Info(format string, args ...interface{}) {
	if GlobalLogger != nil {
		GlobalLogger.Info(format, args...)
	}
}

func Warn(format string, args ...interface{}) {
	if GlobalLogger != nil {
		GlobalLogger.Warn(format, args...)
	}
}

func Error(format string, args ...interface{}) {
	if GlobalLogger != nil {
		GlobalLogger.Error(format, args...)
	}
}

func Critical(format string, args ...interface{}) {
	if GlobalLogger != nil {
		GlobalLogger.Critical(format, args...)
	}
}

func Close() error {
	if GlobalLogger != nil {
		return GlobalLogger.Close()
	}
	return nil
}
