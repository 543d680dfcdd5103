/*
The logger package wraps zerolog with the small surface the rest of the
library uses: leveled printf-style methods, named component sub-loggers, and
optional rotating file output. Each connection gets its own component logger
so interleaved connection attempts stay distinguishable in the output.
*/
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type DebugLevel = zerolog.Level

const (
	Debug DebugLevel = zerolog.DebugLevel
	Info  DebugLevel = zerolog.InfoLevel
	Error DebugLevel = zerolog.ErrorLevel
	Trace DebugLevel = zerolog.TraceLevel
)

type Config struct {
	// Minimum level that will be written; defaults to Debug
	LogLevel DebugLevel

	// Path to a log file; empty means no file output
	FilePath string

	// Rotation policy for the log file
	MaxSizeMb  int
	MaxBackups int
	MaxAgeDays int

	// Additional writers, e.g. stdout or a test writer
	ConsoleWriters []io.Writer
}

type Logger struct {
	logger zerolog.Logger
}

func New(config *Config) (*Logger, error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	writers := []io.Writer{}

	if config.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), os.ModePerm); err != nil {
			return nil, fmt.Errorf("failed to create log directory for %s: %w", config.FilePath, err)
		}

		writers = append(writers, &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.MaxSizeMb,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAgeDays,
			Compress:   true,
		})
	}

	for _, writer := range config.ConsoleWriters {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        writer,
			TimeFormat: "2006-01-02T15:04:05.000",
			NoColor:    true,
		})
	}

	if len(writers) == 0 {
		return nil, fmt.Errorf("refusing to create a logger with no outputs")
	}

	level := config.LogLevel
	if level == zerolog.NoLevel {
		level = Debug
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &Logger{logger: logger}, nil
}

// GetComponentLogger returns a child logger whose entries are tagged with the
// component's name, e.g. "Connection", "TCP", "TrustVerifier".
func (l *Logger) GetComponentLogger(component string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("component", strings.ToLower(component)).Logger(),
	}
}

// AddField permanently attaches a key/value pair to every subsequent entry.
func (l *Logger) AddField(key string, value string) *Logger {
	return &Logger{
		logger: l.logger.With().Str(key, value).Logger(),
	}
}

func (l *Logger) Trace(msg string) {
	l.logger.Trace().Msg(msg)
}

func (l *Logger) Tracef(format string, a ...any) {
	l.logger.Trace().Msgf(format, a...)
}

func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

func (l *Logger) Debugf(format string, a ...any) {
	l.logger.Debug().Msgf(format, a...)
}

func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

func (l *Logger) Infof(format string, a ...any) {
	l.logger.Info().Msgf(format, a...)
}

func (l *Logger) Error(err error) {
	l.logger.Error().Msg(err.Error())
}

func (l *Logger) Errorf(format string, a ...any) {
	l.logger.Error().Msgf(format, a...)
}
