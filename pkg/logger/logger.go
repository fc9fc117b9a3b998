package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/zfogg/solfeed/pkg/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger *log.Logger
var rotator *lumberjack.Logger

// Init initializes the logger. verbose forces debug level, otherwise
// log.level from config applies.
func Init(verbose bool) {
	level := parseLevel(config.GetString("log.level"))
	if verbose {
		level = log.DebugLevel
	}

	logger = log.NewWithOptions(openWriter(config.GetString("log.file")), log.Options{
		ReportTimestamp: true,
		Prefix:          "solfeed",
	})
	logger.SetLevel(level)
}

// InitWithWriter points the logger at w, for tests
func InitWithWriter(w io.Writer, level string) {
	logger = log.NewWithOptions(w, log.Options{ReportTimestamp: true})
	logger.SetLevel(parseLevel(level))
}

func openWriter(path string) io.Writer {
	if path == "" {
		return os.Stderr
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return os.Stderr
	}
	rotator = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
		Compress:   true,
	}
	return rotator
}

func parseLevel(s string) log.Level {
	switch strings.ToLower(s) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Close flushes and closes the rotating log file, if any
func Close() error {
	if rotator != nil {
		return rotator.Close()
	}
	return nil
}

// Debug logs a debug message
func Debug(msg string, args ...interface{}) {
	if logger != nil {
		logger.Debug(msg, args...)
	}
}

// Info logs an info message
func Info(msg string, args ...interface{}) {
	if logger != nil {
		logger.Info(msg, args...)
	}
}

// Warn logs a warning message
func Warn(msg string, args ...interface{}) {
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

// Error logs an error message
func Error(msg string, args ...interface{}) {
	if logger != nil {
		logger.Error(msg, args...)
	}
}

// GetLogger returns the logger instance
func GetLogger() *log.Logger {
	return logger
}
