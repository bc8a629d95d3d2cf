package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

var (
	log = logrus.New()

	DebugEnabled = false

	logFile *os.File
)

// InitLogging sets up logging based on configuration. With debug mode off
// the logger stays silent; with it on, entries go to the given file.
func InitLogging(debugMode bool, logPath string) error {
	DebugEnabled = debugMode

	log.SetOutput(io.Discard)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if DebugEnabled && logPath != "" {
		logDir := filepath.Dir(logPath)

		err := os.MkdirAll(logDir, 0o755)
		if err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}

		logFile = f
		log.SetOutput(f)
		log.SetLevel(logrus.DebugLevel)
	}

	return nil
}

// Close closes the log file if open.
func Close() {
	if logFile != nil {
		logFile.Close()
	}
}

func Infof(format string, v ...interface{}) {
	if DebugEnabled && logFile != nil {
		log.Infof(format, v...)
	}
}

// Errorf logs an error message to the file if debug mode is enabled.
func Errorf(format string, v ...interface{}) {
	if DebugEnabled && logFile != nil {
		log.Errorf(format, v...)
	}
}

func Debugf(format string, v ...interface{}) {
	if DebugEnabled && logFile != nil {
		log.Debugf(format, v...)
	}
}

func Warnf(format string, v ...interface{}) {
	if DebugEnabled && logFile != nil {
		log.Warnf(format, v...)
	}
}
