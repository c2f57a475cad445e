// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Console is the log path that keeps output on stderr.
const Console = "console"

// Init parses and sets the log level, formatter and output.
// format is "text" or "json"; path is a file, or "" / Console for stderr.
func Init(level, format, path string) error {
	return initLogger(log.StandardLogger(), level, format, path)
}

func initLogger(logger *log.Logger, level, format, path string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed parsing log-level %s: %w", level, err)
	}

	switch format {
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format: %s", format)
	}

	if path != "" && path != Console {
		logger.SetOutput(io.Writer(&lumberjack.Logger{
			Filename:   filepath.ToSlash(path),
			MaxSize:    5, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}))
	} else {
		logger.SetOutput(os.Stderr)
	}

	logger.SetLevel(lvl)
	return nil
}
