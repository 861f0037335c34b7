package cmd

import (
	"io"

	"github.com/conneroisu/mdserve/internal/config"
	"github.com/conneroisu/mdserve/internal/logging"
)

// newLogger builds the process logger from the logging settings. When a log
// directory is configured, records also go to a dated JSON file there; the
// returned close function releases it.
func newLogger(cfg config.LoggingConfig, out io.Writer) (logging.Logger, func() error, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	loggerConfig := &logging.LoggerConfig{
		Level:  level,
		Format: cfg.Format,
		Output: out,
	}
	console := logging.NewLogger(loggerConfig)

	if cfg.File == "" {
		return console, func() error { return nil }, nil
	}

	fileLogger, err := logging.NewFileLogger(loggerConfig, cfg.File)
	if err != nil {
		return nil, nil, err
	}

	return logging.NewMultiLogger(console, fileLogger), fileLogger.Close, nil
}
