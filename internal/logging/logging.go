// Package logging builds the process logger from configuration.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/SUBRATAxTL/ai-threat-model-app/internal/config"
)

// New returns a logger configured by cfg. Invalid levels fall back to info and
// an unopenable output file falls back to stderr; both are reported as warnings.
func New(cfg config.Logging) *logrus.Logger {
	log := logrus.New()

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var output io.Writer
	var outputErr error
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	case "", "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			output, outputErr = os.Stderr, err
		} else {
			output = file
		}
	}
	log.SetOutput(output)
	if outputErr != nil {
		log.Warnf("failed to open log file '%s', using stderr instead: %v", cfg.Output, outputErr)
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("invalid log level '%s', using 'info' instead: %v", cfg.Level, err)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log
}
