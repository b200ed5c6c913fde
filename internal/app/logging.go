package app

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// SetupLogger настраивает формат и уровень глобального logrus.
func SetupLogger(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	log.SetLevel(lvl)

	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
		return nil
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}
