package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Apply configures the package-level logrus logger.
func (l LoggingConfig) Apply() error {
	level, err := logrus.ParseLevel(strings.TrimSpace(l.Level))
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logrus.SetLevel(level)
	switch strings.ToLower(strings.TrimSpace(l.Format)) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
