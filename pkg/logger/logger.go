package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

// InitLogger initializes the structured logger with proper configuration
func InitLogger(logLevel string, isDevelopment bool) *logrus.Logger {
	log := logrus.New()

	// Override with environment if not provided
	if logLevel == "" {
		logLevel = os.Getenv("LOG_LEVEL")
		if logLevel == "" {
			if isDevelopment {
				logLevel = "debug"
			} else {
				logLevel = "info"
			}
		}
	}

	if level, err := logrus.ParseLevel(strings.ToLower(logLevel)); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.WithField("invalid_level", logLevel).Warn("Invalid LOG_LEVEL, using INFO")
	}

	format := strings.ToLower(os.Getenv("LOG_FORMAT"))
	if format == "json" || (!isDevelopment && format != "text") {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	log.SetOutput(os.Stdout)

	Logger = log

	return log
}

// GetLogger returns the global logger instance
func GetLogger() *logrus.Logger {
	if Logger == nil {
		return InitLogger("info", false)
	}
	return Logger
}

// WithComponent creates a logger scoped to one subsystem (transport, cache, api...)
func WithComponent(component string) *logrus.Entry {
	return GetLogger().WithField("component", component)
}

// WithRaceContext creates a logger with live race context
func WithRaceContext(raceID string, distance int) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"race_id":  raceID,
		"distance": distance,
	})
}

// WithAthleteContext creates a logger with athlete context
func WithAthleteContext(athleteID string, distance int) *logrus.Entry {
	fields := logrus.Fields{"athlete_id": athleteID}
	if distance > 0 {
		fields["distance"] = distance
	}
	return GetLogger().WithFields(fields)
}

// WithRequestContext creates a logger with correlation context for a pending request
func WithRequestContext(requestID, messageType string) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"request_id":   requestID,
		"message_type": messageType,
	})
}
