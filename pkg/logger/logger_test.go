package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name          string
		logLevel      string
		logFormat     string
		isDevelopment bool
		expectedLevel logrus.Level
		expectJSON    bool
	}{
		{
			name:          "production defaults to info and json",
			expectedLevel: logrus.InfoLevel,
			expectJSON:    true,
		},
		{
			name:          "development defaults to debug and text",
			isDevelopment: true,
			expectedLevel: logrus.DebugLevel,
			expectJSON:    false,
		},
		{
			name:          "explicit level with json format in development",
			logLevel:      "warn",
			logFormat:     "json",
			isDevelopment: true,
			expectedLevel: logrus.WarnLevel,
			expectJSON:    true,
		},
		{
			name:          "text format forced in production",
			logLevel:      "error",
			logFormat:     "text",
			expectedLevel: logrus.ErrorLevel,
			expectJSON:    false,
		},
		{
			name:          "invalid level defaults to info",
			logLevel:      "loud",
			expectedLevel: logrus.InfoLevel,
			expectJSON:    true,
		},
		{
			name:          "case insensitive level",
			logLevel:      "DEBUG",
			logFormat:     "JSON",
			expectedLevel: logrus.DebugLevel,
			expectJSON:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("LOG_LEVEL")
			if tt.logFormat != "" {
				os.Setenv("LOG_FORMAT", tt.logFormat)
			} else {
				os.Unsetenv("LOG_FORMAT")
			}
			defer os.Unsetenv("LOG_FORMAT")

			Logger = nil
			log := InitLogger(tt.logLevel, tt.isDevelopment)

			assert.Equal(t, tt.expectedLevel, log.GetLevel())
			_, isJSON := log.Formatter.(*logrus.JSONFormatter)
			assert.Equal(t, tt.expectJSON, isJSON)
			assert.Same(t, log, GetLogger())
		})
	}
}

func TestContextHelpers(t *testing.T) {
	os.Setenv("LOG_FORMAT", "json")
	defer os.Unsetenv("LOG_FORMAT")

	Logger = nil
	log := InitLogger("debug", false)
	var buf bytes.Buffer
	log.SetOutput(&buf)

	WithRaceContext("race-1", 100).Info("tick")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "race-1", entry["race_id"])
	assert.Equal(t, float64(100), entry["distance"])
	assert.Equal(t, "tick", entry["msg"])

	buf.Reset()
	WithAthleteContext("ath-1", 0).Info("lookup")
	entry = map[string]interface{}{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ath-1", entry["athlete_id"])
	_, hasDistance := entry["distance"]
	assert.False(t, hasDistance)

	buf.Reset()
	WithRequestContext("req-9", "request_simulation").Warn("slow")
	entry = map[string]interface{}{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-9", entry["request_id"])
	assert.Equal(t, "request_simulation", entry["message_type"])
	assert.Equal(t, "warning", entry["level"])
}
