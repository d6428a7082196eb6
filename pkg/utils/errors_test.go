package utils

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorFormatting(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: athlete missing", NewAppError(ErrCodeNotFound, "athlete missing").Error())
	assert.Equal(t, "REQUEST_TIMEOUT: no reply - 30s", NewAppError(ErrCodeTimeout, "no reply", "30s").Error())
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("athlete 7: %w", ErrNotFound), ErrCodeNotFound},
		{fmt.Errorf("settings: %w", ErrInvalidInput), ErrCodeValidation},
		{fmt.Errorf("simulation_result: %w", ErrRequestTimeout), ErrCodeTimeout},
		{ErrNotConnected, ErrCodeNotConnected},
		{ErrTransportClosed, ErrCodeNotConnected},
		{ErrSimulationFailed, ErrCodeSimulation},
		{fmt.Errorf("boom"), ErrCodeInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, CodeFor(tt.err), tt.err.Error())
	}
}
