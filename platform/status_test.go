package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]InstanceStatus{
		"running":      StatusRunning,
		"ready":        StatusRunning,
		"pending":      StatusPending,
		"loading":      StatusStarting,
		"initializing": StatusStarting,
		"starting":     StatusStarting,
		"created":      StatusStopped,
		"stopped":      StatusStopped,
		"exited":       StatusStopped,
		"terminated":   StatusStopped,
		"error":        StatusError,
		"failed":       StatusError,
	}
	for raw, expected := range cases {
		assert.Equal(t, expected, NormalizeStatus(raw), "raw status %q", raw)
	}
}

func TestNormalizeStatusCaseInsensitive(t *testing.T) {
	assert.Equal(t, StatusRunning, NormalizeStatus("RUNNING"))
	assert.Equal(t, StatusStopped, NormalizeStatus("TERMINATED"))
	assert.Equal(t, StatusError, NormalizeStatus("Failed"))
}

func TestNormalizeStatusUnknown(t *testing.T) {
	assert.Equal(t, StatusUnknown, NormalizeStatus(""))
	assert.Equal(t, StatusUnknown, NormalizeStatus("hibernating"))
	assert.Equal(t, StatusUnknown, NormalizeStatus("status: running"))
}
