package platform

import "strings"

// InstanceStatus is the canonical status vocabulary shared by all platforms.
// Each provider reports its own raw strings; NormalizeStatus folds them into
// this closed set so the rest of the workflow never branches on raw values.
type InstanceStatus string

const (
	StatusPending  InstanceStatus = "Pending"
	StatusStarting InstanceStatus = "Starting"
	StatusRunning  InstanceStatus = "Running"
	StatusStopping InstanceStatus = "Stopping"
	StatusStopped  InstanceStatus = "Stopped"
	StatusError    InstanceStatus = "Error"
	StatusUnknown  InstanceStatus = "Unknown"
)

var statusTable = map[string]InstanceStatus{
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

// NormalizeStatus maps a provider's raw status string to the canonical set.
// Lookup is case-insensitive. Empty and unrecognized input degrade to
// StatusUnknown instead of failing the caller.
func NormalizeStatus(raw string) InstanceStatus {
	if raw == "" {
		return StatusUnknown
	}
	if status, ok := statusTable[strings.ToLower(raw)]; ok {
		return status
	}
	return StatusUnknown
}
