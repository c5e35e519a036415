package platform

import (
	"context"
	"fmt"
	"time"
)

// InstanceInfo describes a single remote instance as reported by its platform.
// It is a point-in-time snapshot: constructed fresh on every query and never
// cached, so two snapshots with equal ID may carry different status.
type InstanceInfo struct {
	ID          string                 // Provider-assigned identifier
	Platform    string                 // Platform tag ("vast", "runpod", ...)
	Status      InstanceStatus         // Canonical status, see NormalizeStatus
	GPUType     string                 // GPU or resource descriptor, if reported
	Image       string                 // Container image the instance runs, if reported
	SSHHost     string                 // SSH connection info; all three fields
	SSHPort     int                    // are required together for command
	SSHUsername string                 // execution and file sync
	RawData     map[string]interface{} // Opaque provider payload, kept for debugging only
}

// HasSSH reports whether the full SSH connection triple is available.
func (i *InstanceInfo) HasSSH() bool {
	return i.SSHHost != "" && i.SSHPort != 0 && i.SSHUsername != ""
}

// CreateInstanceRequest carries caller preferences for a new instance. All
// fields are optional; each platform applies its own cost-optimized defaults
// when a field is absent.
type CreateInstanceRequest struct {
	GPUType          string
	InstanceType     string
	Image            string
	AdditionalParams map[string]string
}

// ExecutionResult is the outcome of running a command on an instance.
type ExecutionResult struct {
	Success   bool
	Output    string
	Error     string
	ExitCode  int
	Simulated bool // true when the output was fabricated by simulation mode
}

// Ok is the boolean shorthand for the success flag.
func (r ExecutionResult) Ok() bool {
	return r.Success
}

func (r ExecutionResult) String() string {
	return fmt.Sprintf("ExecutionResult(success=%v, output=%q, error=%q, exitCode=%d, simulated=%v)",
		r.Success, r.Output, r.Error, r.ExitCode, r.Simulated)
}

// FailedResult builds a non-fatal failure result with a one-line reason.
func FailedResult(format string, args ...interface{}) ExecutionResult {
	return ExecutionResult{
		Success:  false,
		Error:    fmt.Sprintf(format, args...),
		ExitCode: 1,
	}
}

// Client is the capability set every platform implementation must provide.
//
// ListInstances and CreateInstance are strict: transport or auth failures
// surface as a *ProviderError. GetInstance is deliberately lenient because it
// runs inside polling loops: a missing instance and a transport failure both
// come back as (nil, nil), the latter logged by the implementation.
// DestroyInstance is best effort and must never panic or return an error;
// a false return means the operator has to reclaim the resource manually.
type Client interface {
	ListInstances(ctx context.Context) ([]InstanceInfo, error)
	GetInstance(ctx context.Context, id string) (*InstanceInfo, error)
	CreateInstance(ctx context.Context, req CreateInstanceRequest) (*InstanceInfo, error)
	DestroyInstance(ctx context.Context, id string) bool
	ExecuteCommand(ctx context.Context, id string, command []string, workingDir string) ExecutionResult
	WaitForInstanceReady(ctx context.Context, id string, timeout time.Duration) bool
}

// FileSync transfers a project tree between the local machine and an instance.
// Upload failures are hard errors; Download implementations degrade partial
// transfers to a logged warning because partial results beat no results.
type FileSync interface {
	Upload(ctx context.Context, instance *InstanceInfo, localPath, remotePath string, excludePatterns []string) error
	Download(ctx context.Context, instance *InstanceInfo, remotePath, localPath string) error
}
