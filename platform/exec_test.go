package platform

import (
	"context"
	"testing"
	"time"

	extErrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/variousplug/vp/util"
)

// fakeRunner records the last invocation and replays a canned result.
type fakeRunner struct {
	result util.CommandResult
	err    error

	name string
	args []string
}

func (r *fakeRunner) Run(_ context.Context, _ time.Duration, name string, args ...string) (util.CommandResult, error) {
	r.name = name
	r.args = args
	return r.result, r.err
}

func sshInstance() *InstanceInfo {
	return &InstanceInfo{
		ID:          "42",
		SSHHost:     "ssh4.vast.ai",
		SSHPort:     2222,
		SSHUsername: "root",
	}
}

func TestExecuteOverSSHSuccess(t *testing.T) {
	runner := &fakeRunner{result: util.CommandResult{Stdout: "Python 3.11.4\n"}}

	result := ExecuteOverSSH(context.Background(), zap.NewNop(), runner, sshInstance(),
		[]string{"python", "--version"}, "/workspace", time.Second, false)

	assert.True(t, result.Ok())
	assert.False(t, result.Simulated)
	assert.Equal(t, "Python 3.11.4\n", result.Output)
	assert.Equal(t, "ssh", runner.name)
	assert.Equal(t, "cd /workspace && python --version", runner.args[len(runner.args)-1])
}

func TestExecuteOverSSHRemoteFailure(t *testing.T) {
	runner := &fakeRunner{result: util.CommandResult{Stderr: "not found", ExitCode: 127}}

	result := ExecuteOverSSH(context.Background(), zap.NewNop(), runner, sshInstance(),
		[]string{"missing-binary"}, "/workspace", time.Second, false)

	assert.False(t, result.Ok())
	assert.Equal(t, 127, result.ExitCode)
	assert.Equal(t, "not found", result.Error)
	assert.False(t, result.Simulated)
}

func TestExecuteOverSSHNoConnectionInfo(t *testing.T) {
	runner := &fakeRunner{}
	instance := &InstanceInfo{ID: "42"}

	result := ExecuteOverSSH(context.Background(), zap.NewNop(), runner, instance,
		[]string{"true"}, "/workspace", time.Second, false)

	assert.False(t, result.Ok())
	assert.Contains(t, result.Error, "no SSH connection info")
	assert.Empty(t, runner.name, "no subprocess should run without SSH info")
}

func TestExecuteOverSSHSimulationFallback(t *testing.T) {
	instance := &InstanceInfo{ID: "42"}

	result := ExecuteOverSSH(context.Background(), zap.NewNop(), &fakeRunner{}, instance,
		[]string{"python", "--version"}, "/workspace", time.Second, true)

	assert.True(t, result.Ok())
	assert.True(t, result.Simulated)
	assert.Equal(t, "Python 3.10.12", result.Output)
}

func TestExecuteOverSSHTimeoutNeverSimulated(t *testing.T) {
	runner := &fakeRunner{err: extErrors.Wrap(util.ErrCommandTimeout, "ssh exceeded 1s")}

	result := ExecuteOverSSH(context.Background(), zap.NewNop(), runner, sshInstance(),
		[]string{"sleep", "100"}, "/workspace", time.Second, true)

	assert.False(t, result.Ok())
	assert.False(t, result.Simulated)
	assert.Contains(t, result.Error, "timed out")
}
