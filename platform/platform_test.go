package platform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstanceInfoHasSSH(t *testing.T) {
	full := InstanceInfo{SSHHost: "ssh4.vast.ai", SSHPort: 2222, SSHUsername: "root"}
	assert.True(t, full.HasSSH())

	cases := []InstanceInfo{
		{SSHPort: 2222, SSHUsername: "root"},
		{SSHHost: "ssh4.vast.ai", SSHUsername: "root"},
		{SSHHost: "ssh4.vast.ai", SSHPort: 2222},
		{},
	}
	for _, instance := range cases {
		assert.False(t, instance.HasSSH(), "%+v", instance)
	}
}

func TestFailedResult(t *testing.T) {
	result := FailedResult("no instance %s", "abc")
	assert.False(t, result.Ok())
	assert.Equal(t, "no instance abc", result.Error)
	assert.Equal(t, 1, result.ExitCode)
	assert.False(t, result.Simulated)
	assert.Empty(t, result.Output)
}

func TestSimulateTagsResults(t *testing.T) {
	result := Simulate([]string{"make", "train"})
	assert.True(t, result.Ok())
	assert.True(t, result.Simulated)
	assert.Equal(t, SimulatedPrefix+"make train", result.Output)
}

func TestSimulateKnownCommands(t *testing.T) {
	result := Simulate([]string{"python", "--version"})
	assert.True(t, result.Simulated)
	assert.Equal(t, "Python 3.10.12", result.Output)

	result = Simulate([]string{"echo", `"hello world"`})
	assert.True(t, result.Simulated)
	assert.Equal(t, "hello world", result.Output)
}

func TestSSHCommandArgs(t *testing.T) {
	instance := &InstanceInfo{
		ID:          "42",
		SSHHost:     "ssh4.vast.ai",
		SSHPort:     2222,
		SSHUsername: "root",
	}

	args := SSHCommandArgs(instance, RemoteShellCommand("/workspace", []string{"python", "train.py"}))
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-p 2222")
	assert.Contains(t, joined, "StrictHostKeyChecking=no")
	assert.Contains(t, joined, "UserKnownHostsFile=/dev/null")
	assert.Contains(t, joined, "root@ssh4.vast.ai")
	assert.Equal(t, "cd /workspace && python train.py", args[len(args)-1])
}

func TestSSHTransport(t *testing.T) {
	transport := SSHTransport(41234)
	assert.True(t, strings.HasPrefix(transport, "ssh "))
	assert.Contains(t, transport, "-p 41234")
	assert.Contains(t, transport, "ConnectTimeout=10")
}
