package platform

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/variousplug/vp/util"
)

// ExecuteOverSSH runs a command on an already-resolved Running instance,
// honoring the simulation policy: with allowSimulation off, missing SSH info
// and SSH failures are reported failures; with it on, they degrade to a
// tagged simulated result so development flows keep moving without live
// infrastructure. Timeouts are always reported distinctly and never simulated.
func ExecuteOverSSH(ctx context.Context, logger *zap.Logger, runner util.Runner, instance *InstanceInfo, command []string, workingDir string, timeout time.Duration, allowSimulation bool) ExecutionResult {
	if !instance.HasSSH() {
		if allowSimulation {
			logger.Warn("SSH not available, simulating command",
				zap.String("InstanceID", instance.ID),
			)
			return Simulate(command)
		}
		return FailedResult("instance %s has no SSH connection info", instance.ID)
	}

	remote := RemoteShellCommand(workingDir, command)
	result, err := runner.Run(ctx, timeout, "ssh", SSHCommandArgs(instance, remote)...)
	if err != nil {
		if errors.Is(err, util.ErrCommandTimeout) {
			return FailedResult("command execution timed out on instance %s", instance.ID)
		}
		if allowSimulation {
			logger.Warn("SSH invocation failed, simulating command",
				zap.String("InstanceID", instance.ID),
				zap.Error(err),
			)
			return Simulate(command)
		}
		return FailedResult("ssh invocation failed: %v", err)
	}

	if result.ExitCode != 0 {
		if allowSimulation {
			logger.Warn("Remote command failed, simulating command",
				zap.String("InstanceID", instance.ID),
				zap.Int("ExitCode", result.ExitCode),
				zap.String("Stderr", result.Stderr),
			)
			return Simulate(command)
		}
		return ExecutionResult{
			Success:  false,
			Output:   result.Stdout,
			Error:    result.Stderr,
			ExitCode: result.ExitCode,
		}
	}

	return ExecutionResult{
		Success:  true,
		Output:   result.Stdout,
		Error:    result.Stderr,
		ExitCode: 0,
	}
}
