package platform

import "strings"

// SimulatedPrefix tags fabricated output so operators and tests can always
// tell a simulated result from a real one.
const SimulatedPrefix = "Simulated execution: "

// Simulate fabricates a plausible result for a command when no real remote
// channel is available. It exists so the workflow can be exercised end to end
// without live infrastructure. Every result carries the Simulated tag.
func Simulate(command []string) ExecutionResult {
	cmdStr := strings.Join(command, " ")

	result := ExecutionResult{
		Success:   true,
		Simulated: true,
	}

	switch {
	case strings.Contains(cmdStr, "python --version"):
		result.Output = "Python 3.10.12"
	case strings.Contains(cmdStr, "echo"):
		echoed := cmdStr[strings.Index(cmdStr, "echo")+len("echo"):]
		result.Output = strings.Trim(strings.TrimSpace(echoed), `"'`)
	default:
		result.Output = SimulatedPrefix + cmdStr
	}

	return result
}
