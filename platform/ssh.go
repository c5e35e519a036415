package platform

import (
	"fmt"
	"strconv"
	"strings"
)

// Fixed SSH safety options for non-interactive automation: instances come and
// go with recycled host keys, so host-key checking is disabled and the
// known-hosts file suppressed. Connect attempts are bounded.
var sshBaseOptions = []string{
	"-o", "StrictHostKeyChecking=no",
	"-o", "UserKnownHostsFile=/dev/null",
	"-o", "LogLevel=ERROR",
	"-o", "ConnectTimeout=10",
}

// SSHOptionArgs returns the ssh option argv for the given port, usable both
// for a direct ssh invocation and inside rsync's -e flag.
func SSHOptionArgs(port int) []string {
	args := []string{"-p", strconv.Itoa(port)}
	return append(args, sshBaseOptions...)
}

// SSHTransport renders the ssh options as a single -e value for rsync.
func SSHTransport(port int) string {
	return "ssh " + strings.Join(SSHOptionArgs(port), " ")
}

// SSHTarget returns the user@host destination for an instance.
func SSHTarget(instance *InstanceInfo) string {
	return fmt.Sprintf("%s@%s", instance.SSHUsername, instance.SSHHost)
}

// SSHCommandArgs builds the full ssh argv to run remoteCommand on an instance.
func SSHCommandArgs(instance *InstanceInfo, remoteCommand string) []string {
	args := append([]string{}, SSHOptionArgs(instance.SSHPort)...)
	args = append(args, SSHTarget(instance), remoteCommand)
	return args
}

// RemoteShellCommand shapes the command executed on the instance. The working
// directory change is part of the remote command because ssh starts sessions
// in the login directory.
func RemoteShellCommand(workingDir string, command []string) string {
	return fmt.Sprintf("cd %s && %s", workingDir, strings.Join(command, " "))
}
