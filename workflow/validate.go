package workflow

import (
	"fmt"
	"strings"
)

// unsafeCommands is the fixed denylist of first tokens that never run
// remotely. The workflow syncs whole project trees around; one stray
// recursive delete does damage on both ends.
var unsafeCommands = map[string]struct{}{
	"rm":     {},
	"rmdir":  {},
	"del":    {},
	"format": {},
	"fdisk":  {},
}

// ValidateCommand rejects empty commands and commands whose first token is
// on the denylist. Failing validation is fatal before any step runs.
func ValidateCommand(command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("empty command is invalid")
	}
	if _, unsafe := unsafeCommands[strings.ToLower(command[0])]; unsafe {
		return fmt.Errorf("unsafe command rejected: %s", command[0])
	}
	return nil
}
