// Package command implements the interactive command layer of the debugger.
// It is invoked with exclusive access to the debugger state between
// trace-stops and only talks to the tracee through the controller.
package command

import "strings"

// Command is one parsed command line.
type Command struct {
	Name string
	Args []string
}

// Parse splits a command line into the command name and its arguments. The
// bool is false for a blank line.
func Parse(line string) (Command, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, false
	}
	return Command{Name: fields[0], Args: fields[1:]}, true
}
