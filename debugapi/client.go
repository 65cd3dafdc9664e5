package debugapi

import (
	"fmt"
	"syscall"
)

// EventType represents the type of the trace-stop event the kernel reports
// for the tracee.
type EventType int

const (
	// EventContinued happens when the tracee is resumed by SIGCONT.
	EventContinued EventType = iota
	// EventExited happens when the tracee exits normally.
	EventExited
	// EventTraceEvent happens at a ptrace event stop such as exec or fork.
	EventTraceEvent
	// EventSyscallStop happens at a syscall entry or exit boundary.
	EventSyscallStop
	// EventSignaled happens when the tracee is terminated by a signal.
	EventSignaled
	// EventStillAlive happens when the wait call has nothing to report.
	EventStillAlive
	// EventStopped happens when the tracee is stopped by a signal delivery.
	EventStopped
)

// String returns the readable name of the event type.
func (t EventType) String() string {
	switch t {
	case EventContinued:
		return "continued"
	case EventExited:
		return "exited"
	case EventTraceEvent:
		return "trace event"
	case EventSyscallStop:
		return "syscall stop"
	case EventSignaled:
		return "signaled"
	case EventStillAlive:
		return "still alive"
	case EventStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown (%d)", int(t))
	}
}

// Event describes one state change of the tracee as reported by the wait call.
type Event struct {
	Type EventType
	// Pid is the process the event happened to. Zero for EventStillAlive.
	Pid int
	// ExitStatus is valid for EventExited.
	ExitStatus int
	// Signal is valid for EventTraceEvent, EventSignaled and EventStopped.
	Signal syscall.Signal
	// TrapCause is the ptrace event number. Valid for EventTraceEvent.
	TrapCause int
	// CoreDumped is valid for EventSignaled.
	CoreDumped bool
}

// IsExitEvent returns true if the event indicates the tracee is gone.
func (e Event) IsExitEvent() bool {
	return e.Type == EventExited || e.Type == EventSignaled
}
